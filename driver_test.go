package batchinsert_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/rushairer/batchinsert"
)

func TestDriver_GenerateInsertSQL(t *testing.T) {
	columns := []string{"name", "email"}
	tests := []struct {
		name   string
		driver batchinsert.SQLDriver
		want   string
	}{
		{"SQLServer", batchinsert.DefaultSQLServerDriver, "INSERT INTO [users] ([name], [email]) VALUES (@p1, @p2), (@p3, @p4)"},
		{"PostgreSQL", batchinsert.DefaultPostgreSQLDriver, `INSERT INTO "users" ("name", "email") VALUES ($1, $2), ($3, $4)`},
		{"SQLite", batchinsert.DefaultSQLiteDriver, `INSERT INTO "users" ("name", "email") VALUES (?, ?), (?, ?)`},
		{"MySQL", batchinsert.DefaultMySQLDriver, "INSERT INTO `users` (`name`, `email`) VALUES (?, ?), (?, ?)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.driver.GenerateInsertSQL("users", columns, 2)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("unexpected sql:\n got: %s\nwant: %s", got, tt.want)
			}
			// 缓存命中返回相同语句
			again, _ := tt.driver.GenerateInsertSQL("users", columns, 2)
			if again != got {
				t.Fatalf("cached statement differs: %s", again)
			}
			other, _ := tt.driver.GenerateInsertSQL("users", columns, 1)
			if strings.Count(other, "(") != 2 {
				t.Fatalf("single row statement has wrong shape: %s", other)
			}
		})
	}
}

func TestDriver_GenerateInsertSQL_Errors(t *testing.T) {
	for _, d := range []batchinsert.SQLDriver{
		batchinsert.DefaultSQLServerDriver,
		batchinsert.DefaultPostgreSQLDriver,
		batchinsert.DefaultSQLiteDriver,
		batchinsert.DefaultMySQLDriver,
	} {
		if _, err := d.GenerateInsertSQL("users", []string{"name"}, 0); !errors.Is(err, batchinsert.ErrEmptyBatch) {
			t.Fatalf("%s: expected ErrEmptyBatch, got %v", d.Name(), err)
		}
		if _, err := d.GenerateInsertSQL("users", nil, 1); !errors.Is(err, batchinsert.ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration for no columns, got %v", d.Name(), err)
		}
		if _, err := d.GenerateInsertSQL("", []string{"name"}, 1); !errors.Is(err, batchinsert.ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration for empty table, got %v", d.Name(), err)
		}
		if _, err := d.GenerateCaptureInsertSQL("users", []string{"name"}, nil, "s", 1); !errors.Is(err, batchinsert.ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration without generated columns, got %v", d.Name(), err)
		}
	}
}

func TestDriver_QuoteIdentifier(t *testing.T) {
	tests := []struct {
		driver batchinsert.SQLDriver
		in     string
		want   string
	}{
		{batchinsert.DefaultSQLServerDriver, "dbo.Person", "[dbo].[Person]"},
		{batchinsert.DefaultSQLServerDriver, "odd]name", "[odd]]name]"},
		{batchinsert.DefaultPostgreSQLDriver, "public.Person", `"public"."Person"`},
		{batchinsert.DefaultPostgreSQLDriver, `odd"name`, `"odd""name"`},
		{batchinsert.DefaultSQLiteDriver, "Person", `"Person"`},
		{batchinsert.DefaultMySQLDriver, "shop.odd`name", "`shop`.`odd``name`"},
	}
	for _, tt := range tests {
		if got := tt.driver.QuoteIdentifier(tt.in); got != tt.want {
			t.Fatalf("%s QuoteIdentifier(%q) = %s, want %s", tt.driver.Name(), tt.in, got, tt.want)
		}
	}
}

func TestDriver_Placeholder(t *testing.T) {
	if got := batchinsert.DefaultSQLServerDriver.Placeholder(3); got != "@p3" {
		t.Fatalf("sqlserver placeholder: %s", got)
	}
	if got := batchinsert.DefaultPostgreSQLDriver.Placeholder(3); got != "$3" {
		t.Fatalf("postgresql placeholder: %s", got)
	}
	if got := batchinsert.DefaultMySQLDriver.Placeholder(3); got != "?" {
		t.Fatalf("mysql placeholder: %s", got)
	}
}

var idColumn = []batchinsert.GeneratedColumn{{Name: "id", SQLType: "integer"}}

func TestSQLServerDriver_Capture(t *testing.T) {
	d := batchinsert.DefaultSQLServerDriver
	staging := d.StagingName("dbo.users", "s1")
	if staging != "#dbo_users_s1" {
		t.Fatalf("unexpected staging name: %s", staging)
	}

	capture, err := d.GenerateCaptureInsertSQL("dbo.users", []string{"name"}, idColumn, staging, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := "INSERT INTO [dbo].[users] ([name]) OUTPUT INSERTED.[id] INTO [#dbo_users_s1] ([id]) VALUES (@p1), (@p2)"
	if capture.Insert != want || len(capture.Before) != 0 || len(capture.FollowUp) != 0 {
		t.Fatalf("unexpected capture: %#v", capture)
	}

	create := d.GenerateCreateStagingSQL(staging, idColumn)
	if len(create) != 2 ||
		create[0] != "IF OBJECT_ID('tempdb..#dbo_users_s1') IS NOT NULL DROP TABLE [#dbo_users_s1]" ||
		create[1] != "CREATE TABLE [#dbo_users_s1] ([id] integer, [batchinsert_ord] INT IDENTITY(1,1))" {
		t.Fatalf("unexpected create: %#v", create)
	}
	if got := d.GenerateSelectStagingSQL(staging, idColumn); got != "SELECT [id] FROM [#dbo_users_s1] ORDER BY [batchinsert_ord]" {
		t.Fatalf("unexpected select: %s", got)
	}
	if got := d.GenerateDropStagingSQL(staging); len(got) != 1 || got[0] != "DROP TABLE [#dbo_users_s1]" {
		t.Fatalf("unexpected drop: %#v", got)
	}
}

func TestPostgreSQLDriver_Capture(t *testing.T) {
	d := batchinsert.DefaultPostgreSQLDriver
	capture, err := d.GenerateCaptureInsertSQL("users", []string{"name"}, idColumn, "users_s", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := `WITH "inserted" AS (INSERT INTO "users" ("name") VALUES ($1), ($2) RETURNING "id") INSERT INTO pg_temp."users_s" ("id") SELECT "id" FROM "inserted"`
	if capture.Insert != want {
		t.Fatalf("unexpected capture:\n got: %s\nwant: %s", capture.Insert, want)
	}

	create := d.GenerateCreateStagingSQL("users_s", idColumn)
	if len(create) != 2 ||
		create[0] != `DROP TABLE IF EXISTS pg_temp."users_s"` ||
		create[1] != `CREATE TEMPORARY TABLE "users_s" ("id" integer, "batchinsert_ord" bigserial) ON COMMIT DROP` {
		t.Fatalf("unexpected create: %#v", create)
	}
	if got := d.GenerateSelectStagingSQL("users_s", idColumn); got != `SELECT "id" FROM pg_temp."users_s" ORDER BY "batchinsert_ord"` {
		t.Fatalf("unexpected select: %s", got)
	}
	if got := d.GenerateDropStagingSQL("users_s"); got[0] != `DROP TABLE pg_temp."users_s"` {
		t.Fatalf("unexpected drop: %#v", got)
	}
}

func TestSQLiteDriver_Capture(t *testing.T) {
	d := batchinsert.DefaultSQLiteDriver
	capture, err := d.GenerateCaptureInsertSQL("users", []string{"name"}, idColumn, "users_s", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(capture.Before) != 1 ||
		capture.Before[0] != `CREATE TEMP TRIGGER "users_s_capture" AFTER INSERT ON "users" BEGIN INSERT INTO "users_s" ("id") VALUES (NEW."id"); END` {
		t.Fatalf("unexpected trigger: %#v", capture.Before)
	}
	if capture.Insert != `INSERT INTO "users" ("name") VALUES (?), (?)` {
		t.Fatalf("unexpected insert: %s", capture.Insert)
	}
	if got := d.GenerateSelectStagingSQL("users_s", idColumn); got != `SELECT "id" FROM temp."users_s" ORDER BY rowid` {
		t.Fatalf("unexpected select: %s", got)
	}
	drop := d.GenerateDropStagingSQL("users_s")
	if len(drop) != 2 || !strings.Contains(drop[0], "TRIGGER") || drop[1] != `DROP TABLE temp."users_s"` {
		t.Fatalf("unexpected drop: %#v", drop)
	}
}

func TestMySQLDriver_Capture(t *testing.T) {
	d := batchinsert.DefaultMySQLDriver
	capture, err := d.GenerateCaptureInsertSQL("users", []string{"name"}, idColumn, "users_s", 2)
	if err != nil {
		t.Fatal(err)
	}
	if capture.Insert != "INSERT INTO `users` (`name`) VALUES (?), (?)" {
		t.Fatalf("unexpected insert: %s", capture.Insert)
	}
	want := "INSERT INTO `users_s` (`id`) SELECT `id` FROM `users`" +
		" WHERE `id` >= LAST_INSERT_ID() AND `id` <= LAST_INSERT_ID() + 1 * @@auto_increment_increment" +
		" AND MOD(CAST(`id` AS SIGNED) - CAST(LAST_INSERT_ID() AS SIGNED), @@auto_increment_increment) = 0" +
		" ORDER BY `id`"
	if len(capture.FollowUp) != 1 || capture.FollowUp[0] != want {
		t.Fatalf("unexpected follow-up: %#v", capture.FollowUp)
	}

	two := append(idColumn, batchinsert.GeneratedColumn{Name: "created_at", SQLType: "DATETIME"})
	if err := d.ValidateGenerated(two); !errors.Is(err, batchinsert.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := d.ValidateGenerated(idColumn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMySQLDriver_CaptureStepsByAutoIncrementIncrement(t *testing.T) {
	capture, err := batchinsert.DefaultMySQLDriver.GenerateCaptureInsertSQL("users", []string{"name"}, idColumn, "users_s", 5)
	if err != nil {
		t.Fatal(err)
	}
	// 5 行：最后一个值为 LAST_INSERT_ID() + 4 个步长，且只取与首个 id 同余的值
	if !strings.Contains(capture.FollowUp[0], "LAST_INSERT_ID() + 4 * @@auto_increment_increment") ||
		!strings.Contains(capture.FollowUp[0], "MOD(CAST(`id` AS SIGNED) - CAST(LAST_INSERT_ID() AS SIGNED), @@auto_increment_increment) = 0") {
		t.Fatalf("follow-up does not honour auto_increment_increment: %s", capture.FollowUp[0])
	}
	if strings.Contains(capture.FollowUp[0], "BETWEEN") {
		t.Fatalf("follow-up must not select a contiguous range: %s", capture.FollowUp[0])
	}
}

func TestDriver_ReservedStagingOrdinal(t *testing.T) {
	reserved := []batchinsert.GeneratedColumn{{Name: "BatchInsert_Ord", SQLType: "INT"}}
	for _, d := range []batchinsert.SQLDriver{
		batchinsert.DefaultSQLServerDriver,
		batchinsert.DefaultPostgreSQLDriver,
		batchinsert.DefaultSQLiteDriver,
		batchinsert.DefaultMySQLDriver,
	} {
		if err := d.ValidateGenerated(reserved); !errors.Is(err, batchinsert.ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration for reserved name, got %v", d.Name(), err)
		}
	}
}

func TestDriver_StagingNameFitsIdentifierLimit(t *testing.T) {
	long := strings.Repeat("a", 200)
	limits := map[batchinsert.SQLDriver]int{
		batchinsert.DefaultSQLServerDriver:  116,
		batchinsert.DefaultPostgreSQLDriver: 63,
		batchinsert.DefaultSQLiteDriver:     120,
		batchinsert.DefaultMySQLDriver:      64,
	}
	for d, limit := range limits {
		name := d.StagingName(long, "0123456789abcdef")
		if len(name) > limit {
			t.Fatalf("%s staging name too long: %d > %d", d.Name(), len(name), limit)
		}
		if !strings.HasSuffix(name, "_0123456789abcdef") {
			t.Fatalf("%s staging name lost its suffix: %s", d.Name(), name)
		}
	}

	if got := batchinsert.DefaultPostgreSQLDriver.StagingName("my-table", "x y"); got != "my_table_x_y" {
		t.Fatalf("unexpected sanitized name: %s", got)
	}
}

func TestDriverFor(t *testing.T) {
	tests := map[string]string{
		"sqlserver":  "sqlserver",
		"mssql":      "sqlserver",
		"postgres":   "postgresql",
		"pgx":        "postgresql",
		"sqlite3":    "sqlite",
		"MySQL":      "mysql",
		"mariadb":    "mysql",
		"postgresql": "postgresql",
	}
	for in, want := range tests {
		d, err := batchinsert.DriverFor(in)
		if err != nil {
			t.Fatalf("DriverFor(%q): %v", in, err)
		}
		if d.Name() != want {
			t.Fatalf("DriverFor(%q) = %s, want %s", in, d.Name(), want)
		}
	}
	if _, err := batchinsert.DriverFor("oracle"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
