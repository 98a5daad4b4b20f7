package batchinsert

import (
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

// PostgreSQLDriver PostgreSQL 方言
//
// PostgreSQL 没有 OUTPUT INTO，用数据修改 CTE 把 RETURNING 的结果写入 pg_temp 中的暂存表。
type PostgreSQLDriver struct {
	*dialect
}

func NewPostgreSQLDriver() *PostgreSQLDriver {
	return &PostgreSQLDriver{
		dialect: &dialect{
			name:        "postgresql",
			quote:       pq.QuoteIdentifier,
			placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
			maxIdent:    63,
		},
	}
}

func (d *PostgreSQLDriver) temp(staging string) string {
	return "pg_temp." + d.quote(staging)
}

// GenerateCaptureInsertSQL 生成 WITH inserted AS (INSERT ... RETURNING x) INSERT INTO pg_temp.staging ...
func (d *PostgreSQLDriver) GenerateCaptureInsertSQL(table string, columns []string, generated []GeneratedColumn, staging string, rows int) (CaptureSQL, error) {
	if err := checkShape(table, columns, rows); err != nil {
		return CaptureSQL{}, err
	}
	if len(generated) == 0 {
		return CaptureSQL{}, configErrorf("no generated columns to capture on %s", table)
	}
	names := d.quoteGenerated(generated, "")
	sql := fmt.Sprintf(`WITH "inserted" AS (%s VALUES %s RETURNING %s) INSERT INTO %s (%s) SELECT %s FROM "inserted"`,
		d.insertInto(table, columns),
		d.generatePlaceholders(len(columns), rows),
		names,
		d.temp(staging),
		names,
		names,
	)
	return CaptureSQL{Insert: sql}, nil
}

func (d *PostgreSQLDriver) GenerateCreateStagingSQL(staging string, generated []GeneratedColumn) []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", d.temp(staging)),
		fmt.Sprintf("CREATE TEMPORARY TABLE %s (%s, %s bigserial) ON COMMIT DROP", d.quote(staging), d.declareGenerated(generated), d.quote(stagingOrdinal)),
	}
}

func (d *PostgreSQLDriver) GenerateSelectStagingSQL(staging string, generated []GeneratedColumn) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", d.quoteGenerated(generated, ""), d.temp(staging), d.quote(stagingOrdinal))
}

func (d *PostgreSQLDriver) GenerateDropStagingSQL(staging string) []string {
	return []string{fmt.Sprintf("DROP TABLE %s", d.temp(staging))}
}
