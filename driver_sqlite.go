package batchinsert

import (
	"fmt"
	"strings"
)

// SQLiteDriver SQLite 方言
//
// SQLite 的 RETURNING 不能写入其他表，这里在 temp 库里建一个 AFTER INSERT 触发器，
// 把 NEW.<col> 逐行写入暂存表。temp 触发器只对当前连接可见。
type SQLiteDriver struct {
	*dialect
}

func NewSQLiteDriver() *SQLiteDriver {
	return &SQLiteDriver{
		dialect: &dialect{
			name: "sqlite",
			quote: func(s string) string {
				return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
			},
			placeholder: func(int) string { return "?" },
			maxIdent:    120,
		},
	}
}

func (d *SQLiteDriver) trigger(staging string) string {
	return staging + "_capture"
}

func (d *SQLiteDriver) GenerateCaptureInsertSQL(table string, columns []string, generated []GeneratedColumn, staging string, rows int) (CaptureSQL, error) {
	insert, err := d.GenerateInsertSQL(table, columns, rows)
	if err != nil {
		return CaptureSQL{}, err
	}
	if len(generated) == 0 {
		return CaptureSQL{}, configErrorf("no generated columns to capture on %s", table)
	}
	// 触发器体内的表名不能带库名
	trigger := fmt.Sprintf("CREATE TEMP TRIGGER %s AFTER INSERT ON %s BEGIN INSERT INTO %s (%s) VALUES (%s); END",
		d.quote(d.trigger(staging)),
		d.QuoteIdentifier(table),
		d.quote(staging),
		d.quoteGenerated(generated, ""),
		d.quoteGenerated(generated, "NEW."),
	)
	return CaptureSQL{
		Before: []string{trigger},
		Insert: insert,
	}, nil
}

func (d *SQLiteDriver) GenerateCreateStagingSQL(staging string, generated []GeneratedColumn) []string {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS temp.%s", d.quote(d.trigger(staging))),
		fmt.Sprintf("DROP TABLE IF EXISTS temp.%s", d.quote(staging)),
		fmt.Sprintf("CREATE TEMP TABLE %s (%s)", d.quote(staging), d.declareGenerated(generated)),
	}
}

func (d *SQLiteDriver) GenerateSelectStagingSQL(staging string, generated []GeneratedColumn) string {
	return fmt.Sprintf("SELECT %s FROM temp.%s ORDER BY rowid", d.quoteGenerated(generated, ""), d.quote(staging))
}

func (d *SQLiteDriver) GenerateDropStagingSQL(staging string) []string {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS temp.%s", d.quote(d.trigger(staging))),
		fmt.Sprintf("DROP TABLE temp.%s", d.quote(staging)),
	}
}
