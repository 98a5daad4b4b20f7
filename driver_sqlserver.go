package batchinsert

import (
	"fmt"
	"strconv"
	"strings"
)

// SQLServerDriver SQL Server 方言
//
// 生成列通过 OUTPUT INSERTED.<col> INTO #staging 回收，暂存表为会话级本地临时表，
// 标识列 batchinsert_ord 记录写入顺序。
type SQLServerDriver struct {
	*dialect
}

func NewSQLServerDriver() *SQLServerDriver {
	return &SQLServerDriver{
		dialect: &dialect{
			name: "sqlserver",
			quote: func(s string) string {
				return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
			},
			placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
			// 本地临时表名最长 116，保留 '#'
			maxIdent: 115,
		},
	}
}

// StagingName 本地临时表以 '#' 开头
func (d *SQLServerDriver) StagingName(table, suffix string) string {
	return "#" + d.dialect.StagingName(table, suffix)
}

// GenerateCaptureInsertSQL 生成 INSERT ... OUTPUT INSERTED.x INTO #staging (x) VALUES ...
func (d *SQLServerDriver) GenerateCaptureInsertSQL(table string, columns []string, generated []GeneratedColumn, staging string, rows int) (CaptureSQL, error) {
	if err := checkShape(table, columns, rows); err != nil {
		return CaptureSQL{}, err
	}
	if len(generated) == 0 {
		return CaptureSQL{}, configErrorf("no generated columns to capture on %s", table)
	}
	sql := fmt.Sprintf("%s OUTPUT %s INTO %s (%s) VALUES %s",
		d.insertInto(table, columns),
		d.quoteGenerated(generated, "INSERTED."),
		d.quote(staging),
		d.quoteGenerated(generated, ""),
		d.generatePlaceholders(len(columns), rows),
	)
	return CaptureSQL{Insert: sql}, nil
}

func (d *SQLServerDriver) GenerateCreateStagingSQL(staging string, generated []GeneratedColumn) []string {
	return []string{
		fmt.Sprintf("IF OBJECT_ID('tempdb..%s') IS NOT NULL DROP TABLE %s",
			strings.ReplaceAll(staging, "'", "''"), d.quote(staging)),
		fmt.Sprintf("CREATE TABLE %s (%s, %s INT IDENTITY(1,1))", d.quote(staging), d.declareGenerated(generated), d.quote(stagingOrdinal)),
	}
}

func (d *SQLServerDriver) GenerateSelectStagingSQL(staging string, generated []GeneratedColumn) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", d.quoteGenerated(generated, ""), d.quote(staging), d.quote(stagingOrdinal))
}

func (d *SQLServerDriver) GenerateDropStagingSQL(staging string) []string {
	return []string{fmt.Sprintf("DROP TABLE %s", d.quote(staging))}
}
