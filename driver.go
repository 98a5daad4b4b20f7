package batchinsert

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// SQLDriver 数据库特定的语句生成器
//
// 所有方法都是纯函数：只返回 SQL 文本，不执行任何语句。
type SQLDriver interface {
	// Name 方言名称
	Name() string
	// QuoteIdentifier 转义标识符，带点的名字逐段转义
	QuoteIdentifier(name string) string
	// Placeholder 第 n 个参数占位符（从 1 开始）
	Placeholder(n int) string
	// StagingName 由表名和随机后缀生成暂存表名
	StagingName(table, suffix string) string
	// ValidateGenerated 检查方言能否回收这些生成列
	ValidateGenerated(generated []GeneratedColumn) error

	// GenerateInsertSQL 普通批量插入
	GenerateInsertSQL(table string, columns []string, rows int) (string, error)
	// GenerateCaptureInsertSQL 带输出到暂存表的批量插入
	GenerateCaptureInsertSQL(table string, columns []string, generated []GeneratedColumn, staging string, rows int) (CaptureSQL, error)
	// GenerateCreateStagingSQL 若存在先删除，再创建暂存表
	GenerateCreateStagingSQL(staging string, generated []GeneratedColumn) []string
	// GenerateSelectStagingSQL 读取暂存表全部行
	GenerateSelectStagingSQL(staging string, generated []GeneratedColumn) string
	// GenerateDropStagingSQL 删除暂存表
	GenerateDropStagingSQL(staging string) []string
}

// CaptureSQL is the statement sequence of the capture path. Before and FollowUp run
// without arguments around Insert, which is bound with the batch arguments.
type CaptureSQL struct {
	Before   []string
	Insert   string
	FollowUp []string
}

var (
	DefaultSQLServerDriver  = NewSQLServerDriver()
	DefaultPostgreSQLDriver = NewPostgreSQLDriver()
	DefaultSQLiteDriver     = NewSQLiteDriver()
	DefaultMySQLDriver      = NewMySQLDriver()
)

// DriverFor 按 database/sql 驱动名返回对应方言
func DriverFor(driverName string) (SQLDriver, error) {
	switch strings.ToLower(driverName) {
	case "sqlserver", "mssql", "azuresql":
		return DefaultSQLServerDriver, nil
	case "postgres", "postgresql", "pgx":
		return DefaultPostgreSQLDriver, nil
	case "sqlite3", "sqlite":
		return DefaultSQLiteDriver, nil
	case "mysql", "mariadb":
		return DefaultMySQLDriver, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

// dialect 各方言共享的生成逻辑
type dialect struct {
	name        string
	quote       func(string) string
	placeholder func(int) string
	maxIdent    int

	placeholders sync.Map // key: (colCount<<32)|batchSize  value: string
	statements   sync.Map // key: xxhash(table, columns, rows)  value: string
}

func (d *dialect) Name() string {
	return d.name
}

func (d *dialect) QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}

func (d *dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

func (d *dialect) StagingName(table, suffix string) string {
	return stagingName(table, suffix, d.maxIdent)
}

// stagingOrdinal 暂存表中记录写入顺序的列（SQL Server、PostgreSQL）
const stagingOrdinal = "batchinsert_ord"

func (d *dialect) ValidateGenerated(generated []GeneratedColumn) error {
	for _, g := range generated {
		if strings.EqualFold(g.Name, stagingOrdinal) {
			return configErrorf("generated column name %q is reserved for staging tables", g.Name)
		}
	}
	return nil
}

func (d *dialect) GenerateInsertSQL(table string, columns []string, rows int) (string, error) {
	if err := checkShape(table, columns, rows); err != nil {
		return "", err
	}
	key := statementKey(table, columns, rows)
	if v, ok := d.statements.Load(key); ok {
		return v.(string), nil
	}
	sql := fmt.Sprintf("%s VALUES %s", d.insertInto(table, columns), d.generatePlaceholders(len(columns), rows))
	d.statements.Store(key, sql)
	return sql, nil
}

func (d *dialect) insertInto(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s)", d.QuoteIdentifier(table), d.quoteList(columns, ""))
}

func (d *dialect) quoteList(columns []string, prefix string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = prefix + d.quote(c)
	}
	return strings.Join(quoted, ", ")
}

func (d *dialect) quoteGenerated(generated []GeneratedColumn, prefix string) string {
	return d.quoteList(generatedNames(generated), prefix)
}

func (d *dialect) declareGenerated(generated []GeneratedColumn) string {
	defs := make([]string, len(generated))
	for i, g := range generated {
		defs[i] = d.quote(g.Name) + " " + g.SQLType
	}
	return strings.Join(defs, ", ")
}

func (d *dialect) generatePlaceholders(columnCount, batchSize int) string {
	if columnCount <= 0 || batchSize <= 0 {
		return ""
	}
	key := (uint64(columnCount) << 32) | uint64(batchSize)
	if v, ok := d.placeholders.Load(key); ok {
		return v.(string)
	}
	rows := make([]string, batchSize)
	ph := make([]string, columnCount)
	for i := 0; i < batchSize; i++ {
		for j := 0; j < columnCount; j++ {
			ph[j] = d.placeholder(i*columnCount + j + 1)
		}
		rows[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	out := strings.Join(rows, ", ")
	d.placeholders.Store(key, out)
	return out
}

func checkShape(table string, columns []string, rows int) error {
	if rows <= 0 {
		return ErrEmptyBatch
	}
	if table == "" {
		return configErrorf("empty table name")
	}
	if len(columns) == 0 {
		return configErrorf("no columns defined for %s", table)
	}
	return nil
}

func statementKey(table string, columns []string, rows int) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(table)
	for _, c := range columns {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(c)
	}
	_, _ = h.WriteString(fmt.Sprintf("\x00%d", rows))
	return h.Sum64()
}

func generatedNames(generated []GeneratedColumn) []string {
	names := make([]string, len(generated))
	for i, g := range generated {
		names[i] = g.Name
	}
	return names
}

// stagingName keeps [A-Za-z0-9_] only and trims the table part so the suffix always fits
// within maxLen.
func stagingName(table, suffix string, maxLen int) string {
	base := sanitizeIdent(table)
	suffix = sanitizeIdent(suffix)
	if room := maxLen - len(suffix) - 1; room < len(base) {
		if room < 0 {
			room = 0
		}
		base = base[:room]
	}
	if base == "" {
		return suffix
	}
	return base + "_" + suffix
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
