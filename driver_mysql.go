package batchinsert

import (
	"fmt"
	"strings"
)

// MySQLDriver MySQL 方言
//
// MySQL 既没有 OUTPUT 也没有 RETURNING。多行简单插入的自增值按 auto_increment_increment
// 等距分配（innodb_autoinc_lock_mode 0/1，以及 2 下的单语句无并发场景），所以插入后取
// LAST_INSERT_ID() 起、步长为 @@auto_increment_increment 的 n 个值写入临时表。
type MySQLDriver struct {
	*dialect
}

func NewMySQLDriver() *MySQLDriver {
	return &MySQLDriver{
		dialect: &dialect{
			name: "mysql",
			quote: func(s string) string {
				return "`" + strings.ReplaceAll(s, "`", "``") + "`"
			},
			placeholder: func(int) string { return "?" },
			maxIdent:    64,
		},
	}
}

// ValidateGenerated 只支持唯一的 AUTO_INCREMENT 列
func (d *MySQLDriver) ValidateGenerated(generated []GeneratedColumn) error {
	if len(generated) > 1 {
		return configErrorf("mysql can only recover a single AUTO_INCREMENT column, got %d", len(generated))
	}
	return d.dialect.ValidateGenerated(generated)
}

func (d *MySQLDriver) GenerateCaptureInsertSQL(table string, columns []string, generated []GeneratedColumn, staging string, rows int) (CaptureSQL, error) {
	insert, err := d.GenerateInsertSQL(table, columns, rows)
	if err != nil {
		return CaptureSQL{}, err
	}
	if len(generated) != 1 {
		return CaptureSQL{}, configErrorf("mysql can only recover a single AUTO_INCREMENT column, got %d", len(generated))
	}
	// 按 auto_increment_increment 步进取值，排除其他节点（不同 offset）穿插进来的 id
	id := d.quote(generated[0].Name)
	capture := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s"+
		" WHERE %s >= LAST_INSERT_ID() AND %s <= LAST_INSERT_ID() + %d * @@auto_increment_increment"+
		" AND MOD(CAST(%s AS SIGNED) - CAST(LAST_INSERT_ID() AS SIGNED), @@auto_increment_increment) = 0"+
		" ORDER BY %s",
		d.quote(staging), id, id, d.QuoteIdentifier(table), id, id, rows-1, id, id)
	return CaptureSQL{
		Insert:   insert,
		FollowUp: []string{capture},
	}, nil
}

func (d *MySQLDriver) GenerateCreateStagingSQL(staging string, generated []GeneratedColumn) []string {
	return []string{
		fmt.Sprintf("DROP TEMPORARY TABLE IF EXISTS %s", d.quote(staging)),
		fmt.Sprintf("CREATE TEMPORARY TABLE %s (%s)", d.quote(staging), d.declareGenerated(generated)),
	}
}

func (d *MySQLDriver) GenerateSelectStagingSQL(staging string, generated []GeneratedColumn) string {
	names := d.quoteGenerated(generated, "")
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", names, d.quote(staging), names)
}

func (d *MySQLDriver) GenerateDropStagingSQL(staging string) []string {
	return []string{fmt.Sprintf("DROP TEMPORARY TABLE %s", d.quote(staging))}
}
