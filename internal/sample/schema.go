package sample

import (
	"fmt"

	"github.com/rushairer/batchinsert"
)

// 表名
const (
	PersonTable = "Person"
	KidTable    = "Kid"
)

type columnTypes struct {
	identity  string // 自增主键定义
	id        string // 暂存表/外键使用的整数类型
	text      string
	boolean   string
	timestamp string
}

func typesFor(driver batchinsert.SQLDriver) columnTypes {
	switch driver.Name() {
	case "sqlserver":
		return columnTypes{"INT IDENTITY(1,1) PRIMARY KEY", "INT", "NVARCHAR(200)", "BIT", "DATETIME2"}
	case "postgresql":
		return columnTypes{"SERIAL PRIMARY KEY", "INTEGER", "TEXT", "BOOLEAN", "TIMESTAMP"}
	case "mysql":
		return columnTypes{"BIGINT AUTO_INCREMENT PRIMARY KEY", "BIGINT", "VARCHAR(200)", "BOOLEAN", "DATETIME"}
	default:
		return columnTypes{"INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER", "TEXT", "BOOLEAN", "TIMESTAMP"}
	}
}

// IDType 暂存表中声明生成 id 列使用的类型
func IDType(driver batchinsert.SQLDriver) string {
	return typesFor(driver).id
}

// DropStatements 删除示例表（先子表）
func DropStatements(driver batchinsert.SQLDriver) []string {
	return []string{
		"DROP TABLE IF EXISTS " + driver.QuoteIdentifier(KidTable),
		"DROP TABLE IF EXISTS " + driver.QuoteIdentifier(PersonTable),
	}
}

// CreateStatements 创建示例表
func CreateStatements(driver batchinsert.SQLDriver) []string {
	t := typesFor(driver)
	q := driver.QuoteIdentifier
	person := fmt.Sprintf("CREATE TABLE %s (%s %s, %s %s NOT NULL, %s %s NULL, %s %s, %s %s, %s %s, %s %s NOT NULL, %s %s NOT NULL)",
		q(PersonTable),
		q("PersonId"), t.identity,
		q("Name"), t.text,
		q("DateOfBirth"), t.timestamp,
		q("AreaCode"), t.text,
		q("Number"), t.text,
		q("FullPhoneNumber"), t.text,
		q("HasKids"), t.boolean,
		q("SumOfKidsAge"), t.id,
	)
	kid := fmt.Sprintf("CREATE TABLE %s (%s %s, %s %s NOT NULL REFERENCES %s (%s), %s %s NOT NULL)",
		q(KidTable),
		q("KidId"), t.identity,
		q("PersonId"), t.id, q(PersonTable), q("PersonId"),
		q("Age"), t.id,
	)
	return []string{person, kid}
}

// RecreateStatements 删除后重建
func RecreateStatements(driver batchinsert.SQLDriver) []string {
	return append(DropStatements(driver), CreateStatements(driver)...)
}
