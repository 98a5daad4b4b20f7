package batchinsert

import (
	"strings"
	"sync"
)

// Column 单列映射定义
type Column[T any] struct {
	Name      string      // 目标列名
	Generated bool        // 由数据库生成（自增/标识列）
	SQLType   string      // 暂存表中声明该列使用的类型，仅 Generated 时有效
	Extract   func(T) any // 从源对象取值，Generated 时为 nil
}

// GeneratedColumn 数据库生成列的描述（交给 SQLDriver 使用）
type GeneratedColumn struct {
	Name    string
	SQLType string
}

// Mapping 目标表的列映射集合
//
// 列的注册顺序就是 INSERT 语句中列和参数的顺序。Mapping 被 NewInserter 使用后即被封存，
// 之后的注册都会返回 ErrConfiguration。
type Mapping[T any] struct {
	table   string
	columns []Column[T]
	mu      sync.Mutex
	sealed  bool
}

// NewMapping 创建表映射
func NewMapping[T any](table string) *Mapping[T] {
	return &Mapping[T]{table: table}
}

// Table 返回目标表名
func (m *Mapping[T]) Table() string {
	return m.table
}

// AddColumn 注册普通列
func (m *Mapping[T]) AddColumn(name string, extract func(T) any) error {
	if extract == nil {
		return configErrorf("column %q of %s has no extract function", name, m.table)
	}
	return m.add(Column[T]{Name: name, Extract: extract})
}

// AddGeneratedColumn 注册由数据库赋值的列，sqlType 用于声明暂存表中的对应列
func (m *Mapping[T]) AddGeneratedColumn(name, sqlType string) error {
	if strings.TrimSpace(sqlType) == "" {
		return configErrorf("generated column %q of %s has no sql type", name, m.table)
	}
	return m.add(Column[T]{Name: name, Generated: true, SQLType: sqlType})
}

// MustAddColumn 同 AddColumn，出错时 panic，适合静态初始化
func (m *Mapping[T]) MustAddColumn(name string, extract func(T) any) *Mapping[T] {
	if err := m.AddColumn(name, extract); err != nil {
		panic(err)
	}
	return m
}

// MustAddGeneratedColumn 同 AddGeneratedColumn，出错时 panic
func (m *Mapping[T]) MustAddGeneratedColumn(name, sqlType string) *Mapping[T] {
	if err := m.AddGeneratedColumn(name, sqlType); err != nil {
		panic(err)
	}
	return m
}

func (m *Mapping[T]) add(col Column[T]) error {
	if strings.TrimSpace(col.Name) == "" {
		return configErrorf("empty column name on %s", m.table)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return configErrorf("mapping of %s is already in use by an inserter", m.table)
	}
	for _, c := range m.columns {
		if strings.EqualFold(c.Name, col.Name) {
			return configErrorf("column %q is already registered on %s", col.Name, m.table)
		}
	}
	m.columns = append(m.columns, col)
	return nil
}

// Columns 返回所有列的副本（按注册顺序）
func (m *Mapping[T]) Columns() []Column[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Column[T], len(m.columns))
	copy(out, m.columns)
	return out
}

// seal 封存映射并返回快照
func (m *Mapping[T]) seal() []Column[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sealed = true
	out := make([]Column[T], len(m.columns))
	copy(out, m.columns)
	return out
}

// splitColumns separates plain and generated columns, keeping registration order.
func splitColumns[T any](columns []Column[T]) (plain []Column[T], generated []GeneratedColumn) {
	for _, c := range columns {
		if c.Generated {
			generated = append(generated, GeneratedColumn{Name: c.Name, SQLType: c.SQLType})
			continue
		}
		plain = append(plain, c)
	}
	return plain, generated
}
