package batchinsert

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// bindingTemplate 固定顺序的参数绑定模板，构造一次，每次调用复用
type bindingTemplate[T any] struct {
	names    []string
	extracts []func(T) any
}

func newBindingTemplate[T any](plain []Column[T]) bindingTemplate[T] {
	b := bindingTemplate[T]{
		names:    make([]string, len(plain)),
		extracts: make([]func(T) any, len(plain)),
	}
	for i, c := range plain {
		b.names[i] = c.Name
		b.extracts[i] = c.Extract
	}
	return b
}

// args 按行优先顺序生成参数：item0.col0, item0.col1, item1.col0 ...
func (b bindingTemplate[T]) args(ctx context.Context, items []T) ([]any, error) {
	args := make([]any, 0, len(items)*len(b.extracts))
	for _, item := range items {
		// 忽略超时或取消的请求
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, extract := range b.extracts {
			args = append(args, extract(item))
		}
	}
	return args, nil
}

// GeneratedValues 一行暂存表数据：生成列名 -> 数据库赋予的值
type GeneratedValues map[string]any

// Int64 reads a generated integer, accepting the representations drivers hand back
// (MySQL's text protocol returns []byte, SQL Server INT comes back as int64, ...).
func (v GeneratedValues) Int64(name string) (int64, error) {
	raw, ok := v[name]
	if !ok {
		return 0, fmt.Errorf("generated value %q not present", name)
	}
	switch x := raw.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	case nil:
		return 0, fmt.Errorf("generated value %q is NULL", name)
	default:
		return 0, fmt.Errorf("generated value %q has unsupported type %T", name, raw)
	}
}

// String reads a generated value as text (uuid defaults, computed columns ...).
func (v GeneratedValues) String(name string) (string, error) {
	raw, ok := v[name]
	if !ok {
		return "", fmt.Errorf("generated value %q not present", name)
	}
	switch x := raw.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case nil:
		return "", fmt.Errorf("generated value %q is NULL", name)
	default:
		return fmt.Sprintf("%v", x), nil
	}
}
