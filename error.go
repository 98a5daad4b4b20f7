package batchinsert

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration 列映射配置错误（重复列、缺少列、缺少回调等），只在构造阶段出现
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidOperation 外部事务不属于传入的连接
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDataIntegrity 暂存表为空或行数与输入不一致
	ErrDataIntegrity = errors.New("data integrity error")

	// ErrEmptyBatch 空批次错误
	ErrEmptyBatch = errors.New("empty batch")
)

// ExecutionError wraps a failure reported by the underlying store while running a
// generated statement. The original driver error stays reachable through errors.As.
type ExecutionError struct {
	Op        string // begin, insert, create_staging, select_staging, drop_staging, commit ...
	Table     string
	Statement string
	Err       error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("batchinsert: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("batchinsert: %s on %s failed: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the driver error
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...)
}

func executionError(op, table, statement string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Op: op, Table: table, Statement: statement, Err: err}
}
