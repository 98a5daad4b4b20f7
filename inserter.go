// Package batchinsert inserts typed slices into a relational table with one batched
// INSERT per call and, when the table has database-generated columns, recovers the
// generated values through a transaction-scoped staging table.
package batchinsert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// AfterInsertFunc 把一行生成值写回源对象，返回更新后的对象
type AfterInsertFunc[T any] func(item T, values GeneratedValues) (T, error)

// PreCommitFunc 提交前回调，可在同一事务内继续插入依赖数据（如子表）
type PreCommitFunc[T any] func(ctx context.Context, items []T, conn Conn, tx Tx) error

// Inserter 批量插入引擎
//
// 架构：Inserter -> SQLDriver（生成 SQL）-> Tx（执行）
// 构造完成后列映射不可变，同一个 Inserter 可被多个 goroutine 并发使用；
// With* 方法只应在构造阶段调用。
type Inserter[T any] struct {
	table     string
	driver    SQLDriver
	columns   []string // 普通列，注册顺序
	binding   bindingTemplate[T]
	generated []GeneratedColumn

	afterInsert AfterInsertFunc[T]
	preCommit   PreCommitFunc[T]

	suffixes        SuffixSource
	metricsReporter MetricsReporter
	logger          *slog.Logger
	retry           RetryConfig
}

// NewInserter 创建插入器并封存 mapping
//
// mapping 含生成列时 afterInsert 必填。校验失败时 mapping 同样保持封存。
func NewInserter[T any](mapping *Mapping[T], driver SQLDriver, afterInsert AfterInsertFunc[T]) (*Inserter[T], error) {
	if mapping == nil {
		return nil, configErrorf("nil mapping")
	}
	if driver == nil {
		return nil, configErrorf("nil driver for %s", mapping.Table())
	}
	if mapping.Table() == "" {
		return nil, configErrorf("empty table name")
	}

	// 先封存再校验，校验的就是最终使用的快照
	plain, generated := splitColumns(mapping.seal())
	if len(plain) == 0 {
		return nil, configErrorf("%s has no insertable columns", mapping.Table())
	}
	if len(generated) > 0 && afterInsert == nil {
		return nil, configErrorf("%s has generated columns but no after-insert hook", mapping.Table())
	}
	if err := driver.ValidateGenerated(generated); err != nil {
		return nil, err
	}

	columns := make([]string, len(plain))
	for i, c := range plain {
		columns[i] = c.Name
	}

	return &Inserter[T]{
		table:           mapping.Table(),
		driver:          driver,
		columns:         columns,
		binding:         newBindingTemplate(plain),
		generated:       generated,
		afterInsert:     afterInsert,
		suffixes:        NewRandomSuffixSource(16),
		metricsReporter: NewNoopMetricsReporter(),
		logger:          slog.New(slog.DiscardHandler),
		retry:           RetryConfig{}.normalize(),
	}, nil
}

// WithPreCommit 设置插入器级别的提交前回调，先于每次调用传入的回调执行
func (ins *Inserter[T]) WithPreCommit(fn PreCommitFunc[T]) *Inserter[T] {
	ins.preCommit = fn
	return ins
}

// WithSuffixSource 设置暂存表名后缀来源
func (ins *Inserter[T]) WithSuffixSource(src SuffixSource) *Inserter[T] {
	if src != nil {
		ins.suffixes = src
	}
	return ins
}

// WithMetricsReporter 设置指标报告器
func (ins *Inserter[T]) WithMetricsReporter(reporter MetricsReporter) *Inserter[T] {
	if reporter == nil {
		reporter = NewNoopMetricsReporter()
	}
	ins.metricsReporter = reporter
	return ins
}

// WithLogger 设置日志
func (ins *Inserter[T]) WithLogger(logger *slog.Logger) *Inserter[T] {
	if logger != nil {
		ins.logger = logger
	}
	return ins
}

// WithRetryConfig 启用/配置重试（仅对引擎自己开启的事务生效）
func (ins *Inserter[T]) WithRetryConfig(cfg RetryConfig) *Inserter[T] {
	ins.retry = cfg.normalize()
	return ins
}

// Table 目标表名
func (ins *Inserter[T]) Table() string { return ins.table }

// Driver 使用的方言
func (ins *Inserter[T]) Driver() SQLDriver { return ins.driver }

// Columns 普通列名（即参数绑定顺序）
func (ins *Inserter[T]) Columns() []string {
	out := make([]string, len(ins.columns))
	copy(out, ins.columns)
	return out
}

// GeneratedColumns 生成列
func (ins *Inserter[T]) GeneratedColumns() []GeneratedColumn {
	out := make([]GeneratedColumn, len(ins.generated))
	copy(out, ins.generated)
	return out
}

func (ins *Inserter[T]) path() string {
	if len(ins.generated) > 0 {
		return PathCapture
	}
	return PathPlain
}

// Insert 批量插入 items
//
// tx 为 nil 时引擎在 conn 上开启事务，成功后提交，任何错误都会先回滚再返回；
// tx 不为 nil 时必须属于 conn，引擎只在其中执行语句，提交与回滚由调用方负责。
// 返回的切片与输入等长同序；含生成列时其中的元素是 AfterInsertFunc 的返回值。
func (ins *Inserter[T]) Insert(ctx context.Context, items []T, conn Conn, tx Tx, preCommit PreCommitFunc[T]) ([]T, error) {
	if len(items) == 0 {
		return items, nil
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrInvalidOperation)
	}
	if tx != nil && tx.Conn() != conn {
		return nil, fmt.Errorf("%w: the transaction was started by a different connection", ErrInvalidOperation)
	}

	startTime := time.Now()
	status := "success"
	ins.metricsReporter.IncInflight()
	defer ins.metricsReporter.DecInflight()
	ins.metricsReporter.ObserveBatchSize(len(items))

	var (
		out []T
		err error
	)
	if tx != nil {
		out, err = ins.run(ctx, items, conn, tx, preCommit)
	} else {
		out, err = ins.runOwned(ctx, items, conn, preCommit)
	}
	if err != nil {
		status = "fail"
		ins.metricsReporter.IncError(ins.table, "final:"+errorKind(err))
		out = nil
	}

	ins.metricsReporter.ObserveExecuteDuration(ins.table, ins.path(), len(items), time.Since(startTime), status)
	return out, err
}

// runOwned 引擎持有事务，按重试配置整体重跑
func (ins *Inserter[T]) runOwned(ctx context.Context, items []T, conn Conn, preCommit PreCommitFunc[T]) ([]T, error) {
	attempts := ins.retry.attempts()
	for attempt := 1; ; attempt++ {
		out, err := ins.inOwnedTx(ctx, items, conn, preCommit)
		if err == nil {
			return out, nil
		}
		if attempt >= attempts || commitOutcomeUnknown(err) {
			return nil, err
		}

		retryable, reason := ins.retry.Classifier(err)
		if !retryable {
			return nil, err
		}
		ins.metricsReporter.IncError(ins.table, "retry:"+reason)
		ins.logger.WarnContext(ctx, "retrying insert", "table", ins.table, "attempt", attempt, "reason", reason, "error", err)

		timer := time.NewTimer(ins.retry.backoff(attempt, randInt63n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

func (ins *Inserter[T]) inOwnedTx(ctx context.Context, items []T, conn Conn, preCommit PreCommitFunc[T]) ([]T, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, executionError("begin", ins.table, "", err)
	}

	finished := false
	defer func() {
		// 回调 panic 时也要回滚
		if !finished {
			_ = tx.Rollback()
		}
	}()

	out, err := ins.run(ctx, items, conn, tx, preCommit)
	if err != nil {
		finished = true
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			ins.logger.WarnContext(ctx, "rollback failed", "table", ins.table, "error", rbErr)
			err = errors.Join(err, executionError("rollback", ins.table, "", rbErr))
		}
		return nil, err
	}

	finished = true
	if err := tx.Commit(); err != nil {
		return nil, executionError("commit", ins.table, "", err)
	}
	return out, nil
}

// run 执行插入路径与提交前回调
func (ins *Inserter[T]) run(ctx context.Context, items []T, conn Conn, tx Tx, preCommit PreCommitFunc[T]) ([]T, error) {
	args, err := ins.binding.args(ctx, items)
	if err != nil {
		return nil, err
	}

	out := items
	if len(ins.generated) == 0 {
		err = ins.insertPlain(ctx, tx, len(items), args)
	} else {
		out, err = ins.insertCapture(ctx, tx, items, args)
	}
	if err != nil {
		return nil, err
	}

	if ins.preCommit != nil {
		if err := ins.preCommit(ctx, out, conn, tx); err != nil {
			return nil, fmt.Errorf("pre-commit hook on %s: %w", ins.table, err)
		}
	}
	if preCommit != nil {
		if err := preCommit(ctx, out, conn, tx); err != nil {
			return nil, fmt.Errorf("pre-commit hook on %s: %w", ins.table, err)
		}
	}
	return out, nil
}

func (ins *Inserter[T]) insertPlain(ctx context.Context, tx Tx, rows int, args []any) error {
	stmt, err := ins.driver.GenerateInsertSQL(ins.table, ins.columns, rows)
	if err != nil {
		return err
	}
	return ins.exec(ctx, tx, "insert", stmt, args...)
}

// insertCapture 暂存表往返：创建 -> 带输出的插入 -> 读回 -> 校验 -> 按位置回填 -> 删除
//
// 按位置配对依赖存储在单语句多行插入中保持插入顺序地写入暂存表。
func (ins *Inserter[T]) insertCapture(ctx context.Context, tx Tx, items []T, args []any) (out []T, err error) {
	suffix, err := ins.suffixes.NextSuffix(ctx)
	if err != nil {
		return nil, fmt.Errorf("staging suffix for %s: %w", ins.table, err)
	}
	staging := ins.driver.StagingName(ins.table, suffix)

	capture, err := ins.driver.GenerateCaptureInsertSQL(ins.table, ins.columns, ins.generated, staging, len(items))
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			ins.dropStagingQuietly(ctx, tx, staging)
		}
	}()

	for _, stmt := range ins.driver.GenerateCreateStagingSQL(staging, ins.generated) {
		if err = ins.exec(ctx, tx, "create_staging", stmt); err != nil {
			return nil, err
		}
	}
	for _, stmt := range capture.Before {
		if err = ins.exec(ctx, tx, "capture", stmt); err != nil {
			return nil, err
		}
	}
	if err = ins.exec(ctx, tx, "insert", capture.Insert, args...); err != nil {
		return nil, err
	}
	for _, stmt := range capture.FollowUp {
		if err = ins.exec(ctx, tx, "capture", stmt); err != nil {
			return nil, err
		}
	}

	results, err := ins.readStaging(ctx, tx, staging)
	if err != nil {
		return nil, err
	}
	ins.metricsReporter.ObserveStagingRows(ins.table, len(results))

	if len(results) == 0 {
		err = fmt.Errorf("%w: failed to retrieve any results from the insert into %s", ErrDataIntegrity, ins.table)
		return nil, err
	}
	if len(results) != len(items) {
		err = fmt.Errorf("%w: received %d results for %d items inserted into %s", ErrDataIntegrity, len(results), len(items), ins.table)
		return nil, err
	}

	out = make([]T, len(items))
	for i, item := range items {
		if out[i], err = ins.afterInsert(item, results[i]); err != nil {
			err = fmt.Errorf("after-insert hook on %s item %d: %w", ins.table, i, err)
			return nil, err
		}
	}

	for _, stmt := range ins.driver.GenerateDropStagingSQL(staging) {
		if err = ins.exec(ctx, tx, "drop_staging", stmt); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ins *Inserter[T]) readStaging(ctx context.Context, tx Tx, staging string) ([]GeneratedValues, error) {
	query := ins.driver.GenerateSelectStagingSQL(staging, ins.generated)
	ins.logger.DebugContext(ctx, "query statement", "op", "select_staging", "table", ins.table, "sql", query)

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, executionError("select_staging", ins.table, query, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, executionError("select_staging", ins.table, query, err)
	}
	// 列按生成列顺序选出，优先使用注册时的名字
	if len(names) == len(ins.generated) {
		names = generatedNames(ins.generated)
	}

	var results []GeneratedValues
	for rows.Next() {
		values := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, executionError("select_staging", ins.table, query, err)
		}
		row := make(GeneratedValues, len(names))
		for i, name := range names {
			row[name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, executionError("select_staging", ins.table, query, err)
	}
	return results, nil
}

// dropStagingQuietly 失败路径上尽力删除暂存表；回滚仍会清理事务内的临时状态
func (ins *Inserter[T]) dropStagingQuietly(ctx context.Context, tx Tx, staging string) {
	ctx = context.WithoutCancel(ctx)
	for _, stmt := range ins.driver.GenerateDropStagingSQL(staging) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			ins.logger.WarnContext(ctx, "staging cleanup skipped", "table", ins.table, "sql", stmt, "error", err)
			return
		}
	}
}

func (ins *Inserter[T]) exec(ctx context.Context, tx Tx, op, stmt string, args ...any) error {
	ins.logger.DebugContext(ctx, "exec statement", "op", op, "table", ins.table, "sql", stmt, "args", len(args))
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return executionError(op, ins.table, stmt, err)
	}
	return nil
}
