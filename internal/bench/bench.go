// Package bench times the insert strategies insertbench compares.
package bench

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/rushairer/batchinsert"
	"github.com/rushairer/batchinsert/internal/sample"
	"github.com/rushairer/batchinsert/monitoring"
)

// 策略名称
const (
	StrategyBatch   = "batch"
	StrategyPerItem = "per-item"
)

// Strategy 一种插入方式
type Strategy func(ctx context.Context, people []*sample.Person) error

// Runner 基准执行器
type Runner struct {
	db        *sql.DB
	conn      *batchinsert.DBConn
	driver    batchinsert.SQLDriver
	persons   *batchinsert.Inserter[*sample.Person]
	kids      *batchinsert.Inserter[sample.KidRow]
	batchSize int
	metrics   *monitoring.PrometheusMetrics
	logger    *slog.Logger
}

// Options 可选配置
type Options struct {
	BatchSize    int
	Metrics      *monitoring.PrometheusMetrics
	Logger       *slog.Logger
	SuffixSource batchinsert.SuffixSource
	Retry        batchinsert.RetryConfig
}

// NewRunner 创建基准执行器
func NewRunner(db *sql.DB, driver batchinsert.SQLDriver, opts Options) (*Runner, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 250
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	persons, err := sample.NewPersonInserter(driver)
	if err != nil {
		return nil, fmt.Errorf("person inserter: %w", err)
	}
	kids, err := sample.NewKidInserter(driver)
	if err != nil {
		return nil, fmt.Errorf("kid inserter: %w", err)
	}
	persons.WithLogger(opts.Logger).WithSuffixSource(opts.SuffixSource).WithRetryConfig(opts.Retry)
	kids.WithLogger(opts.Logger).WithSuffixSource(opts.SuffixSource)
	if opts.Metrics != nil {
		persons.WithMetricsReporter(opts.Metrics)
		kids.WithMetricsReporter(opts.Metrics)
	}

	return &Runner{
		db:        db,
		conn:      batchinsert.NewDBConn(db),
		driver:    driver,
		persons:   persons,
		kids:      kids,
		batchSize: opts.BatchSize,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}, nil
}

// Strategies 可用策略
func (r *Runner) Strategies() map[string]Strategy {
	return map[string]Strategy{
		StrategyBatch:   r.InsertBatched,
		StrategyPerItem: r.InsertPerItem,
	}
}

// Recreate 重建示例表
func (r *Runner) Recreate(ctx context.Context) error {
	for _, stmt := range sample.RecreateStatements(r.driver) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("recreate schema: %w", err)
		}
	}
	return nil
}

// insertKids 提交前回调：Person 的 id 已回填，在同一事务中插入孩子
func (r *Runner) insertKids(ctx context.Context, people []*sample.Person, conn batchinsert.Conn, tx batchinsert.Tx) error {
	rows := sample.KidRows(people)
	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		if _, err := r.kids.Insert(ctx, rows[start:end], conn, tx, nil); err != nil {
			return err
		}
	}
	return nil
}

// InsertBatched 每 batchSize 个人一次插入调用，各自一个事务
func (r *Runner) InsertBatched(ctx context.Context, people []*sample.Person) error {
	for start := 0; start < len(people); start += r.batchSize {
		end := min(start+r.batchSize, len(people))
		if _, err := r.persons.Insert(ctx, people[start:end], r.conn, nil, r.insertKids); err != nil {
			return err
		}
	}
	return nil
}

// InsertPerItem 一个事务内逐个插入
func (r *Runner) InsertPerItem(ctx context.Context, people []*sample.Person) (err error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, p := range people {
		if _, err = r.persons.Insert(ctx, []*sample.Person{p}, r.conn, tx, r.insertKids); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Run 重建表、预热一次，然后计时第二次运行
func (r *Runner) Run(ctx context.Context, name string, people []*sample.Person) monitoring.StrategyResult {
	result := monitoring.StrategyResult{Strategy: name, Records: int64(len(people))}
	strategy, ok := r.Strategies()[name]
	if !ok {
		result.Err = fmt.Errorf("unknown strategy %q", name)
		return result
	}
	if r.metrics != nil {
		r.metrics.SetCurrentStrategy(name)
	}

	if err := r.Recreate(ctx); err != nil {
		result.Err = err
		return result
	}
	r.logger.InfoContext(ctx, "warming up", "strategy", name, "people", len(people))
	if err := strategy(ctx, people); err != nil {
		result.Err = fmt.Errorf("warm-up: %w", err)
		return result
	}

	start := time.Now()
	err := strategy(ctx, people)
	result.Duration = time.Since(start)
	result.Err = err
	if err == nil && r.metrics != nil {
		r.metrics.RecordStrategyResult(result)
	}
	r.logger.InfoContext(ctx, "strategy finished", "strategy", name, "duration", result.Duration, "error", err)
	return result
}

// Count 表中行数
func (r *Runner) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.driver.QuoteIdentifier(table)).Scan(&n)
	return n, err
}
