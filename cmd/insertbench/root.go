package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	// database/sql 驱动注册
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/rushairer/batchinsert"
	"github.com/rushairer/batchinsert/classify"
	"github.com/rushairer/batchinsert/internal/bench"
	"github.com/rushairer/batchinsert/internal/config"
	"github.com/rushairer/batchinsert/internal/sample"
	"github.com/rushairer/batchinsert/monitoring"
)

type flags struct {
	configPath string
	envFile    string
	driver     string
	dsn        string
	people     int
	batchSize  int
	metrics    string
	redis      string
	dump       bool
	verbose    bool
	hold       time.Duration
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "insertbench",
		Short:         "Compare batched inserts with generated-id recovery against per-row inserts",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath, f.envFile)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file with INSERTBENCH_* overrides")
	fs.StringVar(&f.driver, "driver", "", "database/sql driver name (sqlserver, postgres, pgx, mysql, sqlite3)")
	fs.StringVar(&f.dsn, "dsn", "", "data source name")
	fs.IntVarP(&f.people, "people", "n", 0, "number of people to insert")
	fs.IntVar(&f.batchSize, "batch-size", 0, "people per insert call in the batch strategy")
	fs.StringVar(&f.metrics, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.StringVar(&f.redis, "redis-addr", "", "draw staging table suffixes from this Redis server")
	fs.BoolVar(&f.dump, "dump", false, "dump the first reconciled person")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every generated statement")
	fs.DurationVar(&f.hold, "hold", 0, "keep the metrics endpoint up this long after the run")
	return cmd
}

// apply 命令行参数覆盖配置文件与环境变量
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("driver") {
		cfg.Driver = f.driver
	}
	if changed("dsn") {
		cfg.DSN = f.dsn
	}
	if changed("people") {
		cfg.People = f.people
	}
	if changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metrics
	}
	if changed("redis-addr") {
		cfg.RedisAddr = f.redis
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}
}

func run(ctx context.Context, cfg config.Config, f *flags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	driver, err := batchinsert.DriverFor(cfg.Driver)
	if err != nil {
		return err
	}
	dsn, err := cfg.NormalizedDSN()
	if err != nil {
		return err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	defer db.Close()
	if driver.Name() == "sqlite" {
		// 内存库与 temp 对象都是连接级的
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	metrics := monitoring.NewPrometheusMetrics(driver.Name())
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, metrics, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := bench.Options{
		BatchSize: cfg.BatchSize,
		Metrics:   metrics,
		Logger:    logger,
		Retry: batchinsert.RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BackoffBase: 50 * time.Millisecond,
			MaxBackoff:  time.Second,
			Classifier:  classify.Transient,
		},
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		opts.SuffixSource = batchinsert.NewRedisSuffixSource(client, "")
	}

	runner, err := bench.NewRunner(db, driver, opts)
	if err != nil {
		return err
	}

	people := sample.NewPeople(cfg.People, cfg.MaxKids, nil)
	fmt.Printf("%s: %d people, batch size %d\n", driver.Name(), len(people), cfg.BatchSize)

	var errs []error
	for _, name := range cfg.Strategies {
		result := runner.Run(ctx, name, people)
		if result.Err != nil {
			fmt.Printf("%-10s failed: %v\n", name, result.Err)
			errs = append(errs, result.Err)
			continue
		}
		fmt.Printf("%-10s %12s %10.0f rows/s\n", name, result.Duration.Round(time.Millisecond), result.RecordsPerSecond())
	}

	if f.dump && len(people) > 0 {
		spew.Fdump(os.Stdout, people[0])
	}

	if f.hold > 0 && cfg.MetricsAddr != "" {
		logger.Info("holding metrics endpoint", "addr", cfg.MetricsAddr, "for", f.hold)
		select {
		case <-ctx.Done():
		case <-time.After(f.hold):
		}
	}
	return errors.Join(errs...)
}

func serveMetrics(addr string, metrics *monitoring.PrometheusMetrics, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
