// Package config loads insertbench settings from a YAML file, a .env file and the
// process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rushairer/batchinsert"
)

const envPrefix = "INSERTBENCH_"

// Config 基准程序配置
type Config struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	People      int      `yaml:"people"`
	MaxKids     int      `yaml:"max_kids"`
	BatchSize   int      `yaml:"batch_size"`
	Strategies  []string `yaml:"strategies"`
	MetricsAddr string   `yaml:"metrics_addr"`
	RedisAddr   string   `yaml:"redis_addr"`
	Verbose     bool     `yaml:"verbose"`
}

// Default 默认配置：内存 SQLite，一万人
func Default() Config {
	return Config{
		Driver:     "sqlite3",
		DSN:        "file:insertbench?mode=memory&cache=shared",
		People:     10000,
		MaxKids:    3,
		BatchSize:  250,
		Strategies: []string{"batch", "per-item"},
	}
}

// Load 读取配置。path 为空时跳过 YAML；envFile 不存在时忽略
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("DRIVER"); ok {
		c.Driver = v
	}
	if v, ok := lookup("DSN"); ok {
		c.DSN = v
	}
	if v, ok := lookup("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.RedisAddr = v
	}
	if v, ok := lookup("STRATEGIES"); ok {
		c.Strategies = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Strategies = append(c.Strategies, s)
			}
		}
	}
	for name, dst := range map[string]*int{"PEOPLE": &c.People, "MAX_KIDS": &c.MaxKids, "BATCH_SIZE": &c.BatchSize} {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}
	if v, ok := lookup("VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERBOSE: %w", envPrefix, err)
		}
		c.Verbose = b
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Validate 校验配置
func (c Config) Validate() error {
	if _, err := batchinsert.DriverFor(c.Driver); err != nil {
		return err
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	if c.People <= 0 {
		return fmt.Errorf("people must be positive, got %d", c.People)
	}
	if c.MaxKids < 0 {
		return fmt.Errorf("max_kids cannot be negative, got %d", c.MaxKids)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if len(c.Strategies) == 0 {
		return errors.New("no strategies selected")
	}
	return nil
}

// NormalizedDSN 返回驱动可直接使用的 DSN；MySQL 需要 parseTime 才能把 DATETIME 扫描成 time.Time
func (c Config) NormalizedDSN() (string, error) {
	if strings.ToLower(c.Driver) != "mysql" {
		return c.DSN, nil
	}
	mc, err := mysql.ParseDSN(c.DSN)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}
