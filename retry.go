package batchinsert

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RetryConfig 可选重试配置（零值关闭）
//
// 只在引擎自己持有事务时生效：每次失败的尝试都已整体回滚，重跑才是安全的。
// 外部事务永远不会重试；提交或回滚失败时结果未知，也不重试。
type RetryConfig struct {
	Enabled     bool
	MaxAttempts int           // 总尝试次数（含首轮），建议 2~3
	BackoffBase time.Duration // 退避基值（指数退避起点）
	MaxBackoff  time.Duration // 最大退避时长（上限）
	// 自定义错误分类（可选）；返回是否可重试与原因标签
	Classifier func(error) (retryable bool, reason string)
}

func (cfg RetryConfig) normalize() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 20 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultRetryClassifier
	}
	return cfg
}

func (cfg RetryConfig) attempts() int {
	if cfg.Enabled && cfg.MaxAttempts > 1 {
		return cfg.MaxAttempts
	}
	return 1
}

// backoff 指数退避 + ±20% 抖动
func (cfg RetryConfig) backoff(attempt int, jitter func(int64) int64) time.Duration {
	b := cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		b *= 2
		if b > cfg.MaxBackoff {
			b = cfg.MaxBackoff
			break
		}
	}
	j := time.Duration(int64(float64(b) * 0.2))
	return b - j + time.Duration(jitter(int64(2*j+1)))
}

// DefaultRetryClassifier 朴素字符串分类；引擎自身的配置/完整性/事务归属错误永不重试。
// 需要按驱动错误码分类时使用 classify.Transient。
func DefaultRetryClassifier(err error) (bool, string) {
	if err == nil {
		return false, ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, "context"
	}
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrInvalidOperation) || errors.Is(err, ErrDataIntegrity) {
		return false, "non_retryable"
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "deadlock"):
		return true, "deadlock"
	case strings.Contains(s, "lock wait timeout"):
		return true, "lock_timeout"
	case strings.Contains(s, "timeout"):
		return true, "timeout"
	case strings.Contains(s, "connection") && (strings.Contains(s, "refused") || strings.Contains(s, "reset") || strings.Contains(s, "closed")):
		return true, "connection"
	case strings.Contains(s, "broken pipe") || strings.Contains(s, "eof"):
		return true, "io"
	default:
		return false, "non_retryable"
	}
}

// commitOutcomeUnknown 提交或回滚失败时事务结果未知，整体重跑可能重复写入
func commitOutcomeUnknown(err error) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *ExecutionError:
		if x.Op == "commit" || x.Op == "rollback" {
			return true
		}
		return commitOutcomeUnknown(x.Err)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if commitOutcomeUnknown(e) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return commitOutcomeUnknown(x.Unwrap())
	default:
		return false
	}
}

// errorKind 错误分类标签，用于指标
func errorKind(err error) string {
	var execErr *ExecutionError
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, ErrDataIntegrity):
		return "integrity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	case errors.As(err, &execErr):
		return "execution:" + execErr.Op
	default:
		return "hook"
	}
}

// randInt63n 返回 [0,n) 的随机数；仅用于退避抖动
func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	seed := time.Now().UnixNano()
	seed = (seed*6364136223846793005 + 1) & 0x7fffffffffffffff
	return seed % n
}
