package batchinsert

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// SuffixSource 暂存表名后缀来源，每次调用返回一个新的后缀，需并发安全
type SuffixSource interface {
	NextSuffix(ctx context.Context) (string, error)
}

// SuffixFunc adapts a plain function to SuffixSource.
type SuffixFunc func(ctx context.Context) (string, error)

func (f SuffixFunc) NextSuffix(ctx context.Context) (string, error) {
	return f(ctx)
}

// RandomSuffixSource 基于 UUIDv4 的随机后缀（默认）
type RandomSuffixSource struct {
	length int
}

// NewRandomSuffixSource length 为十六进制字符数，<=0 或 >32 时使用 16
func NewRandomSuffixSource(length int) *RandomSuffixSource {
	if length <= 0 || length > 32 {
		length = 16
	}
	return &RandomSuffixSource{length: length}
}

func (s *RandomSuffixSource) NextSuffix(ctx context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "")[:s.length], nil
}

// CounterSuffixSource 单调递增计数器后缀，prefix 用来区分进程/实例
type CounterSuffixSource struct {
	prefix string
	next   atomic.Uint64
}

func NewCounterSuffixSource(prefix string) *CounterSuffixSource {
	return &CounterSuffixSource{prefix: prefix}
}

func (s *CounterSuffixSource) NextSuffix(ctx context.Context) (string, error) {
	n := s.next.Add(1)
	if s.prefix == "" {
		return strconv.FormatUint(n, 10), nil
	}
	return s.prefix + "_" + strconv.FormatUint(n, 10), nil
}
