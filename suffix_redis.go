package batchinsert

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisSuffixKey 默认计数器键
const DefaultRedisSuffixKey = "batchinsert:staging:seq"

// RedisSuffixSource 用 Redis INCR 生成跨进程唯一的暂存表后缀
type RedisSuffixSource struct {
	client redis.Cmdable
	key    string
}

// NewRedisSuffixSource key 为空时使用 DefaultRedisSuffixKey
func NewRedisSuffixSource(client redis.Cmdable, key string) *RedisSuffixSource {
	if key == "" {
		key = DefaultRedisSuffixKey
	}
	return &RedisSuffixSource{client: client, key: key}
}

func (s *RedisSuffixSource) NextSuffix(ctx context.Context) (string, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return "", fmt.Errorf("redis suffix: %w", err)
	}
	return "r" + strconv.FormatInt(n, 10), nil
}
