package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	redisconfig "github.com/weisyn/vmrunner/internal/config/storage/redis"
)

// goRedisClient go-redis 客户端实现
//
// go-redis 客户端本身是并发安全的。
type goRedisClient struct {
	client *goredis.Client
}

var _ redisClient = (*goRedisClient)(nil)

// newGoRedisClient 创建 go-redis 客户端并测试连接
func newGoRedisClient(ctx context.Context, opts *redisconfig.RedisOptions) (redisClient, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &goRedisClient{client: client}, nil
}

// Get 获取值；不存在时返回 (nil, false, nil)
func (c *goRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Set 写入值（不过期）
func (c *goRedisClient) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, 0).Err()
}

// Ping 测试连接
func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接
func (c *goRedisClient) Close() error {
	return c.client.Close()
}
