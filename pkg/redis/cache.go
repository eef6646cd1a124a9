package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	linkKeyPrefix = "bookmark:code:"
	// DefaultInvalidateTTL 是失效标记的保留时间，期间不再回填该短码
	DefaultInvalidateTTL = 10 * time.Second
)

// LinkCache 缓存短码到目标 URL 的映射
//
// 失效时写入空值作为标记而不是直接删除，标记存在期间 Add 不会写入，
// 这样并发的重定向不会把修改前读到的 URL 回填进缓存。
type LinkCache struct {
	client        *redis.Client
	ttl           time.Duration
	invalidateTTL time.Duration
}

// NewLinkCache 创建短码缓存
func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	return &LinkCache{client: client, ttl: ttl, invalidateTTL: DefaultInvalidateTTL}
}

// Get 返回缓存的 URL，未命中或处于失效标记期时 ok 为 false
func (c *LinkCache) Get(ctx context.Context, code string) (string, bool, error) {
	url, err := c.client.Get(ctx, linkKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if url == "" {
		return "", false, nil
	}
	return url, true, nil
}

// Add 仅在键不存在时写入，返回是否写入成功
func (c *LinkCache) Add(ctx context.Context, code, url string) (bool, error) {
	return c.client.SetNX(ctx, linkKeyPrefix+code, url, c.ttl).Result()
}

// Invalidate 用失效标记覆盖已缓存的 URL
func (c *LinkCache) Invalidate(ctx context.Context, code string) error {
	return c.client.Set(ctx, linkKeyPrefix+code, "", c.invalidateTTL).Err()
}
