package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"practicelab/internal/common/cache"
	"practicelab/internal/dataset/model"
	"practicelab/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix  = "practice:dataset:"
	defaultCacheTTL = 30 * time.Minute
	defaultEmptyTTL = time.Minute
)

// CachedConfig configures the cache-aside wrapper.
type CachedConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	EmptyTTL time.Duration `yaml:"emptyTTL"`
}

// Cached puts a shared cache in front of another fetcher. Misses for the same
// question are collapsed into one upstream call.
type Cached struct {
	next     Fetcher
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
	group    singleflight.Group
}

func NewCached(next Fetcher, c cache.Cache, cfg CachedConfig) (*Cached, error) {
	if next == nil {
		return nil, fmt.Errorf("next fetcher is required")
	}
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	if cfg.EmptyTTL <= 0 {
		cfg.EmptyTTL = defaultEmptyTTL
	}
	return &Cached{next: next, cache: c, ttl: cfg.TTL, emptyTTL: cfg.EmptyTTL}, nil
}

// CacheKey returns the cache key of a question's payload.
func CacheKey(questionID string) string {
	return cacheKeyPrefix + questionID
}

func (c *Cached) Fetch(ctx context.Context, questionID string) (any, error) {
	v, err, _ := c.group.Do(questionID, func() (any, error) {
		return cache.GetWithCached(ctx, c.cache, CacheKey(questionID), c.ttl, c.emptyTTL,
			func(v any) bool { return v == nil },
			func(v any) (string, error) {
				b, err := json.Marshal(v)
				return string(b), err
			},
			func(s string) (any, error) { return model.DecodeJSON([]byte(s)) },
			func(ctx context.Context) (any, error) {
				logger.Debug(ctx, "dataset payload cache miss", zap.String("question_id", questionID))
				return c.next.Fetch(ctx, questionID)
			})
	})
	return v, err
}
