package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"venturelab/internal/metrics"
)

const defaultCachePrefix = "venturelab:llm:"

// CachedClient answers repeated identical requests from Redis. Redis
// failures never fail a completion; the request falls through upstream.
type CachedClient struct {
	next   Client
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

func NewCachedClient(next Client, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedClient{next: next, rdb: rdb, ttl: ttl, prefix: defaultCachePrefix, log: log}
}

// CacheKey is the Redis key for a request.
func (c *CachedClient) CacheKey(req Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return c.prefix + hex.EncodeToString(sum[:]), nil
}

func (c *CachedClient) Complete(ctx context.Context, req Request) (Response, error) {
	key, err := c.CacheKey(req)
	if err != nil {
		return c.next.Complete(ctx, req)
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Response
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && cached.Text != "" {
			metrics.CacheLookups.WithLabelValues("llm", "hit").Inc()
			c.log.Debug("completion cache hit", zap.String("model", req.Model))
			return cached, nil
		}
		metrics.CacheLookups.WithLabelValues("llm", "corrupt").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("llm", "miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("llm", "error").Inc()
		c.log.Warn("completion cache get failed", zap.Error(err))
	}

	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if data, err := json.Marshal(resp); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("completion cache set failed", zap.Error(err))
		}
	}
	return resp, nil
}

// Forget removes the stored completion for req.
func (c *CachedClient) Forget(ctx context.Context, req Request) error {
	key, err := c.CacheKey(req)
	if err != nil {
		return err
	}
	return c.rdb.Del(ctx, key).Err()
}
