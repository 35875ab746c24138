// internal/stats/cache.go
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

// RedisStore is the subset of *redis.Client used by CachedProvider.
type RedisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedProvider keeps successful lookups in Redis for ttl.
// Redis failures are logged and the inner provider is used instead.
type CachedProvider struct {
	inner  Provider
	rdb    RedisStore
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
}

func NewCachedProvider(inner Provider, rdb RedisStore, ttl time.Duration, logger *logrus.Logger) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		prefix: "lobbyhost:stats:",
		logger: logger,
	}
}

func (c *CachedProvider) Fetch(ctx context.Context, playerID string) (models.PlayerStats, error) {
	key := c.prefix + playerID

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached models.PlayerStats
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			cached.PlayerID = playerID
			cached.Fetched = true
			return cached, nil
		}
		c.logger.WithField("key", key).Warn("Discarding undecodable cached stats")
	case !errors.Is(err, redis.Nil):
		c.logger.WithFields(logrus.Fields{"key": key, "error": err}).Warn("Stats cache read failed")
	}

	stats, err := c.inner.Fetch(ctx, playerID)
	if err != nil {
		return stats, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.WithFields(logrus.Fields{"key": key, "error": err}).Warn("Stats cache write failed")
		}
	}
	return stats, nil
}
