package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gimat/hydrocast/internal/models"
)

// RedisDecompositionCache caches decomposition results per (station,
// variable, as-of timestamp). Decomposition is pure, so a cached result is
// valid for the whole TTL window.
type RedisDecompositionCache struct {
	redis  *redis.Client
	logger *logrus.Logger
	ttl    time.Duration
	stats  *CacheStats
	prefix string
}

type decompositionCacheEntry struct {
	Decomposed models.DecomposedSeries `json:"decomposed"`
	Source     models.TimeSeries       `json:"source"`
	CachedAt   time.Time               `json:"cached_at"`
}

func NewRedisDecompositionCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisDecompositionCache {
	return &RedisDecompositionCache{
		redis:  redisClient,
		logger: logger,
		ttl:    ttl,
		stats:  &CacheStats{},
		prefix: "decomposition_cache:",
	}
}

func (c *RedisDecompositionCache) key(stationID string, variable models.Variable, asOf time.Time) string {
	return fmt.Sprintf("%s%s:%s:%d", c.prefix, stationID, variable, asOf.Unix())
}

// Get retrieves a cached decomposition keyed by the series' last timestamp.
func (c *RedisDecompositionCache) Get(ctx context.Context, stationID string, variable models.Variable, asOf time.Time) (*models.DecomposedSeries, bool) {
	data, err := c.redis.Get(ctx, c.key(stationID, variable, asOf)).Result()
	if err == redis.Nil {
		c.stats.miss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("decomposition cache read failed")
		c.stats.miss()
		return nil, false
	}

	var entry decompositionCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("decomposition cache entry corrupt")
		c.stats.miss()
		return nil, false
	}

	entry.Decomposed.Source = entry.Source
	c.stats.hit()
	return &entry.Decomposed, true
}

// Set stores a decomposition result.
func (c *RedisDecompositionCache) Set(ctx context.Context, stationID string, variable models.Variable, asOf time.Time, d *models.DecomposedSeries) {
	entry := decompositionCacheEntry{
		Decomposed: *d,
		Source:     d.Source,
		CachedAt:   time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("decomposition cache marshal failed")
		return
	}

	if err := c.redis.Set(ctx, c.key(stationID, variable, asOf), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("decomposition cache write failed")
		return
	}
	c.stats.set()
}

// Stats exposes the cache counters.
func (c *RedisDecompositionCache) Stats() *CacheStats {
	return c.stats
}
