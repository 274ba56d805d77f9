package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gimat/hydrocast/internal/models"
)

// Neighbor is one entry of a traversal result: a related station, its
// cumulative along-edge distance, and the kind of the edge it was reached
// through.
type Neighbor struct {
	StationID string          `json:"station_id"`
	Distance  float64         `json:"distance_km"`
	Kind      models.EdgeKind `json:"kind"`
	Hops      int             `json:"hops"`
}

// topologyCacheEntry wraps a traversal result with expiry metadata.
type topologyCacheEntry struct {
	Neighbors []Neighbor `json:"neighbors"`
	CachedAt  time.Time  `json:"cached_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// CacheStats tracks cache performance counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

func (s *CacheStats) hit()  { s.mu.Lock(); s.Hits++; s.mu.Unlock() }
func (s *CacheStats) miss() { s.mu.Lock(); s.Misses++; s.mu.Unlock() }
func (s *CacheStats) set()  { s.mu.Lock(); s.Sets++; s.mu.Unlock() }

// Snapshot returns a copy of the counters.
func (s *CacheStats) Snapshot() (hits, misses, sets int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Hits, s.Misses, s.Sets
}

// RedisTopologyCache caches bounded-hop traversal results in Redis. The TTL
// matches the ingestion interval: once new edges can have landed, entries
// expire.
type RedisTopologyCache struct {
	redis  *redis.Client
	logger *logrus.Logger
	ttl    time.Duration
	stats  *CacheStats
	prefix string
}

func NewRedisTopologyCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisTopologyCache {
	return &RedisTopologyCache{
		redis:  redisClient,
		logger: logger,
		ttl:    ttl,
		stats:  &CacheStats{},
		prefix: "topology_cache:",
	}
}

func (c *RedisTopologyCache) key(stationID, direction string, maxHops int) string {
	return fmt.Sprintf("%s%s:%s:%d", c.prefix, stationID, direction, maxHops)
}

// Get retrieves a cached traversal result.
func (c *RedisTopologyCache) Get(ctx context.Context, stationID, direction string, maxHops int) ([]Neighbor, bool) {
	data, err := c.redis.Get(ctx, c.key(stationID, direction, maxHops)).Result()
	if err == redis.Nil {
		c.stats.miss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("topology cache read failed")
		c.stats.miss()
		return nil, false
	}

	var entry topologyCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("topology cache entry corrupt")
		c.stats.miss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.stats.miss()
		return nil, false
	}

	c.stats.hit()
	return entry.Neighbors, true
}

// Set stores a traversal result. Empty results are cached too; isolated
// headwater stations are queried as often as any other.
func (c *RedisTopologyCache) Set(ctx context.Context, stationID, direction string, maxHops int, neighbors []Neighbor) {
	entry := topologyCacheEntry{
		Neighbors: neighbors,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("topology cache marshal failed")
		return
	}

	if err := c.redis.Set(ctx, c.key(stationID, direction, maxHops), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("station_id", stationID).Warn("topology cache write failed")
		return
	}
	c.stats.set()
}

// Stats exposes the cache counters.
func (c *RedisTopologyCache) Stats() *CacheStats {
	return c.stats
}
