// Package cache keeps hot records in process memory so repeated scans of
// the same code skip the remote tier round trip. Backed by Ristretto.
package cache

import (
	"time"

	"qr-code-tracker/config"
	"qr-code-tracker/model"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"
)

// recordCost approximates the memory cost of one cached record.
const recordCost = 1024

// Cache wraps Ristretto with record-typed accessors.
type Cache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

// New creates a cache instance with the given configuration.
func New(cfg config.CacheConfig) (*Cache, error) {
	maxCost := int64(cfg.MaxSizeMB) * 1024 * 1024

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(cfg.CounterSize),
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("max_size_mb", cfg.MaxSizeMB).
		Int("ttl_seconds", cfg.TTLSeconds).
		Msg("Record cache initialized")

	return &Cache{
		client: client,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

// GetRecord retrieves a cached record by id.
func (c *Cache) GetRecord(id string) (model.Record, bool) {
	if c == nil || c.client == nil {
		return model.Record{}, false
	}
	value, found := c.client.Get(id)
	if !found {
		return model.Record{}, false
	}
	rec, ok := value.(model.Record)
	return rec, ok
}

// SetRecord caches a record under its id with the configured TTL.
func (c *Cache) SetRecord(rec model.Record) bool {
	if c == nil || c.client == nil {
		return false
	}
	return c.client.SetWithTTL(rec.ID, rec, recordCost, c.ttl)
}

// Invalidate removes a record from the cache, e.g. after a scan
// increment changed its counters.
func (c *Cache) Invalidate(id string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(id)
}

// Close cleanly shuts down the cache.
func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
		log.Info().Msg("Cache closed")
	}
}

// MetricsSnapshot is the JSON shape served by the metrics endpoint.
type MetricsSnapshot struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	KeysAdded   uint64  `json:"keys_added"`
	KeysEvicted uint64  `json:"keys_evicted"`
	HitRatio    float64 `json:"hit_ratio"`
	TTLSeconds  int     `json:"ttl_seconds"`
}

// GetMetricsSnapshot returns current cache metrics.
func (c *Cache) GetMetricsSnapshot() MetricsSnapshot {
	if c == nil || c.client == nil || c.client.Metrics == nil {
		return MetricsSnapshot{}
	}

	m := c.client.Metrics
	hits := m.Hits()
	misses := m.Misses()

	hitRatio := 0.0
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		Hits:        hits,
		Misses:      misses,
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		HitRatio:    hitRatio,
		TTLSeconds:  int(c.ttl.Seconds()),
	}
}
