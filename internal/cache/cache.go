// Package cache stores results of read-only statements keyed by a
// fingerprint of the exact statement text. Entries expire after a TTL and
// the cache is capacity-bounded, evicting the oldest-stored entry first.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/agentlake/sqlgate/internal/metrics"
	"github.com/agentlake/sqlgate/internal/sqltext"
)

const (
	defaultTTL      = 5 * time.Minute
	defaultCapacity = 100
)

type Config struct {
	Logger *slog.Logger

	// TTL is the maximum age of an entry, measured from when it was stored.
	// A read never extends it.
	TTL time.Duration

	// Capacity bounds the number of live entries. Inserting past capacity
	// evicts the entry with the earliest store time.
	Capacity int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.Capacity == 0 {
		c.Capacity = defaultCapacity
	}
	if c.Capacity < 0 {
		return errors.New("capacity must be greater than 0")
	}
	return nil
}

type Cache struct {
	log *slog.Logger
	cfg *Config

	mu      sync.Mutex
	entries *ttlcache.Cache[string, json.RawMessage]
}

func New(cfg *Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}
	// Touch-on-hit is disabled so an item's expiration stays at
	// storedAt+TTL, which also makes expiration order the store order.
	entries := ttlcache.New(
		ttlcache.WithTTL[string, json.RawMessage](cfg.TTL),
		ttlcache.WithDisableTouchOnHit[string, json.RawMessage](),
	)
	return &Cache{
		log:     cfg.Logger,
		cfg:     cfg,
		entries: entries,
	}, nil
}

// Fingerprint derives the cache key for a statement: a hex SHA-256 of the
// exact text. Textually distinct but semantically equivalent statements
// hash to different keys.
func Fingerprint(statement string) string {
	sum := sha256.Sum256([]byte(statement))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the payload previously stored for the statement, if it is
// still live. Expired entries are treated as absent and removed.
func (c *Cache) Lookup(statement string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.entries.Get(Fingerprint(statement))
	if item == nil {
		c.entries.DeleteExpired()
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return item.Value(), true
}

// Store caches the payload for a statement. It is a no-op unless the
// statement is read-only; mutating statements are never cached, preventing
// stale reads after writes.
func (c *Cache) Store(statement string, payload json.RawMessage) {
	if !sqltext.ReadOnly(statement) {
		c.log.Debug("cache: skipping non-read-only statement")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.DeleteExpired()
	if c.entries.Len() >= c.cfg.Capacity {
		c.evictOldestLocked()
	}
	c.entries.Set(Fingerprint(statement), payload, ttlcache.DefaultTTL)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.DeleteExpired()
	return c.entries.Len()
}

// evictOldestLocked removes the entry with the earliest expiration, which
// with a uniform TTL and touch-on-hit disabled is the oldest-stored entry.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestExpiry time.Time
	for _, item := range c.entries.Items() {
		if oldestExpiry.IsZero() || item.ExpiresAt().Before(oldestExpiry) {
			oldestKey = item.Key()
			oldestExpiry = item.ExpiresAt()
		}
	}
	if oldestKey == "" {
		return
	}
	c.entries.Delete(oldestKey)
	metrics.CacheEvictionsTotal.Inc()
	c.log.Debug("cache: evicted oldest entry", "key", oldestKey)
}
