package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"audit-backend/internal/scoring"
	"audit-backend/internal/shared/metrics"
	"audit-backend/internal/shared/storage/object"
	"audit-backend/internal/shared/telemetry"
)

// DefaultTTL keeps a cached result for one week.
const DefaultTTL = 168 * time.Hour

// Entry is one cached evaluation keyed by input content.
type Entry struct {
	Key         string                   `json:"key"`
	Result      scoring.EvaluationResult `json:"result"`
	ArtifactKey string                   `json:"artifactKey"`
	CostUSD     float64                  `json:"costUsd"`
	CreatedAt   time.Time                `json:"createdAt"`
}

// Cache is a content-addressed result cache persisted as a single JSON index
// file. Entries expire by TTL, and an entry whose artifact has vanished from
// the object store is evicted on lookup rather than served stale.
type Cache struct {
	indexPath string
	ttl       time.Duration
	store     object.ObjectStore

	mu      sync.Mutex
	entries map[string]Entry

	// now is injected in tests.
	now func() time.Time
}

// New loads (or initializes) the cache index at indexPath. A corrupt index is
// discarded and rebuilt empty; losing the cache only costs recomputation.
func New(indexPath string, ttl time.Duration, store object.ObjectStore) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		indexPath: indexPath,
		ttl:       ttl,
		store:     store,
		entries:   map[string]Entry{},
		now:       time.Now,
	}

	data, err := os.ReadFile(indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache index: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		telemetry.Warn("resultcache.index_corrupt", map[string]any{
			"path":  indexPath,
			"error": err.Error(),
		})
		c.entries = map[string]Entry{}
	}
	return c, nil
}

// Get returns the cached entry for key, if fresh and its artifact still
// exists. A missing artifact evicts the entry (self-healing) and reports a
// miss.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		metrics.IncCacheMiss()
		return Entry{}, false
	}

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		c.evict(key, "expired")
		metrics.IncCacheMiss()
		return Entry{}, false
	}

	if entry.ArtifactKey != "" {
		exists, err := c.store.Exists(ctx, entry.ArtifactKey)
		if err != nil {
			telemetry.Warn("resultcache.artifact_check_failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
			metrics.IncCacheMiss()
			return Entry{}, false
		}
		if !exists {
			c.evict(key, "artifact missing")
			metrics.IncCacheMiss()
			return Entry{}, false
		}
	}

	metrics.IncCacheHit()
	return entry, true
}

// Put upserts an entry and persists the index.
func (c *Cache) Put(entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}
	c.mu.Lock()
	c.entries[entry.Key] = entry
	err := c.persistLocked()
	c.mu.Unlock()
	return err
}

// Cleanup drops every expired entry and returns how many were removed.
func (c *Cache) Cleanup() (int, error) {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.persistLocked()
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evict(key, reason string) {
	c.mu.Lock()
	delete(c.entries, key)
	err := c.persistLocked()
	c.mu.Unlock()

	fields := map[string]any{"key": key, "reason": reason}
	if err != nil {
		fields["persist_error"] = err.Error()
	}
	telemetry.Info("resultcache.evicted", fields)
}

// persistLocked writes the index atomically: marshal to a sibling temp file,
// then rename over the index. Callers hold c.mu.
func (c *Cache) persistLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache index: %w", err)
	}

	dir := filepath.Dir(c.indexPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpName, c.indexPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache index: %w", err)
	}
	return nil
}
