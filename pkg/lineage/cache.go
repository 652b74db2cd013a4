package lineage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// Cache file names inside a location's cache directory.
const (
	cacheGraphFile = "lineage_graph.json"
	cacheEntryFile = "cache_entry.json"
)

// CacheEntry pairs a built graph with the fingerprint of the catalog it was
// built from. Entries are immutable; a rebuild swaps in a whole new entry.
type CacheEntry struct {
	Graph       *Graph
	Audit       *BuildAudit
	Fingerprint string
	BuiltAt     time.Time
}

// cacheEntryMeta is the persisted entry metadata, stored next to the graph
// payload.
type cacheEntryMeta struct {
	Fingerprint string      `json:"fingerprint"`
	BuiltAt     time.Time   `json:"built_at"`
	Audit       *BuildAudit `json:"audit,omitempty"`
}

// CacheStore owns the authoritative lineage graph per catalog location. It
// is an explicit value passed into calls, not a process-wide singleton.
//
// It is safe for concurrent use: readers see either the previous entry or
// the new one, never a half-built graph, and concurrent misses for the same
// location coalesce into a single rebuild.
type CacheStore struct {
	dir     string
	builder *Builder
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]*CacheEntry

	flight singleflight.Group
}

// NewCacheStore creates a cache rooted at dir. A nil logger discards.
func NewCacheStore(dir string, logger *slog.Logger) *CacheStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CacheStore{
		dir:     dir,
		builder: NewBuilder(logger),
		logger:  logger,
		entries: make(map[string]*CacheEntry),
	}
}

// GetOrBuild returns the cached graph for a location when its fingerprint is
// unchanged, and otherwise rebuilds from the supplied records and atomically
// replaces the entry. The hit result reports whether a rebuild was avoided.
//
// If the build is cancelled via ctx, the previous entry (if any) remains
// authoritative.
func (c *CacheStore) GetOrBuild(ctx context.Context, location, fingerprint string, records []catalog.ObjectRecord) (*CacheEntry, bool, error) {
	if entry := c.lookup(location, fingerprint); entry != nil {
		return entry, true, nil
	}

	// At most one rebuild runs per location; readers of other locations
	// and of the previous entry are not blocked.
	for {
		v, err, _ := c.flight.Do(location, func() (interface{}, error) {
			// Re-check: another caller may have finished the rebuild while
			// we waited on the flight group.
			if entry := c.lookup(location, fingerprint); entry != nil {
				return entry, nil
			}

			graph, audit, err := c.builder.Build(ctx, records)
			if err != nil {
				return nil, err
			}

			entry := &CacheEntry{
				Graph:       graph,
				Audit:       audit,
				Fingerprint: fingerprint,
				BuiltAt:     time.Now().UTC(),
			}

			if err := c.persist(location, entry); err != nil {
				// Persistence failure degrades to memory-only caching.
				c.logger.Warn("failed to persist lineage cache",
					slog.String("location", location),
					slog.String("error", err.Error()))
			}

			c.mu.Lock()
			c.entries[location] = entry
			c.mu.Unlock()
			return entry, nil
		})
		if err != nil {
			return nil, false, err
		}
		entry := v.(*CacheEntry)
		if entry.Fingerprint == fingerprint {
			return entry, false, nil
		}
		// Shared a flight that rebuilt for a different snapshot of this
		// location; go around and run our own.
	}
}

// lookup checks memory first, then disk. A disk entry with a stale
// fingerprint or an unreadable payload is a miss; corruption is logged and
// never propagated.
func (c *CacheStore) lookup(location, fingerprint string) *CacheEntry {
	c.mu.RLock()
	entry := c.entries[location]
	c.mu.RUnlock()
	if entry != nil && entry.Fingerprint == fingerprint {
		return entry
	}

	entry, err := c.load(location)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("lineage cache unreadable, rebuilding",
				slog.String("location", location),
				slog.String("error", err.Error()))
		}
		return nil
	}
	if entry.Fingerprint != fingerprint {
		return nil
	}

	c.mu.Lock()
	c.entries[location] = entry
	c.mu.Unlock()
	return entry
}

// Invalidate drops any entry for the location, forcing the next GetOrBuild
// to rebuild.
func (c *CacheStore) Invalidate(location string) {
	c.mu.Lock()
	delete(c.entries, location)
	c.mu.Unlock()

	dir := c.locationDir(location)
	_ = os.Remove(filepath.Join(dir, cacheGraphFile))
	_ = os.Remove(filepath.Join(dir, cacheEntryFile))
}

// locationDir maps a location key to its cache directory. Location keys are
// filesystem paths supplied by the caller; they are flattened into a single
// path component.
func (c *CacheStore) locationDir(location string) string {
	safe := make([]byte, 0, len(location))
	for i := 0; i < len(location); i++ {
		ch := location[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_', ch == '.':
			safe = append(safe, ch)
		default:
			safe = append(safe, '_')
		}
	}
	return filepath.Join(c.dir, string(safe))
}

// persist writes the graph payload and entry metadata atomically (temp file
// plus rename), so a concurrent reader sees either the old files or the new
// ones.
func (c *CacheStore) persist(location string, entry *CacheEntry) error {
	dir := c.locationDir(location)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	graphData, err := json.Marshal(entry.Graph)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, cacheGraphFile), graphData); err != nil {
		return err
	}

	meta := cacheEntryMeta{Fingerprint: entry.Fingerprint, BuiltAt: entry.BuiltAt, Audit: entry.Audit}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return writeAtomic(filepath.Join(dir, cacheEntryFile), metaData)
}

// load reads a persisted entry. Any decode failure is surfaced to lookup,
// which treats it as a miss.
func (c *CacheStore) load(location string) (*CacheEntry, error) {
	dir := c.locationDir(location)

	metaData, err := os.ReadFile(filepath.Join(dir, cacheEntryFile))
	if err != nil {
		return nil, err
	}
	var meta cacheEntryMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("corrupt cache entry: %w", err)
	}

	graphData, err := os.ReadFile(filepath.Join(dir, cacheGraphFile))
	if err != nil {
		return nil, err
	}
	graph := NewGraph()
	if err := json.Unmarshal(graphData, graph); err != nil {
		return nil, fmt.Errorf("corrupt graph payload: %w", err)
	}

	return &CacheEntry{
		Graph:       graph,
		Audit:       meta.Audit,
		Fingerprint: meta.Fingerprint,
		BuiltAt:     meta.BuiltAt,
	}, nil
}

// writeAtomic writes via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
