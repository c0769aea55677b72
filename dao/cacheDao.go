package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// SnapshotStore persists the last good value of each data source so the
// dashboard can start with data while offline.
type SnapshotStore interface {
	Save(ctx context.Context, key string, value any) error
	Load(ctx context.Context) (map[string]json.RawMessage, error)
}

// FileCache keeps all sources in one JSON object on disk (dashboard_cache.json).
type FileCache struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

func NewFileCache(path string, logger zerolog.Logger) *FileCache {
	return &FileCache{path: path, log: logger}
}

// Save merges one key into the cache file. An unreadable file is replaced.
func (c *FileCache) Save(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cache, err := c.read()
	if err != nil {
		c.log.Warn().Err(err).Str("path", c.path).Msg("Cache file unreadable, starting a new one")
		cache = map[string]json.RawMessage{}
	}
	cache[key] = raw
	return writeJSONAtomic(c.path, cache)
}

// Load returns an empty map when no cache exists yet.
func (c *FileCache) Load(_ context.Context) (map[string]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

func (c *FileCache) read() (map[string]json.RawMessage, error) {
	cache := map[string]json.RawMessage{}
	if err := readJSON(c.path, &cache); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read cache %s: %w", c.path, err)
	}
	return cache, nil
}
