package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const cacheVersion = "1.0"

// CacheEntry 一条缓存的翻译
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Model       string    `json:"model"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

type cacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// CachingClient 为翻译客户端增加持久化缓存
// Only translated outcomes are stored, so a passthrough is retried on the
// next run.
type CachingClient struct {
	next   Client
	fs     afero.Fs
	path   string
	mu     sync.RWMutex
	cache  map[string]CacheEntry
	hits   int
	misses int
}

// NewCachingClient wraps next with a cache persisted at path on fs
func NewCachingClient(next Client, fs afero.Fs, path string) *CachingClient {
	return &CachingClient{
		next:  next,
		fs:    fs,
		path:  path,
		cache: make(map[string]CacheEntry),
	}
}

// CacheKey hashes model and text together
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Translate serves from the cache or delegates and remembers the result
func (c *CachingClient) Translate(ctx context.Context, text, model string) Response {
	key := CacheKey(model, text)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return translated(entry.Translation)
	}

	resp := c.next.Translate(ctx, text, model)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if resp.Translated() {
		c.cache[key] = CacheEntry{
			Hash:        key,
			Model:       model,
			Original:    text,
			Translation: resp.Text,
			CreatedAt:   time.Now().UTC(),
		}
	}
	return resp
}

// Len returns the number of cached translations
func (c *CachingClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats returns cache hits and misses since creation
func (c *CachingClient) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Load reads the cache file; a missing file leaves the cache empty
func (c *CachingClient) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if exists, _ := afero.Exists(c.fs, c.path); !exists {
			return nil
		}
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to read translation cache", c.path, err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to parse translation cache", c.path, err)
	}

	c.cache = make(map[string]CacheEntry, len(file.Entries))
	for _, e := range file.Entries {
		c.cache[e.Hash] = e
	}
	logger.Info("translation cache loaded",
		logger.String("path", c.path),
		logger.Int("entries", len(c.cache)))
	return nil
}

// Save writes the cache file
func (c *CachingClient) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	file := cacheFile{Version: cacheVersion, Entries: make([]CacheEntry, 0, len(c.cache))}
	for _, e := range c.cache {
		file.Entries = append(file.Entries, e)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to encode translation cache", c.path, err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := c.fs.MkdirAll(dir, 0755); err != nil {
			return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to create cache directory", dir, err)
		}
	}
	if err := afero.WriteFile(c.fs, c.path, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to write translation cache", c.path, err)
	}
	return nil
}
