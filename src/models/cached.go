package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"

	"github.com/agent-sphere/agent-sphere/src/cache"
)

// CachedProvider wraps a Provider and memoizes Chat calls.
type CachedProvider struct {
	Provider Provider
	Cache    *cache.LRUCache
	FilePath string
}

// NewCachedProvider creates a caching wrapper. When filePath is non-empty the
// cache is loaded from and persisted to that file.
func NewCachedProvider(p Provider, size int, ttl time.Duration, filePath string) *CachedProvider {
	c := &CachedProvider{
		Provider: p,
		Cache:    cache.NewLRUCache(size, ttl),
		FilePath: filePath,
	}
	if filePath != "" {
		c.load()
	}
	return c
}

func (c *CachedProvider) Name() string { return c.Provider.Name() }

// Chat checks the cache before calling the underlying provider. Errors are
// never cached.
func (c *CachedProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	key := messagesKey(messages)
	if val, ok := c.Cache.Get(key); ok {
		return val, nil
	}

	reply, err := c.Provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	c.Cache.Set(key, reply)
	c.save()
	return reply, nil
}

func messagesKey(messages []ChatMessage) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedProvider) load() {
	f, err := os.Open(c.FilePath)
	if err != nil {
		return // no dump yet
	}
	defer f.Close()

	var dump map[string]cache.Entry
	if err := json.NewDecoder(f).Decode(&dump); err == nil {
		c.Cache.Restore(dump)
	}
}

func (c *CachedProvider) save() {
	if c.FilePath == "" {
		return
	}

	// Atomic write: temp file, then rename.
	tmp := c.FilePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return
	}
	if err := json.NewEncoder(f).Encode(c.Cache.Dump()); err != nil {
		f.Close()
		os.Remove(tmp)
		return
	}
	f.Close()
	os.Rename(tmp, c.FilePath)
}

var _ Provider = (*CachedProvider)(nil)
