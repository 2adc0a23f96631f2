// Package embedding holds helpers shared by the embedding adapters in its
// subpackages.
package embedding

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"kbrag/internal/domain"
)

const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = time.Hour
)

// Cached memoizes single-text embeddings keyed by the lower-cased trimmed
// text. When full, the oldest entry is evicted first. Batch calls go straight
// to the wrapped embedder.
type Cached struct {
	next    domain.Embedder
	cache   *cache.Cache
	maxSize int

	mu    sync.Mutex
	order []string // keys in insertion order
}

// NewCached wraps next. A non-positive size or ttl selects the default.
func NewCached(next domain.Embedder, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:    next,
		cache:   cache.New(ttl, 10*time.Minute),
		maxSize: size,
	}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if x, found := c.cache.Get(key); found {
		return x.([]float32), nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(key, vec)
	return vec, nil
}

func (c *Cached) store(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
	if c.cache.ItemCount() >= c.maxSize {
		c.cache.DeleteExpired()
	}
	for c.cache.ItemCount() >= c.maxSize && len(c.order) > 0 {
		c.cache.Delete(c.order[0])
		c.order = c.order[1:]
	}
	if len(c.order) > 2*c.maxSize {
		// drop keys whose entries expired
		c.order = slices.DeleteFunc(c.order, func(k string) bool {
			_, found := c.cache.Get(k)
			return !found
		})
	}
	c.cache.Set(key, vec, cache.DefaultExpiration)
	c.order = append(c.order, key)
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}

// Len reports the number of cached entries.
func (c *Cached) Len() int { return c.cache.ItemCount() }

var _ domain.Embedder = (*Cached)(nil)
