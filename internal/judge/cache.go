package judge

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/timvw/shapeqa/internal/model"
)

// VerdictCache caches decisive judge verdicts keyed by a hash of
// (question, ground truth, prediction). In mode=all the three agents often
// produce the same short answer ("red"), and only the first needs a judge
// call.
//
// Entries expire after the TTL. A TTL of 0 disables caching.
type VerdictCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	hits    int64
	misses  int64
}

type cacheEntry struct {
	verdict  model.Verdict
	cachedAt time.Time
	hitCount int
}

// NewVerdictCache creates a cache with the given TTL.
func NewVerdictCache(ttl time.Duration) *VerdictCache {
	return &VerdictCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

// Lookup returns the cached verdict for the triple, if present and fresh.
func (c *VerdictCache) Lookup(question, truth, predicted string) (model.Verdict, bool) {
	if c == nil || c.ttl <= 0 {
		return model.VerdictUnknown, false
	}

	key := cacheKey(question, truth, predicted)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.cachedAt) > c.ttl {
		c.misses++
		return model.VerdictUnknown, false
	}
	entry.hitCount++
	c.hits++
	return entry.verdict, true
}

// Store saves a verdict. Unknown verdicts are never cached so an ambiguous
// judge reply gets another chance.
func (c *VerdictCache) Store(question, truth, predicted string, verdict model.Verdict) {
	if c == nil || c.ttl <= 0 || verdict == model.VerdictUnknown {
		return
	}

	key := cacheKey(question, truth, predicted)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		verdict:  verdict,
		cachedAt: time.Now(),
	}
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Stats returns cache statistics.
func (c *VerdictCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// cacheKey hashes the triple with unambiguous field separation.
func cacheKey(question, truth, predicted string) string {
	h := sha256.New()
	for _, s := range []string{question, truth, predicted} {
		fmt.Fprintf(h, "%d:%s;", len(s), s)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
