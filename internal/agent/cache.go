package agent

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ClassificationCache memoizes classifier verdicts for identical messages in
// the same conversation step. Entries expire so a changed model or prompt
// does not serve stale intents forever. Constructor-injected; there is no
// package-level instance.
type ClassificationCache struct {
	mu      sync.RWMutex
	entries map[string]cachedResult
	ttl     time.Duration
	clock   func() time.Time
}

type cachedResult struct {
	result  IntentResult
	storedAt time.Time
}

// NewClassificationCache creates a cache with the given entry lifetime.
func NewClassificationCache(ttl time.Duration) *ClassificationCache {
	return &ClassificationCache{
		entries: make(map[string]cachedResult),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// CachedClassifier wraps an IntentClassifier with a ClassificationCache.
type CachedClassifier struct {
	inner IntentClassifier
	cache *ClassificationCache
}

// NewCachedClassifier wraps inner so repeated identical messages skip the
// collaborator round trip.
func NewCachedClassifier(inner IntentClassifier, cache *ClassificationCache) *CachedClassifier {
	return &CachedClassifier{inner: inner, cache: cache}
}

// Classify implements IntentClassifier.
func (cc *CachedClassifier) Classify(ctx context.Context, text string, hint ClassifyHint) (IntentResult, error) {
	key := cacheKey(text, hint)
	if result, ok := cc.cache.get(key); ok {
		return result, nil
	}

	result, err := cc.inner.Classify(ctx, text, hint)
	if err != nil {
		return IntentResult{}, err
	}

	cc.cache.put(key, result)
	return result, nil
}

func (c *ClassificationCache) get(key string) (IntentResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return IntentResult{}, false
	}
	if c.clock().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return IntentResult{}, false
	}
	return entry.result, true
}

func (c *ClassificationCache) put(key string, result IntentResult) {
	c.mu.Lock()
	c.entries[key] = cachedResult{result: result, storedAt: c.clock()}
	c.mu.Unlock()
}

// Len reports the number of live entries, expired or not.
func (c *ClassificationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(text string, hint ClassifyHint) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	return hint.Step + "|" + hint.Topic + "|" + hint.TargetAge + "|" + normalized
}
