// Package newsletter composes and delivers the daily email digest.
package newsletter

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity bounds the remembered item ids.
const DefaultCacheCapacity = 2048

// SentCache remembers delivered item ids. When full, marking a new id evicts
// the least recently marked one. It is safe for concurrent use.
type SentCache struct {
	ids *lru.Cache[string, struct{}]
}

func NewSentCache(capacity int) (*SentCache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	ids, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("create sent cache: %w", err)
	}
	return &SentCache{ids: ids}, nil
}

// Contains reports whether id was marked. It does not affect eviction order.
func (c *SentCache) Contains(id string) bool {
	return c.ids.Contains(id)
}

// MarkSent inserts id or moves it to the most recent position.
func (c *SentCache) MarkSent(id string) {
	c.ids.Add(id, struct{}{})
}

func (c *SentCache) Len() int {
	return c.ids.Len()
}

// IDs lists remembered ids from least to most recently marked.
func (c *SentCache) IDs() []string {
	return c.ids.Keys()
}
