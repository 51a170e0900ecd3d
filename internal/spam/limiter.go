package spam

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const limiterCapacity = 10000

// ChatLimiter allows at most n calls per period for each chat. Idle chats
// are evicted least recently used first.
type ChatLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[int64, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func NewChatLimiter(n int, period time.Duration) (*ChatLimiter, error) {
	if n <= 0 {
		n = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	cache, err := lru.New[int64, *rate.Limiter](limiterCapacity)
	if err != nil {
		return nil, fmt.Errorf("create chat limiter: %w", err)
	}
	return &ChatLimiter{
		limiters: cache,
		limit:    rate.Every(period / time.Duration(n)),
		burst:    n,
	}, nil
}

// Allow reports whether chatID may make another call at now.
func (l *ChatLimiter) Allow(chatID int64, now time.Time) bool {
	l.mu.Lock()
	lim, ok := l.limiters.Get(chatID)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(chatID, lim)
	}
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}
