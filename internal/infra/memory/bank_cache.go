package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"discord-quiz-bot/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches the question bank from a backing store (JSON file, Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context) ([]domain.QuizItem, error)
}

// BankCache caches the question bank with TTL to avoid re-reading it on every quiz start.
type BankCache struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	items     []domain.QuizItem
	expiresAt time.Time
}

func NewBankCache(loader BankLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetBank returns the cached bank. Callers must treat the slice as read-only.
func (c *BankCache) GetBank(ctx context.Context) ([]domain.QuizItem, error) {
	if items, ok := c.cached(c.clock()); ok {
		return items, nil
	}

	result, err, _ := c.sf.Do("bank", func() (interface{}, error) {
		now := c.clock()
		if items, ok := c.cached(now); ok {
			return items, nil
		}

		items, err := c.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			expiresAt := now.Add(c.ttlWithJitter())
			c.mu.Lock()
			c.items = items
			c.expiresAt = expiresAt
			c.mu.Unlock()
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizItem), nil
}

// Invalidate drops the cached bank.
func (c *BankCache) Invalidate() {
	c.mu.Lock()
	c.items = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *BankCache) cached(now time.Time) ([]domain.QuizItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.items != nil && c.expiresAt.After(now) {
		return c.items, true
	}
	return nil, false
}

// StaticBankLoader is a loader backed by an in-memory slice (useful for tests/demos).
type StaticBankLoader struct {
	items []domain.QuizItem
}

func NewStaticBankLoader(items []domain.QuizItem) *StaticBankLoader {
	return &StaticBankLoader{items: items}
}

func (l *StaticBankLoader) LoadBank(_ context.Context) ([]domain.QuizItem, error) {
	if len(l.items) == 0 {
		return nil, domain.ErrBankEmpty
	}
	return l.items, nil
}

// GetBank lets the static loader serve as a repository directly.
func (l *StaticBankLoader) GetBank(ctx context.Context) ([]domain.QuizItem, error) {
	return l.LoadBank(ctx)
}

// ttlWithJitter is only called inside the singleflight group, which serializes rnd.
func (c *BankCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
