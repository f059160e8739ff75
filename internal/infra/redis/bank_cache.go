package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"discord-quiz-bot/internal/domain"
	"discord-quiz-bot/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankCache caches the question bank in Redis so every bot replica reads the
// same copy, and falls back to a loader on cache miss.
// The bank is stored as: SET quiz:bank:{bankID} <json> PX <ttl>
type BankCache struct {
	client *redis.Client
	loader memory.BankLoader
	bankID string
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankCache(client *redis.Client, loader memory.BankLoader, bankID string, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		loader: loader,
		bankID: bankID,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *BankCache) GetBank(ctx context.Context) ([]domain.QuizItem, error) {
	if items, ok := c.cached(ctx); ok {
		return items, nil
	}

	result, err, _ := c.sf.Do(c.bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if items, ok := c.cached(ctx); ok {
			return items, nil
		}

		items, err := c.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}

		if ttl := c.ttlWithJitter(); ttl > 0 {
			if raw, err := json.Marshal(items); err == nil {
				_ = c.client.Set(ctx, c.key(), raw, ttl).Err()
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizItem), nil
}

// Invalidate removes the cached bank so the next read goes to the loader.
func (c *BankCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key()).Err()
}

func (c *BankCache) cached(ctx context.Context) ([]domain.QuizItem, bool) {
	raw, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		return nil, false
	}
	var items []domain.QuizItem
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		// A damaged entry is treated as a miss and overwritten by the loader.
		return nil, false
	}
	return items, true
}

func (c *BankCache) key() string {
	return "quiz:bank:" + c.bankID
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
