package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown is a fixed-window limiter shared by all bot replicas. A hit claims
// the key with SET NX PX; while the key lives, further hits are refused and
// the remaining TTL gives the retry time.
type Cooldown struct {
	client *redis.Client
	window time.Duration
	clock  func() time.Time
}

func NewCooldown(client *redis.Client, window time.Duration) *Cooldown {
	return &Cooldown{client: client, window: window, clock: time.Now}
}

func (c *Cooldown) Hit(ctx context.Context, key string) (time.Time, bool, error) {
	// Two attempts cover a key that expires between SETNX and PTTL.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := c.client.SetNX(ctx, key, c.clock().Unix(), c.window).Result()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("cooldown set: %w", err)
		}
		if ok {
			return time.Time{}, true, nil
		}

		ttl, err := c.client.PTTL(ctx, key).Result()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("cooldown ttl: %w", err)
		}
		switch {
		case ttl > 0:
			return c.clock().Add(ttl), false, nil
		case ttl == -1:
			// Key without expiry would lock the member out forever.
			if err := c.client.PExpire(ctx, key, c.window).Err(); err != nil {
				return time.Time{}, false, fmt.Errorf("cooldown repair: %w", err)
			}
			return c.clock().Add(c.window), false, nil
		}
	}
	return c.clock().Add(c.window), false, nil
}

// Reset clears the cooldown for key.
func (c *Cooldown) Reset(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
