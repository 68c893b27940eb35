package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter on Redis. Used to throttle
// operator alerts per error signature and outbound sends per chat.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// AlertKey buckets operator alerts by error signature.
func AlertKey(signature string) string {
	return fmt.Sprintf("alert_limit:%s", signature)
}

// ChatSendKey buckets outbound sends per destination chat.
func ChatSendKey(chatID int64) string {
	return fmt.Sprintf("send_pace:%d", chatID)
}
