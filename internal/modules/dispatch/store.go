// README: Redis-backed throttle for recurring dispatch failures.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"saferide/internal/types"
)

const (
	failureKeyPrefix = "dispatch:event:%s:failures"
	failureWindow    = 10 * time.Minute
)

// FailureThrottle keeps a per-event failure counter with a TTL so operators
// are alerted about a broken event only when the failure recurs, not on every
// dispatch attempt.
type FailureThrottle struct {
	redis *redis.Client
}

func NewFailureThrottle(redis *redis.Client) *FailureThrottle {
	return &FailureThrottle{redis: redis}
}

// RecordFailure counts one failure and reports whether the failure is now
// recurring within the window.
func (t *FailureThrottle) RecordFailure(ctx context.Context, eventID types.ID) (bool, error) {
	key := fmt.Sprintf(failureKeyPrefix, string(eventID))
	n, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := t.redis.Expire(ctx, key, failureWindow).Err(); err != nil {
			return false, err
		}
	}
	return n > 1, nil
}
