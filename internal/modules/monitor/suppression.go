// README: Redis-backed suppression window for inactivity alerts.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"saferide/internal/types"
)

const idleAlertKeyPrefix = "monitor:event:%s:driver:%s:idle_alerted"

// RedisSuppressor remembers which idle stretches have already produced an
// alert, with a TTL equal to the suppression window. Redundant sweeps then
// cannot storm the operator feed.
type RedisSuppressor struct {
	redis *redis.Client
}

func NewRedisSuppressor(redis *redis.Client) *RedisSuppressor {
	return &RedisSuppressor{redis: redis}
}

func (s *RedisSuppressor) AlreadyAlerted(ctx context.Context, eventID, driverID types.ID) (bool, error) {
	n, err := s.redis.Exists(ctx, idleKey(eventID, driverID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSuppressor) MarkAlerted(ctx context.Context, eventID, driverID types.ID, window time.Duration) error {
	return s.redis.Set(ctx, idleKey(eventID, driverID), "1", window).Err()
}

func idleKey(eventID, driverID types.ID) string {
	return fmt.Sprintf(idleAlertKeyPrefix, string(eventID), string(driverID))
}
