package admission

import (
	"context"
	"fmt"
	"time"

	"voicegate/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// QuotaReserver atomically reserves a call slot in the user's current day
// window. It closes the race where concurrent requests all pass the count
// check before any of them inserts a log row.
type QuotaReserver interface {
	// Reserve returns false when the day window is already full.
	Reserve(ctx context.Context, userID string, limit int, now time.Time) (bool, error)

	// Release returns a slot taken by Reserve, e.g. after a failed
	// provisioning attempt.
	Release(ctx context.Context, userID string, now time.Time) error
}

// RedisQuotaReserver implements QuotaReserver on the shared Redis scripts.
// The counter key is scoped to user + calendar day and expires at the next
// local midnight, so stale reservations never leak into the next window.
type RedisQuotaReserver struct {
	rdb *redis.Client
}

func NewRedisQuotaReserver(rdb *redis.Client) *RedisQuotaReserver {
	return &RedisQuotaReserver{rdb: rdb}
}

func (r *RedisQuotaReserver) Reserve(ctx context.Context, userID string, limit int, now time.Time) (bool, error) {
	ttl := startOfNextDay(now).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return utils.AcquireQuotaSlot(ctx, r.rdb, quotaKey(userID, now), limit, ttl)
}

func (r *RedisQuotaReserver) Release(ctx context.Context, userID string, now time.Time) error {
	return utils.ReleaseQuotaSlot(ctx, r.rdb, quotaKey(userID, now))
}

func quotaKey(userID string, now time.Time) string {
	return fmt.Sprintf("quota:calls:%s:%s", userID, now.Format("2006-01-02"))
}

// startOfDay returns local midnight of the day containing t. The quota
// window is the server's calendar day, not a rolling 24h.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfNextDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}
