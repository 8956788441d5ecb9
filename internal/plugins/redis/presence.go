package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore tracks which identities are actively viewing an
// appointment room, one ZSet per appointment scored by last check-in.
type RedisPresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPresenceStore takes the same ttl the sessions mark with, so
// the read-side staleness window stays in sync with the write side.
func NewRedisPresenceStore(rdb *redis.Client, ttl time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb, ttl: ttl}
}

func presenceKey(appointmentID int64) string {
	return fmt.Sprintf("viewers:appointment:%d", appointmentID)
}

// MarkViewing adds/refreshes the viewer with the current timestamp. The
// whole ZSet expires at 2x the ttl so idle appointments do not leak.
func (p *RedisPresenceStore) MarkViewing(
	ctx context.Context,
	appointmentID int64,
	userID string,
	ttl time.Duration,
) error {
	key := presenceKey(appointmentID)
	if err := p.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: userID,
	}).Err(); err != nil {
		return err
	}
	return p.rdb.Expire(ctx, key, ttl*2).Err()
}

// Viewers returns identities that checked in within the presence
// window, removing stale members on the way.
func (p *RedisPresenceStore) Viewers(ctx context.Context, appointmentID int64) ([]string, error) {
	key := presenceKey(appointmentID)
	threshold := p.staleBefore(time.Now())
	p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(threshold, 10))
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}

// staleBefore is the oldest check-in score still counted as viewing.
func (p *RedisPresenceStore) staleBefore(now time.Time) int64 {
	return now.Add(-p.ttl).Unix()
}

func (p *RedisPresenceStore) ClearViewer(ctx context.Context, appointmentID int64, userID string) error {
	return p.rdb.ZRem(ctx, presenceKey(appointmentID), userID).Err()
}
