package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const reminderStream = "stream:reminders"

// RedisReminderQueue is the appointment-reminder stream: the scheduler
// side publishes due reminders, the worker consumes them through a
// consumer group.
type RedisReminderQueue struct {
	rdb *redis.Client
}

func NewRedisReminderQueue(rdb *redis.Client) *RedisReminderQueue {
	return &RedisReminderQueue{rdb: rdb}
}

func (q *RedisReminderQueue) Publish(ctx context.Context, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: reminderStream,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

// Subscribe blocks until ctx is cancelled, handing each stream entry to
// handler. Handler errors leave the entry pending for redelivery.
func (q *RedisReminderQueue) Subscribe(
	ctx context.Context,
	group string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	err := q.rdb.XGroupCreateMkStream(ctx, reminderStream, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumerName,
				Streams:  []string{reminderStream, ">"},
				Count:    10,
				Block:    2 * time.Second,
			}).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					slog.Warn("reminder stream read error", "err", err)
				}
				continue
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					raw, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
						slog.Warn("reminder handler error", "message_id", msg.ID, "err", err)
					}
				}
			}
		}
	}
}

func (q *RedisReminderQueue) Acknowledge(ctx context.Context, group, messageID string) error {
	return q.rdb.XAck(ctx, reminderStream, group, messageID).Err()
}
