package contracts

import "context"

// ReminderQueue is the stream the scheduler side publishes appointment
// reminders to and the worker consumes from.
type ReminderQueue interface {
	// Publish appends a reminder payload to the stream.
	Publish(ctx context.Context, payload []byte) error
	// Subscribe reads reliably via a consumer group and hands each entry
	// to handler. Blocks until ctx is cancelled.
	Subscribe(ctx context.Context, group string, handler func(ctx context.Context, messageID string, data []byte) error) error
	// Acknowledge marks a stream entry as processed.
	Acknowledge(ctx context.Context, group, messageID string) error
}
