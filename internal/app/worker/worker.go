package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"garagelive/internal/core/contracts"
	"garagelive/internal/core/services"
)

// Reminder is the stream payload published by the scheduling side.
type Reminder struct {
	UserID        string `json:"user_id"`
	AppointmentID int64  `json:"appointment_id"`
	Message       string `json:"message"`
}

// ReminderWorker consumes due appointment reminders from the stream and
// pushes them into the target user room.
type ReminderWorker struct {
	log    *slog.Logger
	queue  contracts.ReminderQueue
	notify *services.NotifyService
	group  string
}

func NewReminderWorker(
	log *slog.Logger,
	queue contracts.ReminderQueue,
	notify *services.NotifyService,
	group string,
) *ReminderWorker {
	return &ReminderWorker{
		log:    log,
		queue:  queue,
		notify: notify,
		group:  group,
	}
}

// Run blocks until ctx is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "worker - run - reminder consumer starting", "group", w.group)
	return w.queue.Subscribe(ctx, w.group, w.processReminder)
}

func (w *ReminderWorker) processReminder(ctx context.Context, messageID string, raw []byte) error {
	var rem Reminder
	if err := json.Unmarshal(raw, &rem); err != nil {
		w.log.Error("worker - process reminder - wrong payload", "message_id", messageID)
		// Poison entry: ack it away so it is not redelivered forever.
		return w.queue.Acknowledge(ctx, w.group, messageID)
	}
	w.notify.AppointmentReminder(ctx, rem.UserID, rem.AppointmentID, rem.Message)
	if err := w.queue.Acknowledge(ctx, w.group, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process reminder - acknowledge failed", "message_id", messageID, "err", err)
		return err
	}
	return nil
}
