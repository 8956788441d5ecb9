package services

import (
	"context"
	"log/slog"
	"time"

	"garagelive/internal/core/contracts"
	"garagelive/internal/core/domain"
)

// NotifyService fans notification-shaped events out to user and role
// rooms. Fire-and-forget: nothing is persisted or retried.
type NotifyService struct {
	log *slog.Logger
	hub contracts.Hub
}

func NewNotifyService(log *slog.Logger, hub contracts.Hub) *NotifyService {
	return &NotifyService{log: log, hub: hub}
}

func (n *NotifyService) NotifyUser(ctx context.Context, userID string, title, message string) {
	n.hub.EmitToUser(ctx, userID, domain.Outbound{
		Event: domain.EventNotification,
		Data: domain.Notification{
			Title:     title,
			Message:   message,
			Timestamp: time.Now().UTC(),
		},
	})
}

func (n *NotifyService) NotifyRole(ctx context.Context, role domain.Role, title, message string) {
	n.hub.EmitToRole(ctx, role, domain.Outbound{
		Event: domain.EventNotification,
		Data: domain.Notification{
			Title:     title,
			Message:   message,
			Timestamp: time.Now().UTC(),
		},
	})
}

// LowStockAlert targets staff rooms only: customers never see inventory
// internals.
func (n *NotifyService) LowStockAlert(ctx context.Context, partName string, remaining int) {
	note := domain.Notification{
		Title:     "Low stock",
		Message:   partName,
		Kind:      "inventory",
		Timestamp: time.Now().UTC(),
	}
	out := domain.Outbound{Event: domain.EventLowStockAlert, Data: note}
	n.hub.EmitToRole(ctx, domain.RoleAdmin, out)
	n.hub.EmitToRole(ctx, domain.RoleMechanic, out)
	n.log.InfoContext(ctx, "notify - low stock alert - broadcast", "part", partName, "remaining", remaining)
}

// AppointmentReminder is invoked by the reminder worker for each due
// stream entry.
func (n *NotifyService) AppointmentReminder(ctx context.Context, userID string, appointmentID int64, message string) {
	n.hub.EmitToUser(ctx, userID, domain.Outbound{
		Event: domain.EventAppointmentReminder,
		Data: domain.Notification{
			Title:     "Appointment reminder",
			Message:   message,
			Kind:      "reminder",
			Timestamp: time.Now().UTC(),
		},
	})
	n.log.InfoContext(ctx, "notify - appointment reminder - sent", "user_id", userID, "appointment_id", appointmentID)
}
