package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"garagelive/internal/core/contracts"
	"garagelive/internal/core/domain"
)

// DashboardService is the producer behind the service-bay and queue
// dashboards: persist the change through the repository first, then fan
// it out. Emit failures are logged and swallowed so the REST write path
// never depends on socket health.
type DashboardService struct {
	log       *slog.Logger
	hub       contracts.Hub
	bayRepo   domain.BayRepository
	queueRepo domain.QueueRepository
}

func NewDashboardService(
	log *slog.Logger,
	hub contracts.Hub,
	bayRepo domain.BayRepository,
	queueRepo domain.QueueRepository,
) *DashboardService {
	return &DashboardService{
		log:       log,
		hub:       hub,
		bayRepo:   bayRepo,
		queueRepo: queueRepo,
	}
}

// UpdateBayStatus persists the bay change and broadcasts
// service_bay_status_update shop-wide.
func (d *DashboardService) UpdateBayStatus(ctx context.Context, bay *domain.ServiceBay) error {
	ctx, span := tracer.Start(ctx, "DashboardService.UpdateBayStatus", trace.WithAttributes(
		attribute.Int64("bay_id", bay.ID),
		attribute.String("status", bay.Status),
	))
	defer span.End()

	bay.UpdatedAt = time.Now().UTC()
	if err := d.bayRepo.UpdateStatus(ctx, bay); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		d.log.ErrorContext(ctx, "dashboard - update bay status - persist failed", "bay_id", bay.ID, "err", err)
		return err
	}
	d.hub.Broadcast(ctx, domain.Outbound{
		Event: domain.EventBayStatusUpdate,
		Data: domain.ServiceBayStatus{
			BayID:                   bay.ID,
			Status:                  bay.Status,
			AppointmentID:           bay.AppointmentID,
			MechanicID:              bay.MechanicID,
			EstimatedCompletionTime: bay.EstimatedCompletionTime,
			ServiceType:             bay.ServiceType,
			Timestamp:               bay.UpdatedAt,
		},
	})
	d.log.InfoContext(ctx, "dashboard - update bay status - broadcast", "bay_id", bay.ID, "status", bay.Status)
	return nil
}

// UpdateQueueStatus persists the queue position and broadcasts
// queue_status_update shop-wide.
func (d *DashboardService) UpdateQueueStatus(ctx context.Context, entry *domain.QueueEntry) error {
	ctx, span := tracer.Start(ctx, "DashboardService.UpdateQueueStatus", trace.WithAttributes(
		attribute.Int64("appointment_id", entry.AppointmentID),
		attribute.String("status", entry.Status),
	))
	defer span.End()

	entry.UpdatedAt = time.Now().UTC()
	if err := d.queueRepo.UpdatePosition(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		d.log.ErrorContext(ctx, "dashboard - update queue status - persist failed", "appointment_id", entry.AppointmentID, "err", err)
		return err
	}
	d.hub.Broadcast(ctx, domain.Outbound{
		Event: domain.EventQueueStatusUpdate,
		Data: domain.QueueStatus{
			AppointmentID: entry.AppointmentID,
			Status:        entry.Status,
			Timestamp:     entry.UpdatedAt,
		},
	})
	d.log.InfoContext(ctx, "dashboard - update queue status - broadcast", "appointment_id", entry.AppointmentID, "status", entry.Status)
	return nil
}

// Queue returns the current intake queue for the initial REST fetch.
func (d *DashboardService) Queue(ctx context.Context) ([]domain.QueueEntry, error) {
	entries, err := d.queueRepo.ListQueue(ctx)
	if err != nil {
		d.log.ErrorContext(ctx, "dashboard - queue - list failed", "err", err)
		return nil, err
	}
	return entries, nil
}
