package postgres

import (
	"context"
	"database/sql"
	"errors"

	"garagelive/internal/core/domain"
)

type BayRepo struct {
	db *sql.DB
}

func NewBayRepo(db *sql.DB) *BayRepo {
	return &BayRepo{db: db}
}

func (r *BayRepo) GetBay(ctx context.Context, bayID int64) (*domain.ServiceBay, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, appointment_id, mechanic_id, service_type, estimated_completion_time, updated_at
		FROM service_bays WHERE id = $1`, bayID)
	var b domain.ServiceBay
	var serviceType sql.NullString
	err := row.Scan(&b.ID, &b.Status, &b.AppointmentID, &b.MechanicID, &serviceType, &b.EstimatedCompletionTime, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBayNotFound
	}
	if err != nil {
		return nil, err
	}
	b.ServiceType = serviceType.String
	return &b, nil
}

func (r *BayRepo) UpdateStatus(ctx context.Context, bay *domain.ServiceBay) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE service_bays
		SET status = $2, appointment_id = $3, mechanic_id = $4,
		    service_type = $5, estimated_completion_time = $6, updated_at = $7
		WHERE id = $1`,
		bay.ID, bay.Status, bay.AppointmentID, bay.MechanicID,
		sql.NullString{String: bay.ServiceType, Valid: bay.ServiceType != ""},
		bay.EstimatedCompletionTime, bay.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBayNotFound
	}
	return nil
}

type QueueRepo struct {
	db *sql.DB
}

func NewQueueRepo(db *sql.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

func (r *QueueRepo) UpdatePosition(ctx context.Context, entry *domain.QueueEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO service_queue (appointment_id, status, position, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appointment_id)
		DO UPDATE SET status = EXCLUDED.status, position = EXCLUDED.position, updated_at = EXCLUDED.updated_at`,
		entry.AppointmentID, entry.Status, entry.Position, entry.UpdatedAt)
	return err
}

func (r *QueueRepo) ListQueue(ctx context.Context) ([]domain.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT appointment_id, status, position, updated_at
		FROM service_queue ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.QueueEntry
	for rows.Next() {
		var e domain.QueueEntry
		if err := rows.Scan(&e.AppointmentID, &e.Status, &e.Position, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
