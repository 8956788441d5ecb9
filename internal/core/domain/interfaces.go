package domain

import "context"

// BayRepository reads and persists service-bay dashboard state. The
// relational store behind it is an external collaborator: producers call
// it before emitting, nothing more.
type BayRepository interface {
	GetBay(ctx context.Context, bayID int64) (*ServiceBay, error)
	UpdateStatus(ctx context.Context, bay *ServiceBay) error
}

// QueueRepository persists intake-queue positions.
type QueueRepository interface {
	UpdatePosition(ctx context.Context, entry *QueueEntry) error
	ListQueue(ctx context.Context) ([]QueueEntry, error)
}
