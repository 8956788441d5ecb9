package contracts

import (
	"context"
	"time"
)

// PresenceStore tracks which identities are currently viewing an
// appointment room, with TTL-based expiry.
type PresenceStore interface {
	// MarkViewing sets the TTL-scored presence entry for the viewer.
	MarkViewing(ctx context.Context, appointmentID int64, userID string, ttl time.Duration) error
	// Viewers returns the identities active within the presence window.
	Viewers(ctx context.Context, appointmentID int64) ([]string, error)
	// ClearViewer removes one viewer, called on leave and disconnect.
	ClearViewer(ctx context.Context, appointmentID int64, userID string) error
}
