package contracts

import (
	"context"

	"garagelive/internal/core/domain"
)

// Hub is the process-wide broadcaster. Producers hand it an event and a
// room target; delivery is best-effort per member and never persisted.
type Hub interface {
	// Emit fans the event out to every connection currently joined to room.
	Emit(ctx context.Context, room string, out domain.Outbound)
	// EmitExcept is Emit minus one connection, used for typing indicators.
	EmitExcept(ctx context.Context, room, exceptConnID string, out domain.Outbound)
	EmitToUser(ctx context.Context, userID string, out domain.Outbound)
	EmitToRole(ctx context.Context, role domain.Role, out domain.Outbound)
	EmitToAppointment(ctx context.Context, appointmentID int64, out domain.Outbound)
	// Broadcast targets the shop-wide dashboard room.
	Broadcast(ctx context.Context, out domain.Outbound)
}

// Registry tracks which connection belongs to which room. Purely
// in-memory, process lifetime only.
type Registry interface {
	// Register adds the connection and is required before any Join.
	Register(c Client)
	// Unregister removes the connection from every room it had joined.
	Unregister(c Client)
	// Join adds c to room, creating the room on first join. Idempotent.
	Join(c Client, room string)
	// Leave removes c from room; no-op when absent. Empty rooms are pruned.
	Leave(c Client, room string)
	// MembersOf returns a snapshot of the connections currently in room.
	MembersOf(room string) []Client
}

// Client is the minimal surface the registry needs to push to one
// websocket connection.
type Client interface {
	ConnectionID() string
	Identity() domain.Identity
	Send(ctx context.Context, data []byte) error
	Close()
}
