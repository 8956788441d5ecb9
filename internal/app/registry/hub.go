package registry

import (
	"context"
	"encoding/json"
	"log/slog"

	"garagelive/internal/core/domain"
)

// Hub fans events out to room members. It is constructed once at process
// startup and injected into every producer; there is no implicit global.
// Events are fire-and-forget: a connection that was not a member at emit
// time never receives the event, even retroactively.
type Hub struct {
	registry *Registry
	log      *slog.Logger
}

func NewHub(log *slog.Logger, registry *Registry) *Hub {
	if registry == nil {
		panic("registry: hub constructed without a registry")
	}
	return &Hub{registry: registry, log: log}
}

// Emit pushes the event to every current member of room. Delivery is
// best-effort per connection: one dead member never blocks the rest.
func (h *Hub) Emit(ctx context.Context, room string, out domain.Outbound) {
	h.emit(ctx, room, "", out)
}

// EmitExcept skips one connection, used for typing indicators where the
// sender must not see its own event.
func (h *Hub) EmitExcept(ctx context.Context, room, exceptConnID string, out domain.Outbound) {
	h.emit(ctx, room, exceptConnID, out)
}

func (h *Hub) EmitToUser(ctx context.Context, userID string, out domain.Outbound) {
	h.emit(ctx, domain.UserRoom(userID), "", out)
}

func (h *Hub) EmitToRole(ctx context.Context, role domain.Role, out domain.Outbound) {
	h.emit(ctx, domain.RoleRoom(role), "", out)
}

func (h *Hub) EmitToAppointment(ctx context.Context, appointmentID int64, out domain.Outbound) {
	h.emit(ctx, domain.AppointmentRoom(appointmentID), "", out)
}

// Broadcast targets the shop-wide dashboard room every session joins at
// handshake.
func (h *Hub) Broadcast(ctx context.Context, out domain.Outbound) {
	h.emit(ctx, domain.BroadcastRoom, "", out)
}

func (h *Hub) emit(ctx context.Context, room, exceptConnID string, out domain.Outbound) {
	if h == nil || h.registry == nil {
		// Emitting before the hub exists is a programming error, not a
		// runtime condition to recover from.
		panic("registry: emit on uninitialized hub")
	}
	data, err := json.Marshal(out)
	if err != nil {
		h.log.ErrorContext(ctx, "hub - emit - marshal failed", "event", out.Event, "err", err)
		return
	}
	for _, c := range h.registry.MembersOf(room) {
		if c.ConnectionID() == exceptConnID {
			continue
		}
		if err := c.Send(ctx, data); err != nil {
			h.log.WarnContext(ctx, "hub - emit - send failed", "event", out.Event, "room", room, "conn_id", c.ConnectionID(), "err", err)
		}
	}
}
