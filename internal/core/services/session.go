package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"garagelive/internal/core/contracts"
	"garagelive/internal/core/domain"
)

var tracer = otel.Tracer("session-service")

// Session is the server-side state for one connection: the identity
// resolved at handshake and the inbound action handlers. Identity never
// changes for the life of the session.
type Session struct {
	log      *slog.Logger
	hub      contracts.Hub
	registry contracts.Registry
	presence contracts.PresenceStore
	client   contracts.Client

	presenceTTL time.Duration

	mu           sync.Mutex
	appointments map[int64]struct{} // appointment rooms joined, for presence cleanup
}

func NewSession(
	log *slog.Logger,
	hub contracts.Hub,
	registry contracts.Registry,
	presence contracts.PresenceStore,
	client contracts.Client,
	presenceTTL time.Duration,
) *Session {
	return &Session{
		log:          log,
		hub:          hub,
		registry:     registry,
		presence:     presence,
		client:       client,
		presenceTTL:  presenceTTL,
		appointments: make(map[int64]struct{}),
	}
}

// Start registers the connection and auto-joins its identity rooms plus
// the shop-wide broadcast room. Guests get the same treatment with the
// guest sentinel identity.
func (s *Session) Start(ctx context.Context) {
	id := s.client.Identity()
	s.registry.Register(s.client)
	s.registry.Join(s.client, domain.UserRoom(id.ID))
	s.registry.Join(s.client, domain.RoleRoom(id.Role))
	s.registry.Join(s.client, domain.BroadcastRoom)
	s.sendLocal(ctx, domain.Outbound{
		Event: domain.EventConnected,
		Data:  domain.ConnectedEvent{ConnectionID: s.client.ConnectionID(), Identity: id},
	})
	s.log.InfoContext(ctx, "session - start - connected", "conn_id", s.client.ConnectionID(), "user_id", id.ID, "role", id.Role)
}

// Teardown runs on transport close. Registry cleanup is implicit: the
// unregister removes the connection from every joined room.
func (s *Session) Teardown(ctx context.Context) {
	id := s.client.Identity()
	s.mu.Lock()
	joined := make([]int64, 0, len(s.appointments))
	for aid := range s.appointments {
		joined = append(joined, aid)
	}
	s.appointments = make(map[int64]struct{})
	s.mu.Unlock()
	for _, aid := range joined {
		if err := s.presence.ClearViewer(ctx, aid, id.ID); err != nil {
			s.log.WarnContext(ctx, "session - teardown - clear viewer failed", "appointment_id", aid, "err", err)
		}
	}
	s.registry.Unregister(s.client)
	s.log.InfoContext(ctx, "session - teardown - disconnected", "conn_id", s.client.ConnectionID(), "user_id", id.ID)
}

// Heartbeat refreshes viewer presence for every joined appointment room
// until ctx is cancelled.
func (s *Session) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id := s.client.Identity()
			s.mu.Lock()
			joined := make([]int64, 0, len(s.appointments))
			for aid := range s.appointments {
				joined = append(joined, aid)
			}
			s.mu.Unlock()
			for _, aid := range joined {
				if err := s.presence.MarkViewing(ctx, aid, id.ID, s.presenceTTL); err != nil {
					s.log.WarnContext(ctx, "session - heartbeat - mark viewing failed", "appointment_id", aid, "err", err)
				}
			}
		}
	}
}

// Dispatch validates and routes one client-submitted action. Every
// failure is local: an error event to this connection, never a
// disconnect.
func (s *Session) Dispatch(ctx context.Context, raw []byte) {
	ctx, span := tracer.Start(ctx, "Session.Dispatch", trace.WithAttributes(
		attribute.String("conn_id", s.client.ConnectionID()),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()

	var in domain.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "session - dispatch - malformed envelope", "conn_id", s.client.ConnectionID(), "err", err)
		s.sendError(ctx, "malformed_payload", "could not parse message envelope")
		return
	}
	span.SetAttributes(attribute.String("action", in.Type))

	switch in.Type {
	case domain.ActionJoinAppointment:
		s.handleJoin(ctx, in.Data)
	case domain.ActionLeaveAppointment:
		s.handleLeave(ctx, in.Data)
	case domain.ActionSendMessage:
		s.handleSendMessage(ctx, in.Data)
	case domain.ActionUpdateProgress:
		s.handleUpdateProgress(ctx, in.Data)
	case domain.ActionTypingStart:
		s.handleTyping(ctx, in.Data, true)
	case domain.ActionTypingStop:
		s.handleTyping(ctx, in.Data, false)
	default:
		span.SetStatus(codes.Error, "unknown action")
		s.log.WarnContext(ctx, "session - dispatch - unknown action", "action", in.Type, "conn_id", s.client.ConnectionID())
		s.sendDomainError(ctx, fmt.Errorf("%w %q", domain.ErrUnknownAction, in.Type))
	}
}

// Read visibility of an appointment room is intentionally open to any
// connected party who knows the id.
func (s *Session) handleJoin(ctx context.Context, data json.RawMessage) {
	var ref domain.ResourceRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ID == 0 {
		s.sendDomainError(ctx, fmt.Errorf("join_appointment: %w", domain.ErrMissingResourceID))
		return
	}
	s.registry.Join(s.client, domain.AppointmentRoom(ref.ID))
	s.mu.Lock()
	s.appointments[ref.ID] = struct{}{}
	s.mu.Unlock()
	id := s.client.Identity()
	if err := s.presence.MarkViewing(ctx, ref.ID, id.ID, s.presenceTTL); err != nil {
		s.log.WarnContext(ctx, "session - join - mark viewing failed", "appointment_id", ref.ID, "err", err)
	}
	s.log.InfoContext(ctx, "session - join - joined appointment room", "appointment_id", ref.ID, "user_id", id.ID)
}

func (s *Session) handleLeave(ctx context.Context, data json.RawMessage) {
	var ref domain.ResourceRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ID == 0 {
		s.sendDomainError(ctx, fmt.Errorf("leave_appointment: %w", domain.ErrMissingResourceID))
		return
	}
	s.registry.Leave(s.client, domain.AppointmentRoom(ref.ID))
	s.mu.Lock()
	delete(s.appointments, ref.ID)
	s.mu.Unlock()
	id := s.client.Identity()
	if err := s.presence.ClearViewer(ctx, ref.ID, id.ID); err != nil {
		s.log.WarnContext(ctx, "session - leave - clear viewer failed", "appointment_id", ref.ID, "err", err)
	}
}

func (s *Session) handleSendMessage(ctx context.Context, data json.RawMessage) {
	var p domain.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.sendError(ctx, "malformed_payload", "could not parse send_message payload")
		return
	}
	if err := p.Validate(); err != nil {
		s.sendDomainError(ctx, fmt.Errorf("send_message: %w", err))
		return
	}
	// No participant check here: any connected sender who knows the
	// appointment id may post. See DESIGN.md before tightening.
	msg := domain.ChatMessage{
		ResourceID: p.ResourceID,
		Message:    p.Message,
		Kind:       p.Kind,
		FileURL:    p.FileURL,
		FileName:   p.FileName,
		Sender:     s.client.Identity(),
		Timestamp:  time.Now().UTC(),
	}
	s.hub.EmitToAppointment(ctx, p.ResourceID, domain.Outbound{Event: domain.EventNewMessage, Data: msg})
	s.log.InfoContext(ctx, "session - send message - broadcast", "appointment_id", p.ResourceID, "sender_id", msg.Sender.ID)
}

func (s *Session) handleUpdateProgress(ctx context.Context, data json.RawMessage) {
	ctx, span := tracer.Start(ctx, "Session.UpdateProgress")
	defer span.End()
	id := s.client.Identity()
	if !id.CanUpdateProgress() {
		span.SetStatus(codes.Error, "forbidden")
		s.log.WarnContext(ctx, "session - update progress - forbidden", "user_id", id.ID, "role", id.Role)
		s.sendDomainError(ctx, fmt.Errorf("%w: only admin or mechanic may update progress", domain.ErrForbidden))
		return
	}
	var p domain.UpdateProgressPayload
	if err := json.Unmarshal(data, &p); err != nil {
		span.SetStatus(codes.Error, "malformed payload")
		s.sendError(ctx, "malformed_payload", "could not parse update_progress payload")
		return
	}
	if err := p.Validate(); err != nil {
		span.SetStatus(codes.Error, "malformed payload")
		s.sendDomainError(ctx, fmt.Errorf("update_progress: %w", err))
		return
	}
	update := domain.ProgressUpdate{
		ResourceID: p.ResourceID,
		Status:     p.Status,
		Message:    p.Message,
		UpdatedBy:  id,
		Timestamp:  time.Now().UTC(),
	}
	span.SetAttributes(
		attribute.Int64("appointment_id", p.ResourceID),
		attribute.String("status", p.Status),
	)
	// Two event names feed the same client-visible concern; both are
	// part of the wire contract.
	s.hub.EmitToAppointment(ctx, p.ResourceID, domain.Outbound{Event: domain.EventProgressUpdate, Data: update})
	s.hub.EmitToAppointment(ctx, p.ResourceID, domain.Outbound{Event: domain.EventAppointmentProgress, Data: update})
	s.log.InfoContext(ctx, "session - update progress - broadcast", "appointment_id", p.ResourceID, "status", p.Status, "updated_by", id.ID)
}

func (s *Session) handleTyping(ctx context.Context, data json.RawMessage, typing bool) {
	var ref domain.ResourceRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ID == 0 {
		s.sendDomainError(ctx, fmt.Errorf("typing: %w", domain.ErrMissingResourceID))
		return
	}
	id := s.client.Identity()
	ev := domain.TypingEvent{
		ResourceID: ref.ID,
		UserID:     id.ID,
		UserName:   id.Name,
		Typing:     typing,
	}
	s.hub.EmitExcept(ctx, domain.AppointmentRoom(ref.ID), s.client.ConnectionID(),
		domain.Outbound{Event: domain.EventUserTyping, Data: ev})
}

// sendDomainError maps validation sentinels onto the wire error codes.
func (s *Session) sendDomainError(ctx context.Context, err error) {
	s.sendError(ctx, errorCode(err), err.Error())
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrUnknownAction):
		return "unknown_action"
	default:
		return "malformed_payload"
	}
}

func (s *Session) sendError(ctx context.Context, code, msg string) {
	s.sendLocal(ctx, domain.Outbound{
		Event: domain.EventError,
		Data:  domain.ErrorMessage{Code: code, Message: msg},
	})
}

func (s *Session) sendLocal(ctx context.Context, out domain.Outbound) {
	data, err := json.Marshal(out)
	if err != nil {
		s.log.ErrorContext(ctx, "session - send local - marshal failed", "event", out.Event, "err", err)
		return
	}
	if err := s.client.Send(ctx, data); err != nil {
		s.log.WarnContext(ctx, "session - send local - send failed", "event", out.Event, "err", err)
	}
}
