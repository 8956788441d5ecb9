package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"garagelive/internal/app/registry"
	"garagelive/internal/app/server/ws"
	"garagelive/internal/config"
	"garagelive/internal/core/contracts"
	"garagelive/internal/core/services"
	"garagelive/internal/platform/logger"
	"garagelive/pkg/middleware"
)

type WSHandler struct {
	hub      *registry.Hub
	registry *registry.Registry
	presence contracts.PresenceStore
	socket   config.SocketConfig
}

func NewWSHandler(
	hub *registry.Hub,
	reg *registry.Registry,
	presence contracts.PresenceStore,
	socket config.SocketConfig,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		registry: reg,
		presence: presence,
		socket:   socket,
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())

	// Identity was resolved once by the middleware; a missing or invalid
	// credential arrives here as the guest sentinel, never as a 401.
	identity := middleware.IdentityFromContext(r.Context())
	span.SetAttributes(
		attribute.String("user.id", identity.ID),
		attribute.String("user.role", string(identity.Role)),
	)

	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	// An abnormal drop ends ReadLoop without a close frame; the deferred
	// cancel still stops the heartbeat goroutine then.
	defer cancel()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", "err", err)
		return
	}
	connID := uuid.NewString()
	conn.SetCloseHandler(func(code int, text string) error {
		log.Info("ws handler - ws closed", "conn_id", connID, "user_id", identity.ID)
		cancel()
		return nil
	})
	websock := ws.NewWebSocket(ctx, conn, s.socket.WriteTimeout, s.socket.ReadLimit)
	client := ws.NewClient(ctx, websock, connID, identity, s.socket.SendBuffer)
	defer client.Close()

	session := services.NewSession(log, s.hub, s.registry, s.presence, client, s.socket.PresenceTTL)
	session.Start(ctx)
	defer session.Teardown(sessionCtx)
	log.InfoContext(r.Context(), "ws handler - session started", "conn_id", connID, "user_id", identity.ID, "role", identity.Role)

	go session.Heartbeat(ctx, s.socket.PresenceInterval)

	websock.ReadLoop(func(data []byte) {
		session.Dispatch(ctx, data)
	})
}
