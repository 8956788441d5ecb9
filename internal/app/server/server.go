package server

import (
	"log/slog"
	"net/http"
	"time"

	"garagelive/internal/app/registry"
	"garagelive/internal/app/server/handlers"
	"garagelive/internal/config"
	"garagelive/internal/core/contracts"
	"garagelive/internal/core/services"
	"garagelive/pkg/middleware"
)

type Server struct {
	log              *slog.Logger
	mux              *http.ServeMux
	addr             string
	wsHandler        *handlers.WSHandler
	dashboardHandler *handlers.DashboardHandler
	tokenSvc         *services.TokenService
}

func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	hub *registry.Hub,
	reg *registry.Registry,
	presence contracts.PresenceStore,
	tokenSvc *services.TokenService,
	dashboard *services.DashboardService,
) *Server {
	s := &Server{
		log:              log,
		mux:              http.NewServeMux(),
		addr:             cfg.Service.Addr,
		wsHandler:        handlers.NewWSHandler(hub, reg, presence, *cfg.Socket),
		dashboardHandler: handlers.NewDashboardHandler(dashboard),
		tokenSvc:         tokenSvc,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	logging := middleware.RequestLogger(s.log)
	tracing := middleware.TracerMiddleware("garagelive")
	// Auth degrades to guest instead of rejecting: the socket handshake
	// must never 401.
	auth := middleware.OptionalAuth(s.tokenSvc)

	wrap := func(h http.Handler) http.Handler {
		return tracing(logging(auth(h)))
	}

	s.mux.Handle("/ws", wrap(http.HandlerFunc(s.wsHandler.Handler)))
	s.mux.Handle("GET /api/queue", wrap(http.HandlerFunc(s.dashboardHandler.Queue)))
	s.mux.Handle("POST /api/bays/{id}/status", wrap(http.HandlerFunc(s.dashboardHandler.UpdateBayStatus)))
	s.mux.Handle("POST /api/queue/status", wrap(http.HandlerFunc(s.dashboardHandler.UpdateQueueStatus)))
}

func (s *Server) Start() error {
	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would kill long-lived websocket sessions.
	}

	s.log.Info("server starting", "addr", s.addr)
	return server.ListenAndServe()
}
