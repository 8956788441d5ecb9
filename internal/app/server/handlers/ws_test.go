package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	appregistry "garagelive/internal/app/registry"
	"garagelive/internal/config"
	"garagelive/internal/core/domain"
	"garagelive/internal/core/services"
	"garagelive/pkg/middleware"
)

const testSecret = "integration-test-secret"

type stubPresence struct {
	mu      sync.Mutex
	viewers map[int64]map[string]struct{}
	marks   int
}

func newStubPresence() *stubPresence {
	return &stubPresence{viewers: make(map[int64]map[string]struct{})}
}

func (p *stubPresence) MarkViewing(_ context.Context, aid int64, userID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.viewers[aid] == nil {
		p.viewers[aid] = make(map[string]struct{})
	}
	p.viewers[aid][userID] = struct{}{}
	p.marks++
	return nil
}

func (p *stubPresence) markCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marks
}

func (p *stubPresence) Viewers(_ context.Context, aid int64) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for id := range p.viewers[aid] {
		out = append(out, id)
	}
	return out, nil
}

func (p *stubPresence) ClearViewer(_ context.Context, aid int64, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.viewers[aid], userID)
	return nil
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := appregistry.NewRegistry()
	hub := appregistry.NewHub(slog.Default(), reg)
	socket := config.SocketConfig{
		WriteTimeout:     5 * time.Second,
		ReadLimit:        64 * 1024,
		SendBuffer:       32,
		PresenceTTL:      time.Minute,
		PresenceInterval: time.Minute,
	}
	wsHandler := NewWSHandler(hub, reg, newStubPresence(), socket)
	auth := middleware.OptionalAuth(services.NewTokenService(testSecret))
	srv := httptest.NewServer(auth(http.HandlerFunc(wsHandler.Handler)))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func mintToken(t *testing.T, sub, name string, role domain.Role) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"name": name,
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal frame %s: %v", raw, err)
	}
	return env
}

// waitFor reads frames until one with the wanted event name arrives.
func waitFor(t *testing.T, conn *websocket.Conn, event string) envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		env := readEvent(t, conn)
		if env.Event == event {
			return env
		}
	}
	t.Fatalf("no %s event before deadline", event)
	return envelope{}
}

func send(t *testing.T, conn *websocket.Conn, action string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal action data: %v", err)
	}
	if err := conn.WriteJSON(domain.Inbound{Type: action, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", action, err)
	}
}

func connectedIdentity(t *testing.T, conn *websocket.Conn) domain.ConnectedEvent {
	t.Helper()
	env := waitFor(t, conn, domain.EventConnected)
	var ce domain.ConnectedEvent
	if err := json.Unmarshal(env.Data, &ce); err != nil {
		t.Fatalf("unmarshal connected event: %v", err)
	}
	return ce
}

// joinAndSettle joins an appointment room and round-trips a chat message
// so the caller knows the join has been processed server-side.
func joinAndSettle(t *testing.T, conn *websocket.Conn, appointmentID int64) {
	t.Helper()
	send(t, conn, domain.ActionJoinAppointment, appointmentID)
	send(t, conn, domain.ActionSendMessage, domain.SendMessagePayload{
		ResourceID: appointmentID, Message: "settle", Kind: "text",
	})
	waitFor(t, conn, domain.EventNewMessage)
}

func TestInvalidTokenDegradesToGuest(t *testing.T) {
	srv := startTestServer(t)

	conn := dial(t, srv, "not-a-jwt")
	ce := connectedIdentity(t, conn)

	if ce.Identity.Role != domain.RoleGuest {
		t.Errorf("identity role: got %s, want guest", ce.Identity.Role)
	}
	if !strings.HasPrefix(ce.Identity.ID, "guest:") {
		t.Errorf("guest id: got %q", ce.Identity.ID)
	}
	if ce.ConnectionID == "" {
		t.Errorf("connection id missing")
	}
}

func TestMissingTokenDegradesToGuest(t *testing.T) {
	srv := startTestServer(t)

	conn := dial(t, srv, "")
	ce := connectedIdentity(t, conn)

	if ce.Identity.Role != domain.RoleGuest {
		t.Errorf("identity role: got %s, want guest", ce.Identity.Role)
	}
}

func TestValidTokenResolvesIdentity(t *testing.T) {
	srv := startTestServer(t)

	conn := dial(t, srv, mintToken(t, "u-7", "Val", domain.RoleAdmin))
	ce := connectedIdentity(t, conn)

	if ce.Identity.ID != "u-7" || ce.Identity.Name != "Val" || ce.Identity.Role != domain.RoleAdmin {
		t.Errorf("identity: got %+v", ce.Identity)
	}
}

func TestProgressGateAcrossConnections(t *testing.T) {
	srv := startTestServer(t)

	customer := dial(t, srv, mintToken(t, "cust-1", "Cy", domain.RoleCustomer))
	connectedIdentity(t, customer)
	admin := dial(t, srv, mintToken(t, "adm-1", "Al", domain.RoleAdmin))
	connectedIdentity(t, admin)

	joinAndSettle(t, customer, 42)

	// Customer-side attempt bounces locally.
	send(t, customer, domain.ActionUpdateProgress, domain.UpdateProgressPayload{
		ResourceID: 42, Status: "in_service",
	})
	errEnv := waitFor(t, customer, domain.EventError)
	var em domain.ErrorMessage
	if err := json.Unmarshal(errEnv.Data, &em); err != nil {
		t.Fatalf("unmarshal error event: %v", err)
	}
	if em.Code != "forbidden" {
		t.Errorf("error code: got %q, want forbidden", em.Code)
	}

	// Admin-side attempt reaches the room.
	send(t, admin, domain.ActionUpdateProgress, domain.UpdateProgressPayload{
		ResourceID: 42, Status: "in_service", Message: "under way",
	})
	env := waitFor(t, customer, domain.EventProgressUpdate)
	var pu domain.ProgressUpdate
	if err := json.Unmarshal(env.Data, &pu); err != nil {
		t.Fatalf("unmarshal progress update: %v", err)
	}
	if pu.UpdatedBy.ID != "adm-1" || pu.UpdatedBy.Role != domain.RoleAdmin {
		t.Errorf("updated by: got %+v", pu.UpdatedBy)
	}
	if pu.Status != "in_service" {
		t.Errorf("status: got %q", pu.Status)
	}
	// The companion wire name follows on the same connection.
	waitFor(t, customer, domain.EventAppointmentProgress)
}

func TestLateJoinerGetsNoBacklog(t *testing.T) {
	srv := startTestServer(t)

	admin := dial(t, srv, mintToken(t, "adm-1", "Al", domain.RoleAdmin))
	connectedIdentity(t, admin)
	member := dial(t, srv, mintToken(t, "cust-1", "Cy", domain.RoleCustomer))
	connectedIdentity(t, member)
	joinAndSettle(t, member, 77)

	send(t, admin, domain.ActionUpdateProgress, domain.UpdateProgressPayload{
		ResourceID: 77, Status: "done",
	})
	waitFor(t, member, domain.EventProgressUpdate)

	// A connection joining after the emit sees nothing of it.
	late := dial(t, srv, mintToken(t, "cust-2", "Lena", domain.RoleCustomer))
	connectedIdentity(t, late)
	send(t, late, domain.ActionJoinAppointment, int64(77))

	late.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, raw, err := late.ReadMessage()
	if err == nil {
		t.Fatalf("late joiner received backlog frame: %s", raw)
	}
	var netErr interface{ Timeout() bool }
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func waitCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAbnormalDropStopsHeartbeat(t *testing.T) {
	reg := appregistry.NewRegistry()
	hub := appregistry.NewHub(slog.Default(), reg)
	presence := newStubPresence()
	socket := config.SocketConfig{
		WriteTimeout:     5 * time.Second,
		ReadLimit:        64 * 1024,
		SendBuffer:       32,
		PresenceTTL:      time.Minute,
		PresenceInterval: 20 * time.Millisecond,
	}
	wsHandler := NewWSHandler(hub, reg, presence, socket)
	auth := middleware.OptionalAuth(services.NewTokenService(testSecret))
	srv := httptest.NewServer(auth(http.HandlerFunc(wsHandler.Handler)))
	t.Cleanup(srv.Close)

	conn := dial(t, srv, mintToken(t, "hb-1", "Hal", domain.RoleCustomer))
	connectedIdentity(t, conn)
	send(t, conn, domain.ActionJoinAppointment, int64(9))
	waitCondition(t, "heartbeat refreshes", func() bool { return presence.markCount() >= 3 })

	// Kill the TCP stream without a close frame, like a crashed client.
	conn.UnderlyingConn().Close()
	waitCondition(t, "session teardown", func() bool {
		return len(reg.MembersOf(domain.UserRoom("hb-1"))) == 0
	})

	time.Sleep(100 * time.Millisecond)
	before := presence.markCount()
	time.Sleep(300 * time.Millisecond)
	if after := presence.markCount(); after != before {
		t.Fatalf("heartbeat survived the drop: %d refreshes since teardown", after-before)
	}
}

func TestInboundOrderingPreserved(t *testing.T) {
	srv := startTestServer(t)

	sender := dial(t, srv, mintToken(t, "cust-1", "Cy", domain.RoleCustomer))
	connectedIdentity(t, sender)
	joinAndSettle(t, sender, 5)

	for i := 0; i < 10; i++ {
		send(t, sender, domain.ActionSendMessage, domain.SendMessagePayload{
			ResourceID: 5, Message: strings.Repeat("x", i+1), Kind: "text",
		})
	}
	for i := 0; i < 10; i++ {
		env := waitFor(t, sender, domain.EventNewMessage)
		var msg domain.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("unmarshal message %d: %v", i, err)
		}
		if len(msg.Message) != i+1 {
			t.Fatalf("message %d out of order: got %q", i, msg.Message)
		}
	}
}
