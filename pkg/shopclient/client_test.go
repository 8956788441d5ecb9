package shopclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// fakeServer accepts websocket sessions and answers recognized trigger
// actions with canned events, standing in for the realtime backend.
type fakeServer struct {
	srv      *httptest.Server
	accepted atomic.Int64
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		fs.accepted.Add(1)
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			var in struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := wsjson.Read(ctx, conn, &in); err != nil {
				return
			}
			switch in.Type {
			case "trigger_one":
				fs.push(ctx, conn, EventNotification)
			case "trigger_fanin":
				fs.push(ctx, conn, EventNotification)
				fs.push(ctx, conn, EventLowStockAlert)
				fs.push(ctx, conn, EventAppointmentReminder)
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) push(ctx context.Context, conn *websocket.Conn, event string) {
	_ = wsjson.Write(ctx, conn, map[string]any{
		"event": event,
		"data":  NotificationEvent{Title: "t", Message: "m", Timestamp: time.Now().UTC()},
	})
}

func (fs *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	c := NewClient(cfg)
	t.Cleanup(c.Disconnect)
	return c
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func assertQuiet(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestConnectRequiresURL(t *testing.T) {
	c := NewClient(DefaultConfig())

	err := c.Connect(context.Background())

	var cerr *ClientError
	if !errors.As(err, &cerr) || cerr.Code != ErrorInvalidConfig {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}

func TestEmitWhileDisconnectedIsDropped(t *testing.T) {
	c := newTestClient(t, "ws://127.0.0.1:0")

	err := c.SendMessage(context.Background(), 1, "hello", "text")

	var cerr *ClientError
	if !errors.As(err, &cerr) || cerr.Code != ErrorNotConnected {
		t.Fatalf("expected not connected error, got %v", err)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs.wsURL())

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second connect: %v", err)
	}

	if got := fs.accepted.Load(); got != 1 {
		t.Errorf("server accepted %d sessions, want 1", got)
	}
	if !c.Connected() {
		t.Errorf("client not connected")
	}
}

func TestAuthRejectionStaysOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credential", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("auth rejection should be swallowed, got %v", err)
	}
	if c.Connected() {
		t.Errorf("client reports connected after rejection")
	}
}

func TestStoredListenersFireOnlyAfterActivation(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs.wsURL())

	storedCh := make(chan struct{}, 8)
	c.On(EventNotification, func(string, json.RawMessage) { storedCh <- struct{}{} })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	liveCh := make(chan struct{}, 8)
	c.On(EventNotification, func(string, json.RawMessage) { liveCh <- struct{}{} })

	if err := c.Emit(context.Background(), "trigger_one", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	waitSignal(t, liveCh, "live listener delivery")
	assertQuiet(t, storedCh, "stored listener delivery before activation")

	c.ActivateStoredListeners()
	c.ActivateStoredListeners() // repeat is a no-op

	if err := c.Emit(context.Background(), "trigger_one", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	waitSignal(t, storedCh, "stored listener delivery after activation")
	assertQuiet(t, storedCh, "duplicate delivery from repeated activation")
}

func TestNotificationFanIn(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs.wsURL())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	got := make(chan NotificationEvent, 8)
	c.OnNotification(func(ev NotificationEvent) { got <- ev })

	if err := c.Emit(context.Background(), "trigger_fanin", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case ev := <-got:
			if ev.Title != "t" {
				t.Errorf("delivery %d: unexpected payload %+v", i, ev)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("fan-in delivery %d never arrived", i)
		}
	}
}

func TestOffDetachesListener(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs.wsURL())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ch := make(chan struct{}, 8)
	l := c.On(EventNotification, func(string, json.RawMessage) { ch <- struct{}{} })
	c.Off(l)

	if err := c.Emit(context.Background(), "trigger_one", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	assertQuiet(t, ch, "delivery to detached listener")
}

func TestDisconnectIsFullReset(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs.wsURL())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ch := make(chan struct{}, 8)
	c.On(EventNotification, func(string, json.RawMessage) { ch <- struct{}{} })

	c.Disconnect()
	if c.Connected() {
		t.Fatalf("client reports connected after disconnect")
	}
	var cerr *ClientError
	if err := c.JoinAppointment(context.Background(), 1); !errors.As(err, &cerr) || cerr.Code != ErrorNotConnected {
		t.Fatalf("emit after disconnect: got %v", err)
	}

	// Listener bookkeeping is part of the reset: the old registration
	// does not survive a reconnect.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if err := c.Emit(context.Background(), "trigger_one", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	assertQuiet(t, ch, "delivery to listener registered before disconnect")
}
