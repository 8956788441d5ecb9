package shopclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client is the subscription shim: it owns the transport lifecycle,
// buffers listener registrations made before a connection exists, and
// exposes semantic helpers over the wire contract. Safe for concurrent
// use.
type Client struct {
	cfg       Config
	logger    Logger
	listeners *listenerRegistry

	mu         sync.Mutex
	connected  bool
	conn       *websocket.Conn
	writeCh    chan inbound
	cancel     context.CancelFunc
	token      string
	pollCancel context.CancelFunc
}

// NewClient constructs a client with the provided config. Use
// DefaultConfig() as a starting point.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:       cfg,
		logger:    noopLogger{},
		listeners: newListenerRegistry(),
		token:     cfg.Token,
	}
}

// SetLogger overrides the logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// Connected reports whether a live transport session exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect is idempotent: an existing live connection is kept as-is.
// The current credential, when present, rides along in the handshake
// query. Credential-attributable connect failures are logged and
// swallowed so anonymous operation keeps working; every other failure
// is surfaced as a connect_error event and returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	token := c.currentTokenLocked()
	c.mu.Unlock()

	if c.cfg.URL == "" {
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return WrapError(ErrorInvalidConfig, "bad URL", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		if isAuthRejection(resp) {
			c.logger.Warn("connect rejected for credential, staying offline", map[string]any{"error": err.Error()})
			return nil
		}
		cerr := WrapError(ErrorConnection, "connect failed", err)
		c.dispatchLocal(EventConnectError, ErrorEvent{Code: cerr.Code.String(), Message: err.Error()})
		return cerr
	}

	runCtx, cancel := context.WithCancel(context.Background())
	writeCh := make(chan inbound, 16)

	c.mu.Lock()
	c.conn = conn
	c.writeCh = writeCh
	c.cancel = cancel
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(runCtx, conn)
	go c.writeLoop(runCtx, conn, writeCh)

	c.dispatchLocal(EventConnected, struct{}{})
	c.logger.Info("connected", map[string]any{"url": c.cfg.URL})
	return nil
}

// On registers a callback. With a live connection the registration is
// attached immediately; before one exists it is held in the pending
// buffer until ActivateStoredListeners runs. The returned handle is the
// argument for Off.
func (c *Client) On(event string, fn Callback) *Listener {
	c.mu.Lock()
	live := c.connected
	c.mu.Unlock()
	return c.listeners.add(event, fn, live)
}

// Off detaches the listener from both the live set and the pending
// buffer.
func (c *Client) Off(l *Listener) {
	c.listeners.remove(l)
}

// Emit sends one action to the server. At-most-once: when disconnected
// the action is dropped with a warning, never queued for later.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	connected := c.connected
	writeCh := c.writeCh
	c.mu.Unlock()
	if !connected {
		c.logger.Warn("emit while disconnected, dropping", map[string]any{"event": event})
		return NewError(ErrorNotConnected, "not connected")
	}
	select {
	case writeCh <- inbound{Type: event, Data: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActivateStoredListeners replays every buffered registration onto the
// live dispatcher, exactly once per registration. Calling it again is
// harmless.
func (c *Client) ActivateStoredListeners() {
	moved := c.listeners.flush()
	if moved > 0 {
		c.logger.Debug("activated stored listeners", map[string]any{"count": moved})
	}
}

// Disconnect tears the transport down and clears all bookkeeping, live
// and pending. A full reset, not a pause.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.writeCh = nil
	c.connected = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	c.listeners.reset()
}

// ReconnectWithToken swaps the credential mid-session: disconnect, let
// the transport settle, persist the new token, reconnect. Listeners are
// part of the reset and must be registered again by the caller.
func (c *Client) ReconnectWithToken(ctx context.Context, token string) error {
	c.Disconnect()
	if c.cfg.SettleDelay > 0 {
		select {
		case <-time.After(c.cfg.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return c.Connect(ctx)
}

// StartPolling launches the background loop that opportunistically
// connects once a credential becomes available and no live connection
// exists. Stopped by StopPolling or ctx cancellation.
func (c *Client) StartPolling(ctx context.Context) {
	interval := c.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	pollCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.pollCancel != nil {
		c.pollCancel()
	}
	c.pollCancel = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				connected := c.connected
				token := c.currentTokenLocked()
				c.mu.Unlock()
				if connected || token == "" {
					continue
				}
				// Flush first so lifecycle listeners registered while
				// offline observe the connected event.
				c.ActivateStoredListeners()
				if err := c.Connect(pollCtx); err != nil {
					c.logger.Debug("poll connect failed", map[string]any{"error": err.Error()})
				}
			}
		}
	}()
}

// StopPolling halts the background connect loop, leaving any live
// connection open.
func (c *Client) StopPolling() {
	c.mu.Lock()
	cancel := c.pollCancel
	c.pollCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) currentTokenLocked() string {
	if c.cfg.TokenProvider != nil {
		if t := c.cfg.TokenProvider(); t != "" {
			return t
		}
	}
	return c.token
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out outbound
		if err := c.readOne(ctx, conn, &out); err != nil {
			c.markDropped(conn)
			if isExpectedDisconnect(ctx, err) {
				c.dispatchLocal(EventDisconnected, ErrorEvent{Code: "closed", Message: "connection closed"})
				return
			}
			c.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			c.dispatchLocal(EventDisconnected, ErrorEvent{Code: ErrorConnection.String(), Message: err.Error()})
			return
		}
		c.listeners.dispatch(out.Event, out.Data)
	}
}

func (c *Client) readOne(ctx context.Context, conn *websocket.Conn, out *outbound) error {
	if c.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ReadTimeout)
		defer cancel()
	}
	return wsjson.Read(ctx, conn, out)
}

func (c *Client) writeOne(ctx context.Context, conn *websocket.Conn, in inbound) error {
	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, in)
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, writeCh <-chan inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-writeCh:
			if err := c.writeOne(ctx, conn, in); err != nil {
				c.logger.Warn("write loop exit", map[string]any{"error": err.Error()})
				c.markDropped(conn)
				return
			}
		}
	}
}

// markDropped clears connection state after a mid-session drop. Unlike
// Disconnect it keeps listener bookkeeping, so the next Connect cycle
// picks every registration back up.
func (c *Client) markDropped(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.writeCh = nil
	c.connected = false
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = conn.Close(websocket.StatusNormalClosure, "dropped")
}

func (c *Client) dispatchLocal(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.listeners.dispatch(event, data)
}

func isAuthRejection(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
