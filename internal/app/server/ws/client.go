package ws

import (
	"context"
	"errors"
	"sync"

	"garagelive/internal/core/domain"
)

// RuntimeClient is the registry's view of one live connection: a stable
// connection id, the identity resolved at handshake, and an ordered
// outbound pipe. A single write loop drains the buffered channel, so
// events queued by one producer reach the wire in queue order.
type RuntimeClient struct {
	ctx      context.Context
	cancel   context.CancelFunc
	ws       *WebSocket
	connID   string
	identity domain.Identity
	out      chan []byte
	once     sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	connID string,
	identity domain.Identity,
	sendBuffer int,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:      ctx,
		cancel:   cancel,
		ws:       ws,
		connID:   connID,
		identity: identity,
		out:      make(chan []byte, sendBuffer),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ConnectionID() string       { return c.connID }
func (c *RuntimeClient) Identity() domain.Identity  { return c.identity }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return errors.New("client closed")
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return errors.New("client closed")
	default:
		// Outbound buffer full: the client is too slow to keep up.
		// Dropping is correct for fire-and-forget delivery.
		return errors.New("client send buffer full")
	}
}

// Close stops the write loop via context cancellation. The out channel
// is never closed: a hub emit racing the teardown may still be inside
// Send, and a send on a closed channel would take the process down.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
