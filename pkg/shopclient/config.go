package shopclient

import "time"

// TokenProvider yields the current credential, or "" when the caller is
// not authenticated yet. The background poll loop re-reads it on every
// tick so a token that appears later still gets a connection.
type TokenProvider func() string

// Config controls how the client connects.
type Config struct {
	URL              string
	Token            string // static credential; TokenProvider wins when set
	TokenProvider    TokenProvider
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	// PollInterval drives the opportunistic background reconnect loop.
	PollInterval time.Duration
	// SettleDelay is the pause between disconnect and reconnect in
	// ReconnectWithToken.
	SettleDelay time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      0, // push-driven stream, reads idle for long stretches
		WriteTimeout:     10 * time.Second,
		PollInterval:     5 * time.Second,
		SettleDelay:      500 * time.Millisecond,
	}
}
