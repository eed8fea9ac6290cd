// Package relay maintains the client side of the /translate WebSocket
// connection. It uploads completed utterance segments asynchronously so the
// capture tick never blocks on the network, forwards gateway replies to a
// caller-supplied handler, and reconnects with exponential backoff when the
// connection drops.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/dragoon4890/siren/internal/resilience"
	"github.com/dragoon4890/siren/pkg/types"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second

	// defaultSendBuf bounds the number of segments waiting for upload. At
	// ~3-7 s per segment this is minutes of audio; a full queue means the
	// gateway has been unreachable for a long time and old segments are
	// stale anyway.
	defaultSendBuf = 16

	// maxReplyBytes bounds one gateway reply (JSON with base64 audio).
	maxReplyBytes = 16 << 20
)

// ErrQueueFull is returned by [Client.Send] when the upload queue is full.
// The segment is dropped; speech segmentation continues unaffected.
var ErrQueueFull = errors.New("relay: upload queue full")

// Client connects to the gateway and shuttles segments up and results down.
// Send may be called from any goroutine; Run owns the connection.
type Client struct {
	url        string
	onResult   func(types.TranslationResult)
	breaker    *resilience.CircuitBreaker
	sendCh     chan []byte
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithSendBuffer sets the upload queue depth. Default is 16.
func WithSendBuffer(n int) Option {
	return func(c *Client) { c.sendCh = make(chan []byte, n) }
}

// WithBackoff sets the initial and maximum reconnect backoff.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.backoff = initial
		c.maxBackoff = max
	}
}

// WithMaxRetries sets how many consecutive failed reconnect attempts end the
// run loop. Default is 10.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBreaker replaces the default circuit breaker guarding uploads.
func WithBreaker(b *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New creates a Client for the given gateway URL. onResult is invoked from
// the read loop goroutine for every translation reply; it must not block for
// long or replies will back up.
func New(url string, onResult func(types.TranslationResult), opts ...Option) *Client {
	c := &Client{
		url:        url,
		onResult:   onResult,
		sendCh:     make(chan []byte, defaultSendBuf),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "relay-upload"})
	}
	return c
}

// Send queues one encoded WAV segment for upload. It never blocks; when the
// queue is full the segment is dropped and [ErrQueueFull] returned.
func (c *Client) Send(segment []byte) error {
	select {
	case c.sendCh <- segment:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run connects to the gateway and services the connection until ctx is
// cancelled or reconnection fails maxRetries times in a row. A session that
// ends for any other reason triggers a reconnect with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.backoff
	retries := 0

	for {
		conn, err := c.dial(ctx)
		if err == nil {
			retries = 0
			backoff = c.backoff
			err = c.session(ctx, conn)
			conn.CloseNow()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retries++
		if retries > c.maxRetries {
			return fmt.Errorf("relay: giving up after %d reconnect attempts: %w", c.maxRetries, err)
		}
		slog.Warn("gateway connection lost, reconnecting",
			slog.Int("attempt", retries),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// dial opens the WebSocket connection and consumes the greeting.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", c.url, err)
	}
	conn.SetReadLimit(maxReplyBytes)

	typ, data, err := conn.Read(ctx)
	if err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("relay: read greeting: %w", err)
	}
	if typ != websocket.MessageText || string(data) != types.Greeting {
		conn.CloseNow()
		return nil, fmt.Errorf("relay: unexpected greeting %q", data)
	}
	slog.Info("connected to gateway", slog.String("url", c.url))
	return conn, nil
}

// session runs the upload and receive loops until one of them fails.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.writeLoop(ctx, conn) })
	g.Go(func() error { return c.readLoop(ctx, conn) })

	return g.Wait()
}

// writeLoop uploads queued segments. Uploads go through the circuit breaker;
// a rejected or failed upload drops the segment but only transport errors end
// the session.
func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case segment := <-c.sendCh:
			err := c.breaker.Execute(func() error {
				return conn.Write(ctx, websocket.MessageBinary, segment)
			})
			switch {
			case err == nil:
			case errors.Is(err, resilience.ErrCircuitOpen):
				slog.Warn("segment dropped, upload breaker open")
			default:
				return fmt.Errorf("relay: upload: %w", err)
			}
		}
	}
}

// readLoop forwards translation replies to the result handler. Non-JSON text
// frames and binary frames are ignored.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("relay: read: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		var result types.TranslationResult
		if err := json.Unmarshal(data, &result); err != nil {
			slog.Warn("unparseable gateway message", slog.String("error", err.Error()))
			continue
		}
		if c.onResult != nil {
			c.onResult(result)
		}
	}
}
