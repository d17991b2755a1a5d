// Package wsclient implements the persistent, auto-reconnecting
// WebSocket transport (C2) shared by every exchange collaborator. It
// generalizes the teacher's per-venue WSFeed (internal/exchange/ws.go) —
// which hardcoded Polymarket's book/price_change/trade/order message
// schema directly into the transport — into a schema-agnostic client: the
// raw dispatch and response-correlation decisions are left to the
// caller via IDExtractor and OnMessage, so the same client drives both
// public market feeds and private user feeds across venues.
package wsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options configures a Client. URL, OnMessage and IDExtractor are
// required; everything else has sane defaults.
type Options struct {
	URL string

	// OnMessage is invoked for every inbound frame that IDExtractor does
	// not claim as a pending Call response. It must not block.
	OnMessage func(data []byte)

	// IDExtractor inspects an inbound frame and reports whether it is a
	// response to an outstanding Call, and if so under which id. Frames
	// it does not recognize are routed to OnMessage instead.
	IDExtractor func(data []byte) (id string, isResponse bool)

	// OnReconnect runs after every successful (re)connection, before the
	// read loop starts, so callers can resend subscriptions. A non-nil
	// error aborts this connection attempt and triggers another retry.
	OnReconnect func(ctx context.Context, c *Client) error

	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ReconnectInterval time.Duration
	MaxReconnectWait  time.Duration

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 20 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 90 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = time.Second
	}
	if o.MaxReconnectWait <= 0 {
		o.MaxReconnectWait = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type pendingCall struct {
	ch chan []byte
}

// Client is a persistent WebSocket connection that reconnects with
// exponential backoff and correlates request/response pairs by an
// application-defined id.
type Client struct {
	opts Options

	connMu sync.Mutex
	conn   *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	done chan struct{}
	once sync.Once
}

// New creates a Client. Call Run to start the connection supervisor.
func New(opts Options) *Client {
	opts.setDefaults()
	return &Client{
		opts:    opts,
		pending: make(map[string]*pendingCall),
		done:    make(chan struct{}),
	}
}

// Run connects and maintains the connection, reconnecting with
// exponential backoff on any failure, until ctx is cancelled. Run blocks
// until ctx is cancelled; it is meant to be started in its own goroutine.
func (c *Client) Run(ctx context.Context) error {
	defer c.shutdown()

	backoff := c.opts.ReconnectInterval
	for {
		err := c.connectAndServe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.opts.Logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)
		c.failPending()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.opts.MaxReconnectWait {
			backoff = c.opts.MaxReconnectWait
		}
	}
}

// Done returns a channel closed once Run has returned and all resources
// are released.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		conn.Close()
		c.conn = nil
		c.connMu.Unlock()
	}()

	if c.opts.OnReconnect != nil {
		if err := c.opts.OnReconnect(ctx, c); err != nil {
			return fmt.Errorf("on-reconnect: %w", err)
		}
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go c.heartbeatLoop(heartbeatCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg []byte) {
	if c.opts.IDExtractor != nil {
		if id, isResponse := c.opts.IDExtractor(msg); isResponse {
			c.pendingMu.Lock()
			p, ok := c.pending[id]
			if ok {
				delete(c.pending, id)
			}
			c.pendingMu.Unlock()
			if ok {
				select {
				case p.ch <- msg:
				default:
				}
				return
			}
		}
	}
	if c.opts.OnMessage != nil {
		c.opts.OnMessage(msg)
	}
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				c.opts.Logger.Warn("heartbeat failed", "error", err)
				return
			}
		}
	}
}

// Send writes v as a JSON frame on the current connection.
func (c *Client) Send(v any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("wsclient: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *Client) writeMessage(msgType int, data []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("wsclient: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.conn.WriteMessage(msgType, data)
}

// Call sends v, then waits for a response frame correlated by id (per
// IDExtractor), up to timeout. The pending registration is removed by
// whichever of delivery or timeout happens first, so a late response
// after a Call has timed out is not leaked: with no pending entry left
// for its id, it is passed to OnMessage like any unclaimed frame.
func (c *Client) Call(ctx context.Context, id string, v any, timeout time.Duration) ([]byte, error) {
	p := &pendingCall{ch: make(chan []byte, 1)}

	c.pendingMu.Lock()
	c.pending[id] = p
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	if err := c.Send(v); err != nil {
		cleanup()
		return nil, fmt.Errorf("send: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-p.ch:
		if !ok {
			return nil, fmt.Errorf("wsclient: connection lost while awaiting call %q", id)
		}
		return resp, nil
	case <-timer.C:
		cleanup()
		return nil, fmt.Errorf("wsclient: call %q timed out after %s", id, timeout)
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	case <-c.done:
		cleanup()
		return nil, fmt.Errorf("wsclient: client shut down")
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, p := range c.pending {
		close(p.ch)
		delete(c.pending, id)
	}
}
