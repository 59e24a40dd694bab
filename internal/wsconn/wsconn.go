// Package wsconn provides a reconnecting WebSocket client built on
// github.com/coder/websocket.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// MessageHandler receives every inbound message.
type MessageHandler func(ctx context.Context, msg []byte)

// StateChangeHandler is notified on every state transition. err is non-nil
// when the transition was caused by a failure.
type StateChangeHandler func(state State, err error)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // identifies the connection in logs/metrics
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults for an exchange or node stream.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

type connMetrics struct {
	reconnects metric.Int64Counter
	received   metric.Int64Counter
	sent       metric.Int64Counter
}

// Client is a WebSocket client with automatic reconnection.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.Mutex

	state   State
	stateMu sync.RWMutex

	onMessage     MessageHandler
	onStateChange StateChangeHandler
	handlersMu    sync.RWMutex

	reconnects atomic.Int32
	closed     atomic.Bool
	done       chan struct{}

	metrics *connMetrics
}

// New creates a client; Connect must be called before use.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("wsconn: empty URL")
	}

	c := &Client{
		config: cfg,
		state:  StateDisconnected,
		done:   make(chan struct{}),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter("wsconn")
	m := &connMetrics{}
	var err error

	m.reconnects, err = meter.Int64Counter(
		"ws_reconnects_total",
		metric.WithDescription("Total WebSocket reconnect attempts"),
	)
	if err != nil {
		return err
	}
	m.received, err = meter.Int64Counter(
		"ws_messages_received_total",
		metric.WithDescription("Total WebSocket messages received"),
	)
	if err != nil {
		return err
	}
	m.sent, err = meter.Int64Counter(
		"ws_messages_sent_total",
		metric.WithDescription("Total WebSocket messages sent"),
	)
	if err != nil {
		return err
	}

	c.metrics = m
	return nil
}

// OnMessage registers the inbound message handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange registers the state transition handler.
func (c *Client) OnStateChange(h StateChangeHandler) {
	c.handlersMu.Lock()
	c.onStateChange = h
	c.handlersMu.Unlock()
}

// Connect dials once. On success the read loop (and keep-alive pings) run
// until the connection drops, after which the client reconnects on its own.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("wsconn: client closed")
	}

	c.setState(StateConnecting, nil)

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected, err)
		return fmt.Errorf("wsconn: dial %s: %w", c.config.URL, err)
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(context.WithoutCancel(ctx))
	if c.config.PingInterval > 0 {
		go c.pingLoop(context.WithoutCancel(ctx))
	}

	return nil
}

// ConnectWithRetry dials with exponential backoff until success, the context
// is cancelled, or MaxReconnects is exhausted.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	attempts := 0

	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}

		attempts++
		if c.config.MaxReconnects > 0 && attempts >= c.config.MaxReconnects {
			return fmt.Errorf("wsconn: giving up after %d attempts: %w", attempts, err)
		}

		// Full jitter keeps herds of clients from reconnecting in lockstep.
		sleep := time.Duration(rand.Int63n(int64(backoff)) + int64(backoff)/2)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errors.New("wsconn: client closed")
		case <-time.After(sleep):
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

// Send writes a raw text message.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil || c.State() != StateConnected {
		return errors.New("wsconn: not connected")
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("wsconn: write: %w", err)
	}
	c.metrics.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("conn", c.config.Name)))
	return nil
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsconn: marshal: %w", err)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Reconnects returns the number of reconnect attempts so far.
func (c *Client) Reconnects() int {
	return int(c.reconnects.Load())
}

// Close shuts the client down. It is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	c.setState(StateClosed, nil)
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		readCtx := ctx
		var cancel context.CancelFunc
		if c.config.ReadTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(readCtx)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			if c.closed.Load() {
				return
			}
			c.setState(StateReconnecting, err)
			c.reconnect(ctx)
			return
		}

		c.metrics.received.Add(ctx, 1, metric.WithAttributes(attribute.String("conn", c.config.Name)))

		c.handlersMu.RLock()
		handler := c.onMessage
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(ctx, data)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	t := time.NewTicker(c.config.PingInterval)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil || c.State() != StateConnected {
				return
			}
			pingCtx, cancel := context.WithTimeout(ctx, c.config.WriteTimeout)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (c *Client) reconnect(ctx context.Context) {
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusAbnormalClosure, "reconnecting")
		c.conn = nil
	}
	c.connMu.Unlock()

	c.reconnects.Add(1)
	c.metrics.reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("conn", c.config.Name)))

	if err := c.ConnectWithRetry(ctx); err != nil {
		c.setState(StateDisconnected, err)
	}
}

func (c *Client) setState(state State, err error) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()

	c.handlersMu.RLock()
	handler := c.onStateChange
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(state, err)
	}
}
