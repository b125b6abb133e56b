// Package realtime implements the bidirectional push/invoke channel the
// lobby and game coordinators ride on. A Channel dials the server's hub
// endpoint over websocket, dispatches named server events to registered
// handlers one at a time in arrival order, and sends named commands back.
// Lost connections are redialed automatically; handler registrations
// survive reconnects.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State is the connection lifecycle of a Channel. The Channel is the only
// writer; everything else just reads it.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by Invoke when no connection is up. The
// command is not queued; callers decide whether to retry or surface it.
var ErrNotConnected = errors.New("channel not connected")

// Handler consumes one inbound server event. Handlers for a channel never
// run concurrently with each other or with posted work.
type Handler func(data json.RawMessage)

// TokenProvider supplies the access token attached to the dial request.
// ok=false dials without credentials.
type TokenProvider func() (token string, ok bool)

// Config holds dial and keepalive settings for a Channel.
type Config struct {
	Endpoint      string // ws:// or wss:// hub URL
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	PongTimeout   time.Duration
	PingInterval  time.Duration
	ReconnectWait time.Duration
	SendBuffer    int
}

// DefaultConfig returns keepalive settings that match the server's hub
// expectations.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:      endpoint,
		DialTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		PongTimeout:   60 * time.Second,
		PingInterval:  30 * time.Second,
		ReconnectWait: 2 * time.Second,
		SendBuffer:    64,
	}
}

// frame is the wire envelope for both directions: a named event or command
// plus its JSON payload.
type frame struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Channel is a reconnecting push/invoke connection. All inbound events and
// all work submitted through Post are executed by a single dispatch
// goroutine, so coordinator state transitions never interleave.
type Channel struct {
	cfg   Config
	token TokenProvider
	clock clockwork.Clock

	mu       sync.Mutex
	state    State
	handlers map[string]Handler
	send     chan []byte // valid while a connection is up
	connID   string

	dispatchCh chan func()
	done       chan struct{}
	closeOnce  sync.Once
}

// NewChannel builds a channel for the given endpoint. Call Connect to dial.
func NewChannel(cfg Config, token TokenProvider, clock clockwork.Clock) *Channel {
	c := &Channel{
		cfg:        cfg,
		token:      token,
		clock:      clock,
		state:      Disconnected,
		handlers:   make(map[string]Handler),
		dispatchCh: make(chan func(), 256),
		done:       make(chan struct{}),
	}
	go c.dispatchLoop()
	return c
}

// On registers the handler for a named server event, replacing any previous
// registration. Registrations persist across reconnects.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = h
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Post enqueues fn onto the channel's dispatch queue. Timer callbacks and
// request continuations use this to re-enter the same single-threaded
// execution as event handlers.
func (c *Channel) Post(fn func()) {
	select {
	case c.dispatchCh <- fn:
	case <-c.done:
	}
}

// Invoke sends a named command to the server. Zero args sends a bare
// command, one arg sends it as the payload, more are sent as an array.
// Invoking while disconnected fails with ErrNotConnected.
func (c *Channel) Invoke(command string, args ...any) error {
	var data json.RawMessage
	switch len(args) {
	case 0:
	case 1:
		b, err := json.Marshal(args[0])
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", command, err)
		}
		data = b
	default:
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", command, err)
		}
		data = b
	}

	b, err := json.Marshal(frame{ID: uuid.New().String(), Type: command, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", command, err)
	}

	c.mu.Lock()
	if c.state != Connected || c.send == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	send := c.send
	c.mu.Unlock()

	select {
	case send <- b:
		return nil
	default:
		return fmt.Errorf("invoke %s: send buffer full", command)
	}
}

// Connect dials the endpoint and keeps the connection alive until the
// channel is closed or ctx is cancelled. The first dial happens
// synchronously so the caller learns about an unreachable endpoint; later
// redials run in the background.
func (c *Channel) Connect(ctx context.Context) error {
	c.setState(Connecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("connect %s: %w", c.cfg.Endpoint, err)
	}
	lost := c.attach(conn)

	go c.reconnectLoop(ctx, lost)
	return nil
}

// Close tears the channel down. Pending dispatch work is dropped.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
	})
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != nil {
		if tok, ok := c.token(); ok {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.Endpoint, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// attach installs a fresh connection and starts its pumps. The returned
// channel closes when the connection is lost.
func (c *Channel) attach(conn *websocket.Conn) chan struct{} {
	send := make(chan []byte, c.cfg.SendBuffer)
	connID := uuid.New().String()[:8]

	c.mu.Lock()
	c.send = send
	c.connID = connID
	c.state = Connected
	c.mu.Unlock()

	lost := make(chan struct{})
	go c.writePump(conn, send, lost)
	go c.readPump(conn, lost)

	log.Info().Str("conn_id", connID).Str("endpoint", c.cfg.Endpoint).Msg("channel connected")
	return lost
}

// reconnectLoop redials after every connection loss until the channel is
// closed. Event handlers carry over untouched.
func (c *Channel) reconnectLoop(ctx context.Context, lost chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			c.Close()
			return
		case <-lost:
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.setState(Reconnecting)
		log.Warn().Str("endpoint", c.cfg.Endpoint).Msg("channel lost, reconnecting")

		for {
			select {
			case <-c.clock.After(c.cfg.ReconnectWait):
			case <-c.done:
				return
			case <-ctx.Done():
				c.Close()
				return
			}

			conn, err := c.dial(ctx)
			if err != nil {
				log.Error().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("redial failed")
				continue
			}
			lost = c.attach(conn)
			break
		}
	}
}

func (c *Channel) readPump(conn *websocket.Conn, lost chan struct{}) {
	defer c.detach(conn, lost)

	conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("channel read failed")
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Error().Err(err).Msg("malformed channel frame dropped")
			continue
		}
		c.deliver(f)
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send chan []byte, lost chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-lost:
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-c.done:
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error().Err(err).Msg("channel write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver hands an inbound frame to its handler on the dispatch queue.
// Frames with no registered handler are dropped; the adapter never
// fabricates events.
func (c *Channel) deliver(f frame) {
	c.mu.Lock()
	h, ok := c.handlers[f.Type]
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("event", f.Type).Msg("unhandled channel event")
		return
	}
	c.Post(func() { h(f.Data) })
}

// detach marks the connection lost so the reconnect loop takes over.
func (c *Channel) detach(conn *websocket.Conn, lost chan struct{}) {
	conn.Close()
	close(lost)

	c.mu.Lock()
	if c.state == Connected {
		c.state = Disconnected
	}
	c.send = nil
	c.mu.Unlock()
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) dispatchLoop() {
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.dispatchCh:
			fn()
		}
	}
}
