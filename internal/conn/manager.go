// Package conn owns the client side of the relay socket: dialing,
// bounded reconnection, send/receive, and the connection-state signal.
package conn

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/emilabos/scrappy-chat/internal/config"
	"github.com/emilabos/scrappy-chat/internal/domain"
	"github.com/emilabos/scrappy-chat/internal/log"
)

// Config tunes the manager. MaxAttempts dials are made per disconnection
// episode, RetryInterval apart; exhausting them leaves the manager
// Disconnected until the next Connect call.
type Config struct {
	WSURL         string
	MaxAttempts   int
	RetryInterval time.Duration
	WebSocket     config.WebSocketConfig
}

type Manager struct {
	cfg    Config
	dialer *websocket.Dialer
	events chan Event
	logger zerolog.Logger

	mu     sync.Mutex
	state  domain.ConnectionState
	conn   *websocket.Conn
	cancel context.CancelFunc
	// gen invalidates a superseded run's state reports after Close or a
	// fresh Connect, so a stale goroutine cannot flip the state signal.
	gen int

	writeMu sync.Mutex
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 3 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 256),
		logger: log.L().With().Str("component", "conn").Logger(),
		state:  domain.StateDisconnected,
	}
}

// Events returns the inbound event stream. The channel is never closed;
// it lives as long as the manager.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State returns the current connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts a connection run for the given identity. An empty
// identity is a no-op: no URL is constructed and the state stays
// Disconnected. A run already in progress is torn down first.
func (m *Manager) Connect(identity string) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.run(ctx, gen, identity)
}

// Send writes one wire line. It fails with ErrNotConnected unless the
// state is Open; lines are never queued for later delivery.
func (m *Manager) Send(line string) error {
	m.mu.Lock()
	if m.state != domain.StateOpen || m.conn == nil {
		m.mu.Unlock()
		return domain.ErrNotConnected
	}
	c := m.conn
	m.mu.Unlock()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	c.SetWriteDeadline(time.Now().Add(m.cfg.WebSocket.WriteWait))
	if err := c.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("failed to send line: %w", err)
	}
	return nil
}

// Close tears down the connection and any pending retry timer. It is
// idempotent and safe from any state.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.cancel == nil && m.conn == nil && m.state == domain.StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	c := m.conn
	m.conn = nil
	m.state = domain.StateClosing
	m.mu.Unlock()

	m.events <- StateEvent{State: domain.StateClosing}

	if c != nil {
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
	}

	m.mu.Lock()
	stale := m.gen != gen
	if !stale {
		m.state = domain.StateDisconnected
	}
	m.mu.Unlock()
	if !stale {
		m.events <- StateEvent{State: domain.StateDisconnected}
	}
}

func (m *Manager) run(ctx context.Context, gen int, identity string) {
	target := strings.TrimSuffix(m.cfg.WSURL, "/") + "/ws/" + url.PathEscape(identity)

	for {
		c := m.dialLoop(ctx, gen, target)
		if c == nil {
			m.setState(gen, domain.StateDisconnected)
			return
		}

		if !m.attach(gen, c) {
			c.Close()
			return
		}
		m.setState(gen, domain.StateOpen)
		m.logger.Info().Str(log.FieldUsername, identity).Msg("connected to relay")

		pingDone := make(chan struct{})
		go m.pingLoop(ctx, c, pingDone)
		m.readPump(ctx, gen, c)
		close(pingDone)
		m.detach(gen, c)

		if ctx.Err() != nil {
			return
		}
		// Dropped while open; dial again with a fresh attempt budget.
	}
}

func (m *Manager) dialLoop(ctx context.Context, gen int, target string) *websocket.Conn {
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil
		}
		m.setState(gen, domain.StateConnecting)

		c, _, err := m.dialer.DialContext(ctx, target, nil)
		if err == nil {
			return c
		}
		m.logger.Warn().Err(err).Int(log.FieldAttempt, attempt).Msg("dial failed")

		if attempt == m.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.cfg.RetryInterval):
		}
	}
	m.logger.Error().Int(log.FieldAttempt, m.cfg.MaxAttempts).Msg("reconnect attempts exhausted")
	return nil
}

func (m *Manager) readPump(ctx context.Context, gen int, c *websocket.Conn) {
	c.SetReadLimit(m.cfg.WebSocket.MaxMessageSize)
	c.SetReadDeadline(time.Now().Add(m.cfg.WebSocket.PongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(m.cfg.WebSocket.PongWait))
		return nil
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn().Err(err).Msg("read failed")
			}
			c.Close()
			return
		}
		m.emit(gen, LineEvent{Line: string(data)})
	}
}

func (m *Manager) pingLoop(ctx context.Context, c *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.WebSocket.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.writeMu.Lock()
			c.SetWriteDeadline(time.Now().Add(m.cfg.WebSocket.WriteWait))
			err := c.WriteMessage(websocket.PingMessage, nil)
			m.writeMu.Unlock()
			if err != nil {
				c.Close()
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) attach(gen int, c *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	m.conn = c
	return true
}

func (m *Manager) detach(gen int, c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen && m.conn == c {
		m.conn = nil
	}
}

func (m *Manager) setState(gen int, s domain.ConnectionState) {
	m.mu.Lock()
	if gen != m.gen || m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()

	m.events <- StateEvent{State: s}
}

func (m *Manager) emit(gen int, ev Event) {
	m.mu.Lock()
	stale := gen != m.gen
	m.mu.Unlock()
	if stale {
		return
	}
	m.events <- ev
}
