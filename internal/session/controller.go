// Package session composes the name store, codec, connection manager,
// history loader, and interstitial gate into the chat session
// controller. All chat state the presentation layer renders lives here.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emilabos/scrappy-chat/internal/codec"
	"github.com/emilabos/scrappy-chat/internal/conn"
	"github.com/emilabos/scrappy-chat/internal/domain"
	"github.com/emilabos/scrappy-chat/internal/interstitial"
	"github.com/emilabos/scrappy-chat/internal/log"
	"github.com/emilabos/scrappy-chat/internal/store"
)

// Conn is the connection manager surface the controller depends on.
type Conn interface {
	Connect(identity string)
	Send(line string) error
	Close()
	State() domain.ConnectionState
	Events() <-chan conn.Event
}

// HistoryFetcher is the one-shot transcript loader.
type HistoryFetcher interface {
	Fetch(ctx context.Context) ([]domain.ChatMessage, error)
}

type Controller struct {
	conn    Conn
	history HistoryFetcher
	gate    *interstitial.Gate
	store   store.Store
	clock   func() time.Time
	logger  zerolog.Logger

	// notify is a coalesced change signal for the presentation layer.
	notify chan struct{}

	mu        sync.Mutex
	identity  string
	connState domain.ConnectionState
	messages  []domain.ChatMessage
	// pending buffers live lines that arrive while the history fetch is
	// in flight; they are appended only after the historical prefix is
	// in place so history never interleaves with live traffic.
	pending         []domain.ChatMessage
	historyDone     bool
	historyInflight bool
	// gen invalidates in-flight history fetches from a session that has
	// since been logged out.
	gen int
}

func NewController(cm Conn, loader HistoryFetcher, gate *interstitial.Gate, st store.Store) *Controller {
	return &Controller{
		conn:    cm,
		history: loader,
		gate:    gate,
		store:   st,
		clock:   time.Now,
		logger:  log.L().With().Str("component", "session").Logger(),
		notify:  make(chan struct{}, 1),
	}
}

// Notify returns a coalesced signal that fires whenever the snapshot may
// have changed.
func (c *Controller) Notify() <-chan struct{} {
	return c.notify
}

// Start restores persisted state: the interstitial flag (which may force
// the gate visible immediately) and the saved display name (which
// re-enters the session without prompting).
func (c *Controller) Start(ctx context.Context) {
	c.gate.Start(ctx)

	if name, err := c.store.Get(ctx, store.KeyUsername); err == nil && strings.TrimSpace(name) != "" {
		if err := c.SubmitIdentity(ctx, name); err != nil {
			c.logger.Warn().Err(err).Msg("failed to restore identity")
		}
	}
	c.poke()
}

// Run consumes the connection manager's event stream until ctx is done.
// It is the only goroutine that mutates state in reaction to socket
// events; UI-driven methods serialize against it through the mutex.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.conn.Events():
			switch e := ev.(type) {
			case conn.StateEvent:
				c.handleState(ctx, e.State)
			case conn.LineEvent:
				c.handleLine(e.Line)
			}
		}
	}
}

// SubmitIdentity validates and adopts a display name, persists it, and
// starts the connection. The identity is immutable until logout: a
// session that already has one keeps it and the call is a no-op.
func (c *Controller) SubmitIdentity(ctx context.Context, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return domain.ErrEmptyName
	}

	c.mu.Lock()
	if c.identity != "" {
		c.mu.Unlock()
		return nil
	}
	c.identity = trimmed
	c.mu.Unlock()

	if err := c.store.Set(ctx, store.KeyUsername, trimmed, 0); err != nil {
		// Persistence failure costs the restore-on-restart nicety, not
		// the session.
		c.logger.Warn().Err(err).Msg("failed to persist display name")
	}

	c.conn.Connect(trimmed)
	c.gate.Arm()
	c.poke()
	return nil
}

// SubmitMessage validates, sends, and records one outbound message. The
// log grows as soon as the line is handed to the socket; the wire
// protocol has no delivery acknowledgment.
func (c *Controller) SubmitMessage(body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return domain.ErrEmptyMessage
	}
	if len([]rune(trimmed)) < domain.MinMessageRunes {
		return domain.ErrMessageTooShort
	}

	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()
	if identity == "" {
		return domain.ErrNotConnected
	}

	if err := c.conn.Send(codec.Encode(identity, body)); err != nil {
		return err
	}

	msg := domain.ChatMessage{
		Sender:    identity,
		Body:      body,
		Timestamp: domain.Stamp(c.clock()),
		Origin:    domain.OriginLive,
	}
	c.mu.Lock()
	c.appendLive(msg)
	c.mu.Unlock()

	c.gate.MessageSent()
	c.poke()
	return nil
}

// Logout tears the session down: connection closed, log cleared, gate
// counters and timers reset, persisted name removed. The next identity
// submission starts from a clean slate.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.identity = ""
	c.messages = nil
	c.pending = nil
	c.historyDone = false
	c.historyInflight = false
	c.mu.Unlock()

	c.conn.Close()
	c.gate.Reset()

	if err := c.store.Clear(ctx, store.KeyUsername); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear persisted name")
	}
	c.poke()
}

// DismissAd forwards a dismissal request to the gate.
func (c *Controller) DismissAd(ctx context.Context) error {
	err := c.gate.Dismiss(ctx)
	c.poke()
	return err
}

// Playback signal passthroughs, driven by the presentation layer.

func (c *Controller) ReportDuration(seconds float64) {
	c.gate.Duration(seconds)
	c.poke()
}

func (c *Controller) ReportProgress(seconds float64) {
	c.gate.Progress(seconds)
	c.poke()
}

func (c *Controller) ReportSeek(seconds float64) (correctTo float64, suppress bool) {
	correctTo, suppress = c.gate.Seek(seconds)
	c.poke()
	return correctTo, suppress
}

func (c *Controller) ReportEnded() {
	c.gate.Ended()
	c.poke()
}

// AdSnapshot is the interstitial state the presentation layer renders.
type AdSnapshot struct {
	Visible   bool
	Completed bool
	URI       string
	Duration  float64
	Elapsed   float64
}

// Snapshot is a copy of the renderable session state.
type Snapshot struct {
	Identity  string
	ConnState domain.ConnectionState
	Messages  []domain.ChatMessage
	Ad        AdSnapshot
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	msgs := make([]domain.ChatMessage, len(c.messages))
	copy(msgs, c.messages)
	snap := Snapshot{
		Identity:  c.identity,
		ConnState: c.connState,
		Messages:  msgs,
	}
	c.mu.Unlock()

	duration, elapsed := c.gate.Playback()
	snap.Ad = AdSnapshot{
		Visible:   c.gate.Visible(),
		Completed: c.gate.Completed(),
		URI:       c.gate.CurrentAd(),
		Duration:  duration,
		Elapsed:   elapsed,
	}
	return snap
}

func (c *Controller) handleState(ctx context.Context, s domain.ConnectionState) {
	c.mu.Lock()
	c.connState = s
	startFetch := s == domain.StateOpen && c.identity != "" && !c.historyDone && !c.historyInflight
	if startFetch {
		c.historyInflight = true
	}
	gen := c.gen
	c.mu.Unlock()

	if startFetch {
		go c.fetchHistory(ctx, gen)
	}
	c.poke()
}

func (c *Controller) handleLine(line string) {
	sender, body, err := codec.Decode(line)
	if err != nil {
		c.logger.Warn().Err(err).Str(log.FieldLine, line).Msg("dropping malformed line")
		return
	}

	c.mu.Lock()
	if c.identity == "" {
		// Late line from a torn-down session.
		c.mu.Unlock()
		return
	}
	// The relay echoes a sender's own lines back; they are recorded
	// like any other (duplicate-echo tolerant).
	c.appendLive(domain.ChatMessage{
		Sender:    sender,
		Body:      body,
		Timestamp: domain.Stamp(c.clock()),
		Origin:    domain.OriginLive,
	})
	c.mu.Unlock()
	c.poke()
}

// fetchHistory runs once per session, on the first transition to Open.
// Reconnects within the same session never refetch.
func (c *Controller) fetchHistory(ctx context.Context, gen int) {
	msgs, err := c.history.Fetch(ctx)

	c.mu.Lock()
	if gen != c.gen {
		// Session was logged out while the fetch was in flight.
		c.mu.Unlock()
		return
	}
	c.historyInflight = false
	c.historyDone = true
	if err != nil {
		c.logger.Warn().Err(err).Msg("history fetch failed; proceeding with empty transcript")
		msgs = nil
	}

	merged := make([]domain.ChatMessage, 0, len(msgs)+len(c.messages)+len(c.pending))
	merged = append(merged, msgs...)
	merged = append(merged, c.messages...)
	merged = append(merged, c.pending...)
	c.messages = merged
	c.pending = nil
	c.mu.Unlock()

	c.poke()
}

// appendLive routes a live message past the history barrier. Caller
// holds the lock.
func (c *Controller) appendLive(msg domain.ChatMessage) {
	if c.historyInflight {
		c.pending = append(c.pending, msg)
		return
	}
	c.messages = append(c.messages, msg)
}

// Wake nudges the presentation layer to re-read the snapshot. Timer
// driven gate transitions use it to surface without a user action.
func (c *Controller) Wake() {
	c.poke()
}

func (c *Controller) poke() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
