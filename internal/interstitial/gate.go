// Package interstitial implements the forced-view overlay policy: a
// probabilistic per-message trigger, a deterministic idle-time trigger,
// and a completion-gated dismissal. Playback is delegated to the
// presentation layer, which feeds the gate duration/progress/seek/ended
// signals.
package interstitial

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emilabos/scrappy-chat/internal/domain"
	"github.com/emilabos/scrappy-chat/internal/log"
	"github.com/emilabos/scrappy-chat/internal/store"
)

// completionSlack is how close to the reported duration playback must
// get before the ad counts as watched.
const completionSlack = 0.5

// seekTolerance is how far ahead of the last known position a seek may
// land before it is treated as a skip attempt.
const seekTolerance = 1.0

// Picker supplies playable asset URIs.
type Picker interface {
	Pick() (string, bool)
}

type Gate struct {
	store     store.Store
	ads       Picker
	idleAfter time.Duration
	onChange  func()
	logger    zerolog.Logger

	mu            sync.Mutex
	visible       bool
	completed     bool
	sentCount     int
	nextThreshold int
	duration      float64
	elapsed       float64
	currentAd     string
	idleTimer     *time.Timer
	rng           *rand.Rand
}

// NewGate builds a hidden gate. onChange is invoked (outside the gate's
// lock) whenever a timer-driven or store-driven transition changes
// visible state; UI-driven transitions are observed by their callers.
func NewGate(st store.Store, ads Picker, idleAfter time.Duration, onChange func()) *Gate {
	g := &Gate{
		store:     st,
		ads:       ads,
		idleAfter: idleAfter,
		onChange:  onChange,
		logger:    log.L().With().Str("component", "interstitial").Logger(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	g.nextThreshold = g.roll()
	return g
}

// Start applies the durable "ad owed" flag: if set, the gate is visible
// immediately (the block survives a restart); otherwise the idle timer
// is armed.
func (g *Gate) Start(ctx context.Context) {
	g.mu.Lock()
	if _, err := g.store.Get(ctx, store.KeyShowAd); err == nil {
		g.show()
	} else {
		g.armIdle()
	}
	g.mu.Unlock()
}

// Arm starts the idle countdown for a session entered after startup;
// Reset cancels the timer on logout and nothing else would restart it.
// It is a no-op while the gate is visible.
func (g *Gate) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.visible {
		return
	}
	g.armIdle()
}

// MessageSent counts one successfully sent live message and rolls the
// per-message trigger.
func (g *Gate) MessageSent() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sentCount++
	if g.visible {
		return
	}
	if g.sentCount%g.nextThreshold == 0 {
		g.show()
		g.nextThreshold = g.roll()
	}
}

// Duration records the bound media's total length in seconds.
func (g *Gate) Duration(seconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.duration = seconds
}

// Progress records playback position and marks completion once the
// position reaches the duration minus the slack.
func (g *Gate) Progress(seconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.elapsed = seconds
	if g.duration > 0 && seconds >= g.duration-completionSlack {
		g.completed = true
	}
}

// Seek inspects a reported seek position. Before completion, a position
// more than a second ahead of the last known elapsed time is a skip
// attempt: the returned correction tells playback where to jump back to.
func (g *Gate) Seek(seconds float64) (correctTo float64, suppress bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.completed && seconds > g.elapsed+seekTolerance {
		return g.elapsed, true
	}
	return 0, false
}

// Ended marks the media as played to its end.
func (g *Gate) Ended() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = true
}

// Dismiss hides the gate. It is honored only after completion; before
// that it is a no-op error and the overlay stays up. A successful
// dismissal clears the durable flag and restarts the idle timer.
func (g *Gate) Dismiss(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.visible {
		return nil
	}
	if !g.completed {
		return domain.ErrAdNotCompleted
	}

	g.visible = false
	g.completed = false
	g.duration = 0
	g.elapsed = 0
	g.currentAd = ""
	if err := g.store.Clear(ctx, store.KeyShowAd); err != nil {
		g.logger.Warn().Err(err).Msg("failed to clear ad flag")
	}
	g.armIdle()
	return nil
}

// Reset clears the session counters and cancels the idle timer. The
// durable flag is left alone: an owed ad stays owed across logout.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sentCount = 0
	g.visible = false
	g.completed = false
	g.duration = 0
	g.elapsed = 0
	g.currentAd = ""
	g.stopIdle()
}

func (g *Gate) Visible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.visible
}

func (g *Gate) Completed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed
}

func (g *Gate) SentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sentCount
}

func (g *Gate) CurrentAd() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentAd
}

// Playback returns the last known (duration, elapsed) pair in seconds.
func (g *Gate) Playback() (float64, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.duration, g.elapsed
}

// show makes the gate visible with fresh playback state. Caller holds
// the lock.
func (g *Gate) show() {
	g.visible = true
	g.completed = false
	g.duration = 0
	g.elapsed = 0
	g.stopIdle()

	if g.ads != nil {
		if uri, ok := g.ads.Pick(); ok {
			g.currentAd = uri
		} else {
			g.currentAd = ""
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.store.Set(ctx, store.KeyShowAd, "1", store.ShowAdTTL); err != nil {
		g.logger.Warn().Err(err).Msg("failed to persist ad flag")
	}
}

// armIdle (re)starts the idle timer. Caller holds the lock.
func (g *Gate) armIdle() {
	g.stopIdle()
	if g.idleAfter <= 0 {
		return
	}
	g.idleTimer = time.AfterFunc(g.idleAfter, g.idleFire)
}

// stopIdle cancels a pending idle timer. Caller holds the lock.
func (g *Gate) stopIdle() {
	if g.idleTimer != nil {
		g.idleTimer.Stop()
		g.idleTimer = nil
	}
}

func (g *Gate) idleFire() {
	g.mu.Lock()
	changed := false
	if !g.visible {
		g.show()
		changed = true
	}
	g.mu.Unlock()

	if changed && g.onChange != nil {
		g.onChange()
	}
}

func (g *Gate) roll() int {
	return 1 + g.rng.Intn(5)
}
