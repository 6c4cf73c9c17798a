package interstitial

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emilabos/scrappy-chat/internal/domain"
	"github.com/emilabos/scrappy-chat/internal/store"
)

type memStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *memStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memStore) Close() error { return nil }

type fixedPicker struct{ uri string }

func (p fixedPicker) Pick() (string, bool) { return p.uri, p.uri != "" }

func newTestGate(st store.Store) *Gate {
	return NewGate(st, fixedPicker{uri: "/assets/ad1.mp4"}, 0, nil)
}

func TestThresholdTrigger(t *testing.T) {
	st := newMemStore()
	g := newTestGate(st)
	g.nextThreshold = 3

	g.MessageSent()
	g.MessageSent()
	if g.Visible() {
		t.Fatal("gate visible before threshold")
	}
	g.MessageSent()
	if !g.Visible() {
		t.Fatal("gate not visible at message #3 with threshold 3")
	}
	if g.CurrentAd() != "/assets/ad1.mp4" {
		t.Fatalf("unexpected ad pick %q", g.CurrentAd())
	}
	if _, err := st.Get(context.Background(), store.KeyShowAd); err != nil {
		t.Fatalf("durable flag not set: %v", err)
	}
}

func TestRerolledThresholdGovernsNextCycle(t *testing.T) {
	g := newTestGate(newMemStore())
	g.nextThreshold = 3

	g.MessageSent()
	g.MessageSent()
	g.MessageSent() // count 3: visible, threshold rerolled
	g.nextThreshold = 5

	g.Ended()
	if err := g.Dismiss(context.Background()); err != nil {
		t.Fatalf("Dismiss after Ended: %v", err)
	}

	g.MessageSent() // 4
	if g.Visible() {
		t.Fatal("re-triggered before the new threshold")
	}
	g.MessageSent() // 5: 5 % 5 == 0
	if !g.Visible() {
		t.Fatal("did not trigger at the new threshold")
	}
}

func TestDismissBeforeCompletionIsNoOp(t *testing.T) {
	st := newMemStore()
	g := newTestGate(st)
	g.nextThreshold = 1
	g.MessageSent()

	if err := g.Dismiss(context.Background()); !errors.Is(err, domain.ErrAdNotCompleted) {
		t.Fatalf("Dismiss before completion: err = %v, want ErrAdNotCompleted", err)
	}
	if !g.Visible() {
		t.Fatal("gate hidden after refused dismissal")
	}
	if _, err := st.Get(context.Background(), store.KeyShowAd); err != nil {
		t.Fatal("durable flag cleared by refused dismissal")
	}
}

func TestProgressCompletion(t *testing.T) {
	g := newTestGate(newMemStore())
	g.nextThreshold = 1
	g.MessageSent()

	g.Duration(30)
	g.Progress(29.0)
	if g.Completed() {
		t.Fatal("completed before duration - 0.5")
	}
	g.Progress(29.5)
	if !g.Completed() {
		t.Fatal("not completed at duration - 0.5")
	}
	if err := g.Dismiss(context.Background()); err != nil {
		t.Fatalf("Dismiss after completion: %v", err)
	}
	if g.Visible() {
		t.Fatal("gate still visible after dismissal")
	}
}

func TestSeekSuppression(t *testing.T) {
	g := newTestGate(newMemStore())
	g.nextThreshold = 1
	g.MessageSent()

	g.Duration(60)
	g.Progress(8.0)

	correctTo, suppress := g.Seek(12.0)
	if !suppress {
		t.Fatal("seek 8.0 -> 12.0 before completion was not suppressed")
	}
	if correctTo != 8.0 {
		t.Fatalf("correction = %v, want 8.0", correctTo)
	}

	// Within tolerance: allowed.
	if _, suppress := g.Seek(8.5); suppress {
		t.Fatal("seek within tolerance was suppressed")
	}

	// After completion any seek is allowed.
	g.Ended()
	if _, suppress := g.Seek(55.0); suppress {
		t.Fatal("seek after completion was suppressed")
	}
}

func TestStartWithDurableFlag(t *testing.T) {
	st := newMemStore()
	if err := st.Set(context.Background(), store.KeyShowAd, "1", store.ShowAdTTL); err != nil {
		t.Fatal(err)
	}

	g := newTestGate(st)
	g.Start(context.Background())
	if !g.Visible() {
		t.Fatal("gate not visible on start with durable flag set")
	}
	if g.Completed() {
		t.Fatal("gate completed on start")
	}
}

func TestIdleTimerTrigger(t *testing.T) {
	fired := make(chan struct{}, 1)
	g := NewGate(newMemStore(), fixedPicker{uri: "/assets/ad1.mp4"}, 20*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	g.Start(context.Background())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("idle timer did not fire")
	}
	if !g.Visible() {
		t.Fatal("gate not visible after idle timer fired")
	}
}

func TestResetCancelsIdleTimerAndCounters(t *testing.T) {
	g := NewGate(newMemStore(), fixedPicker{uri: "/assets/ad1.mp4"}, 20*time.Millisecond, func() {
		t.Error("idle timer fired after Reset")
	})
	g.Start(context.Background())
	g.nextThreshold = 5
	g.MessageSent()
	g.Reset()

	if g.SentCount() != 0 {
		t.Fatalf("sent count = %d after Reset, want 0", g.SentCount())
	}
	time.Sleep(60 * time.Millisecond)
	if g.Visible() {
		t.Fatal("stale idle timer showed the gate after Reset")
	}
}

func TestArmRestartsIdleAfterReset(t *testing.T) {
	fired := make(chan struct{}, 1)
	g := NewGate(newMemStore(), fixedPicker{uri: "/assets/ad1.mp4"}, 20*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	g.Start(context.Background())
	g.Reset()
	g.Arm()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("idle timer did not fire after re-arm")
	}
	if !g.Visible() {
		t.Fatal("gate not visible after re-armed idle timer fired")
	}
}

func TestDismissClearsDurableFlag(t *testing.T) {
	st := newMemStore()
	g := newTestGate(st)
	g.nextThreshold = 1
	g.MessageSent()
	g.Ended()
	if err := g.Dismiss(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(context.Background(), store.KeyShowAd); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("durable flag after dismissal: err = %v, want ErrNotFound", err)
	}
}
