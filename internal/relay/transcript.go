package relay

import (
	"context"
	"sync"
)

// Transcript is the ordered record of wire lines served by the history
// endpoint. Implementations bound their length; the oldest lines fall
// off first.
type Transcript interface {
	Append(ctx context.Context, line string) error
	Lines(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryTranscript keeps the transcript in process memory.
type MemoryTranscript struct {
	mu    sync.Mutex
	lines []string
	cap   int
}

func NewMemoryTranscript(capacity int) *MemoryTranscript {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryTranscript{cap: capacity}
}

func (t *MemoryTranscript) Append(_ context.Context, line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines = append(t.lines, line)
	if len(t.lines) > t.cap {
		t.lines = t.lines[len(t.lines)-t.cap:]
	}
	return nil
}

func (t *MemoryTranscript) Lines(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out, nil
}

func (t *MemoryTranscript) Close() error {
	return nil
}
