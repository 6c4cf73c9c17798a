package conn

import "github.com/emilabos/scrappy-chat/internal/domain"

// Event is delivered on the manager's event stream. The session
// controller consumes events from a single goroutine; the manager never
// invokes callbacks into caller code.
type Event interface {
	connEvent()
}

// StateEvent reports a connection state transition.
type StateEvent struct {
	State domain.ConnectionState
}

// LineEvent carries one inbound wire line.
type LineEvent struct {
	Line string
}

func (StateEvent) connEvent() {}
func (LineEvent) connEvent()  {}
