package domain

import "time"

// Origin distinguishes transcript messages from live socket traffic.
type Origin string

const (
	OriginLive       Origin = "live"
	OriginHistorical Origin = "historical"
)

// TimestampLayout is the client-local capture time format shown next to
// every message. The relay sends no timestamps; all stamps are local.
const TimestampLayout = "15:04"

// ChatMessage is one entry in the session's message log.
type ChatMessage struct {
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	Origin    Origin `json:"origin"`
}

// Stamp formats a capture time in the display layout.
func Stamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ConnectionState is the Connection Manager's lifecycle state.
// Exactly one value holds at any time.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateClosing      ConnectionState = "closing"
)
