package domain

import "errors"

// Validation and transport errors surfaced by the session controller and
// its collaborators. Validation errors return as values and never corrupt
// state; transport errors drive the connection manager's retry loop.
var (
	ErrEmptyName       = errors.New("display name is empty")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooShort = errors.New("message is too short")
	ErrNotConnected    = errors.New("not connected to relay")
	ErrMalformedLine   = errors.New("malformed wire line")
	ErrHistoryFetch    = errors.New("history fetch failed")
	ErrAdNotCompleted  = errors.New("ad has not played to completion")
)

// MinMessageRunes is the minimum trimmed message length accepted for
// sending. Shorter submissions fail with ErrMessageTooShort.
const MinMessageRunes = 10
