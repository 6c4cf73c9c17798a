// Package store provides the durable key-value capability behind the
// persisted display name and the interstitial "ad owed" flag. The
// controller depends on this interface, never on a concrete backend.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its entry has expired.
var ErrNotFound = errors.New("key not found")

// Keys used by the chat client.
const (
	KeyUsername = "username"
	KeyShowAd   = "showAd"
)

// ShowAdTTL is the validity window of the persisted interstitial flag.
const ShowAdTTL = 7 * 24 * time.Hour

type Store interface {
	// Get returns the value for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Set writes key with an optional expiry. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Clear removes key. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
	Close() error
}
