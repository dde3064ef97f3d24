// Package ident supplies row identifiers and timestamps.
//
// Every writer in the module takes a Generator and a Clock so that tests
// and golden scenarios can substitute deterministic sources.
package ident

import (
	"time"

	"github.com/google/uuid"
)

// Generator produces unique row identifiers.
type Generator interface {
	NewID() string
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// UUIDv7 generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs written
// in one session sort roughly by creation time.
//
// Thread-safety: UUIDv7 is stateless and safe for concurrent use.
type UUIDv7 struct{}

// NewID returns a hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
