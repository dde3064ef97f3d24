package testutil

import (
	"fmt"
	"sync"
)

// Sequence generates readable, deterministic IDs: "<prefix>-0001",
// "<prefix>-0002", and so on.
//
// This enables golden snapshot comparison: the same scenario run with a
// fresh Sequence produces byte-identical traces.
//
// Thread-safety: Sequence is safe for concurrent use via internal mutex.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence creates a sequence with the given prefix.
//
// If prefix is empty, "id" is used.
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "id"
	}
	return &Sequence{prefix: prefix}
}

// NewID returns the next ID in the sequence.
//
// Implements ident.Generator.
func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n)
}

// Reset restarts the sequence at 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
