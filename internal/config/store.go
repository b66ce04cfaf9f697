package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the current configuration. Snapshot and Replace copy whole
// values under a short critical section; the lock is never held across
// classification or I/O.
type Store struct {
	mu  sync.Mutex
	cur Config
}

// NewStore returns a store seeded with the given config. The config must
// already be valid (NewStore is called with Default() or a Load result).
func NewStore(initial Config) *Store {
	return &Store{cur: initial}
}

// Snapshot returns the last accepted configuration by value.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Replace validates candidate and, only on success, installs it wholesale.
// On failure the held config is untouched and the error wraps
// ErrInvalidConfig. Validation runs before the lock is taken.
func (s *Store) Replace(candidate Config) error {
	if err := Validate(candidate); err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = candidate
	s.mu.Unlock()
	return nil
}

// ReloadSignal is a single-bit flag connecting the control endpoint to the
// classification loop. Set may be called any number of times; Consume
// observes-and-clears, so bursts of updates coalesce into one reload using
// whatever config is current at consume time.
type ReloadSignal struct {
	flag atomic.Bool
}

// Set raises the flag.
func (r *ReloadSignal) Set() {
	r.flag.Store(true)
}

// Consume reports whether the flag was set, clearing it.
func (r *ReloadSignal) Consume() bool {
	return r.flag.Swap(false)
}
