// Package clock abstracts the time source feeding vesting math. Services
// never read the wall clock directly; they take a Clock so accrual is
// deterministic under test.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time as unix seconds.
type Clock interface {
	Now() int64
}

// System reads the wall clock.
type System struct{}

// Now returns the current unix time in seconds.
func (System) Now() int64 {
	return time.Now().Unix()
}

// Manual is a settable clock for tests. It never moves on its own.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual creates a manual clock positioned at the given instant.
func NewManual(now int64) *Manual {
	return &Manual{now: now}
}

// Now returns the configured instant.
func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set repositions the clock.
func (m *Manual) Set(now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Advance moves the clock forward by d seconds.
func (m *Manual) Advance(d int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
}
