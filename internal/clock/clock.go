// Package clock provides a small, testable abstraction over wall-clock time.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time and blocks for fixed durations.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real implements Clock using the time package.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// Mock is a manually driven Clock for tests. Sleep advances the clock
// instead of blocking, and the total slept duration is recorded.
type Mock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

// NewMock returns a Mock starting at the given instant.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep advances the clock by d without blocking.
func (m *Mock) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	m.slept += d
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Slept returns the total duration passed to Sleep.
func (m *Mock) Slept() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slept
}
