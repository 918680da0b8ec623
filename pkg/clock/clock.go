// Package clock provides an injectable time source so lockout windows,
// cancellation windows and schedule due-times can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Mock is a manually driven clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a Mock clock frozen at t.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the frozen time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
