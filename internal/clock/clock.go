// Package clock abstracts wall-clock access so day-boundary and DST
// behavior can be tested deterministically. Production code injects Real;
// tests inject a Fake they can advance by hand.
package clock

import (
	"sync"
	"time"
)

// DayFormat is the civil day key format used across the persistence layer.
const DayFormat = "2006-01-02"

// Clock supplies the current instant. All components that care about "now"
// (idempotency TTLs, day keys, scheduler arming) take a Clock instead of
// calling time.Now directly.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// DayKey returns the civil day ("2006-01-02") of t in loc. Day boundaries for
// suggestion history and scheduler runs are always evaluated in the bot's
// configured timezone, never in UTC.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayFormat)
}

// EndOfDay returns the last instant of t's civil day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

// Fake is a settable Clock for tests. The zero value is not usable; construct
// with NewFake.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake frozen at t.
func NewFake(t time.Time) *Fake { return &Fake{now: t} }

// Now returns the frozen instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
