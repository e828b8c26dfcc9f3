// Package clock abstracts wall-clock access so an analysis run can snapshot
// "now" once and every elapsed-time and future-date check inside the run
// agrees on it.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fake returns a fixed instant, for tests.
type Fake struct {
	current time.Time
}

// NewFake pins the clock to the given instant.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

func (f *Fake) Now() time.Time { return f.current }

// Advance moves the fake clock forward.
func (f *Fake) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}
