// Package clock holds the time rules every slot is checked against.
package clock

import (
	"sync"
	"time"
)

// DefaultLeadTime is the minimum gap between now and a bookable slot.
const DefaultLeadTime = 15 * time.Minute

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the wall clock in UTC.
func System() Clock { return systemClock{} }

// ToCanonical returns t in UTC. Values built without a zone by the parser are already UTC.
func ToCanonical(t time.Time) time.Time {
	return t.UTC()
}

// IsTooSoon reports whether candidate falls before now+lead. A zero lead disables the check.
func IsTooSoon(c Clock, candidate time.Time, lead time.Duration) bool {
	if lead <= 0 {
		return false
	}
	minAllowed := ToCanonical(c.Now()).Add(lead)
	return ToCanonical(candidate).Before(minAllowed)
}

// Fake is a settable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	f.now = now.UTC()
	f.mu.Unlock()
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
