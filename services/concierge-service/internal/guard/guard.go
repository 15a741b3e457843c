// Package guard decides whether a candidate slot collides with a booked one and
// serializes the check-then-write that follows.
package guard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

// Finder is the slice of the store the guard reads.
type Finder interface {
	FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error)
}

type Guard struct {
	finder Finder
	locker Locker
}

// New returns a Guard. A nil locker falls back to an in-process LocalLocker.
func New(finder Finder, locker Locker) *Guard {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Guard{finder: finder, locker: locker}
}

// Window returns the inclusive collision window around candidate.
func Window(candidate time.Time) (time.Time, time.Time) {
	c := candidate.UTC()
	return c.Add(-model.CollisionWindow), c.Add(model.CollisionWindow)
}

// HasConflict reports whether any booked appointment other than excludeID sits inside the
// collision window of candidate.
func (g *Guard) HasConflict(ctx context.Context, candidate time.Time, excludeID string) (bool, error) {
	start, end := Window(candidate)
	found, err := g.finder.FindOverlapping(ctx, start, end, excludeID)
	if err != nil {
		return false, fmt.Errorf("collision check: %w", err)
	}
	return len(found) > 0, nil
}

// Reserve locks every UTC day the candidate's window touches and returns the release func.
// Keys are taken in sorted order so two reservations never deadlock.
func (g *Guard) Reserve(ctx context.Context, candidate time.Time) (func(), error) {
	keys := lockKeys(candidate)
	var held []Lease
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(context.Background())
		}
	}
	for _, key := range keys {
		lease, err := g.locker.Acquire(ctx, key)
		if err != nil {
			release()
			return nil, fmt.Errorf("reserve %s: %w", key, err)
		}
		held = append(held, lease)
	}
	return release, nil
}

func lockKeys(candidate time.Time) []string {
	start, end := Window(candidate)
	seen := map[string]struct{}{}
	var keys []string
	for _, t := range []time.Time{start, candidate.UTC(), end} {
		k := "slotlock:" + t.Format("2006-01-02")
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
