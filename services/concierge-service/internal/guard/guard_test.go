package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

type fakeFinder struct {
	booked []model.Appointment
	err    error
}

func (f *fakeFinder) FindOverlapping(_ context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Appointment
	for _, a := range f.booked {
		if a.ID == excludeID || a.Status != model.StatusBooked {
			continue
		}
		if !a.AppointmentSlot.Before(start) && !a.AppointmentSlot.After(end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func at(hh, mm int) time.Time {
	return time.Date(2025, 6, 10, hh, mm, 0, 0, time.UTC)
}

func TestHasConflictBoundaries(t *testing.T) {
	finder := &fakeFinder{booked: []model.Appointment{{ID: "a", AppointmentSlot: at(14, 0), Status: model.StatusBooked}}}
	g := New(finder, nil)

	cases := []struct {
		name      string
		candidate time.Time
		want      bool
	}{
		{"same slot", at(14, 0), true},
		{"15 after", at(14, 15), true},
		{"29 after", at(14, 29), true},
		{"29 before", at(13, 31), true},
		{"30 after", at(14, 30), false},
		{"30 before", at(13, 30), false},
		{"60 after", at(15, 0), false},
	}
	for _, tc := range cases {
		got, err := g.HasConflict(context.Background(), tc.candidate, "")
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected conflict=%v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestHasConflictExcludesSelfAndCancelled(t *testing.T) {
	finder := &fakeFinder{booked: []model.Appointment{
		{ID: "self", AppointmentSlot: at(14, 0), Status: model.StatusBooked},
		{ID: "gone", AppointmentSlot: at(14, 10), Status: model.StatusCancelled},
	}}
	g := New(finder, nil)
	got, err := g.HasConflict(context.Background(), at(14, 5), "self")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatal("own record and cancelled records must not collide")
	}
}

func TestHasConflictWrapsStoreError(t *testing.T) {
	boom := errors.New("db down")
	g := New(&fakeFinder{err: boom}, nil)
	if _, err := g.HasConflict(context.Background(), at(9, 0), ""); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestLockKeysSpanMidnight(t *testing.T) {
	keys := lockKeys(time.Date(2025, 6, 10, 23, 45, 0, 0, time.UTC))
	if len(keys) != 2 || keys[0] != "slotlock:2025-06-10" || keys[1] != "slotlock:2025-06-11" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if keys := lockKeys(at(12, 0)); len(keys) != 1 {
		t.Fatalf("expected one key for midday slot, got %v", keys)
	}
}

func TestReserveSerializesSameDay(t *testing.T) {
	g := New(&fakeFinder{}, NewLocalLocker())
	release, err := g.Reserve(context.Background(), at(10, 0))
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := g.Reserve(ctx, at(16, 0)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second reservation to wait, got %v", err)
	}

	release()
	release2, err := g.Reserve(context.Background(), at(16, 0))
	if err != nil {
		t.Fatalf("reserve after release failed: %v", err)
	}
	release2()
}

func TestLocalLockerConcurrentHolders(t *testing.T) {
	l := NewLocalLocker()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		inside int
		maxIn  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := l.Acquire(context.Background(), "k")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxIn {
				maxIn = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			lease.Release(context.Background())
		}()
	}
	wg.Wait()
	if maxIn != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxIn)
	}
	if n := l.Len(); n != 0 {
		t.Fatalf("expected idle keys to be dropped, %d left", n)
	}
}

func TestLocalLockerDropsKeysAfterRelease(t *testing.T) {
	l := NewLocalLocker()
	held, err := l.Acquire(context.Background(), "slotlock:2025-06-10")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "slotlock:2025-06-10"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected waiter to time out, got %v", err)
	}
	if n := l.Len(); n != 1 {
		t.Fatalf("expected the held key only, got %d", n)
	}
	held.Release(context.Background())
	held.Release(context.Background())
	if n := l.Len(); n != 0 {
		t.Fatalf("expected no keys after release, got %d", n)
	}

	for i := 0; i < 30; i++ {
		lease, err := l.Acquire(context.Background(), fmt.Sprintf("slotlock:2025-07-%02d", i+1))
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		lease.Release(context.Background())
	}
	if n := l.Len(); n != 0 {
		t.Fatalf("expected map to stay empty across days, got %d", n)
	}
}
