package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/clock"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

func appts(ids ...string) []model.Appointment {
	out := make([]model.Appointment, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Appointment{ID: id})
	}
	return out
}

func TestIndexRebuildReplaces(t *testing.T) {
	x := NewIndex()
	x.Rebuild(appts("a", "b", "c"))
	if id, err := x.Resolve(2); err != nil || id != "b" {
		t.Fatalf("expected b, got %q err=%v", id, err)
	}

	x.Rebuild(appts("z"))
	if id, err := x.Resolve(1); err != nil || id != "z" {
		t.Fatalf("expected z, got %q err=%v", id, err)
	}
	if _, err := x.Resolve(2); !errors.Is(err, ErrOrdinalNotFound) {
		t.Fatalf("expected ordinal 2 to be gone, got %v", err)
	}
}

func TestIndexCapsAtMax(t *testing.T) {
	x := NewIndex()
	x.Rebuild(appts("1", "2", "3", "4", "5", "6"))
	if x.Len() != MaxOrdinals {
		t.Fatalf("expected %d entries, got %d", MaxOrdinals, x.Len())
	}
	if _, err := x.Resolve(6); err == nil {
		t.Fatal("ordinal 6 must not resolve")
	}
}

func TestIndexEmptyRebuildClears(t *testing.T) {
	x := NewIndex()
	x.Rebuild(appts("a"))
	x.Rebuild(nil)
	if _, err := x.Resolve(1); !errors.Is(err, ErrOrdinalNotFound) {
		t.Fatalf("expected empty index, got %v", err)
	}
}

func TestParseOrdinal(t *testing.T) {
	cases := map[string]int{
		"2": 2, "#2": 2, " # 3 ": 3, "two": 2, "Second": 2, "option 4": 4, "5": 5,
		"1st": 1, "2nd": 2, "3rd.": 3, "4th": 4, "Two.": 2, "no 2": 2, "no. 2": 2, "No.3": 3,
		"number two!": 2, "option #1": 1, "the second": 2,
	}
	for in, want := range cases {
		got, ok := ParseOrdinal(in)
		if !ok || got != want {
			t.Fatalf("ParseOrdinal(%q) = %d,%v want %d", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "zero", "-1", "0", "abc", "st", "2 or 3", "none", "-1st"} {
		if _, ok := ParseOrdinal(bad); ok {
			t.Fatalf("ParseOrdinal(%q) should fail", bad)
		}
	}
}

func TestSessionStateTransitions(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)), clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)), 0)
	r.afterFunc = func(time.Duration, func()) *time.Timer { return nil }

	s := r.Create("")
	if s.State() != StateAnonymous {
		t.Fatalf("expected anonymous, got %s", s.State())
	}
	if len(s.Room) != len("aria-room-")+8 {
		t.Fatalf("unexpected generated room %q", s.Room)
	}
	s.Identify("5551234567", "Ada")
	if s.State() != StateIdentified || s.Contact() != "5551234567" {
		t.Fatalf("identify not recorded: %+v", s.Snapshot())
	}
	if !r.Close(s) {
		t.Fatal("first close should succeed")
	}
	if r.Close(s) {
		t.Fatal("second close should be a no-op")
	}
	s.Identify("5550000000", "Bob")
	if s.Contact() != "5551234567" {
		t.Fatal("closed session must not change identity")
	}
}

func TestRegistryTeardownAfterGrace(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, 7*time.Second)

	var (
		mu       sync.Mutex
		delay    time.Duration
		deferred func()
	)
	r.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		mu.Lock()
		delay, deferred = d, fn
		mu.Unlock()
		return nil
	}

	released := make(chan string, 1)
	r.OnTeardown(func(s *Session) { released <- s.ID })

	s := r.Create("room-a")
	s.Index.Rebuild(appts("x"))
	r.Close(s)

	mu.Lock()
	if delay != 7*time.Second || deferred == nil {
		mu.Unlock()
		t.Fatalf("expected teardown scheduled after 7s, got %s", delay)
	}
	fn := deferred
	mu.Unlock()

	if _, err := r.Get(s.ID); err != nil {
		t.Fatalf("session should remain until teardown: %v", err)
	}
	fn()
	if _, err := r.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session gone after teardown, got %v", err)
	}
	if s.Index.Len() != 0 {
		t.Fatal("index must be destroyed at teardown")
	}
	if id := <-released; id != s.ID {
		t.Fatalf("unexpected teardown id %s", id)
	}
}

func TestCountAction(t *testing.T) {
	r := NewRegistry(nil, nil, 0)
	s := r.Create("r")
	s.CountAction()
	if n := s.CountAction(); n != 2 || s.Actions() != 2 {
		t.Fatalf("expected 2 actions, got %d", n)
	}
}
