package clock

import (
	"testing"
	"time"
)

func TestIsTooSoon(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	c := NewFake(now)

	if !IsTooSoon(c, now.Add(14*time.Minute), DefaultLeadTime) {
		t.Fatal("14 minutes ahead should be too soon")
	}
	if IsTooSoon(c, now.Add(15*time.Minute), DefaultLeadTime) {
		t.Fatal("exactly the lead time should be allowed")
	}
	if !IsTooSoon(c, now.Add(-time.Hour), DefaultLeadTime) {
		t.Fatal("past slot should be too soon")
	}
	if IsTooSoon(c, now.Add(-time.Hour), 0) {
		t.Fatal("zero lead disables the check")
	}
}

func TestToCanonicalConvertsZones(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2025, 6, 10, 16, 0, 0, 0, loc)
	got := ToCanonical(in)
	if got.Location() != time.UTC || got.Hour() != 14 {
		t.Fatalf("expected 14:00 UTC, got %s", got)
	}
}

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)
	c.Advance(90 * time.Second)
	if got := c.Now().Sub(start); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
}
