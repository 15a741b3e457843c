package availability

import (
	"reflect"
	"testing"
	"time"
)

func slot(hh, mm int) time.Time {
	return time.Date(2025, 6, 10, hh, mm, 0, 0, time.UTC)
}

func TestFreeSlotsAllOpen(t *testing.T) {
	got := FreeSlots(DefaultCatalog, nil)
	if !reflect.DeepEqual(got, DefaultCatalog) {
		t.Fatalf("expected full catalog, got %v", got)
	}
}

func TestFreeSlotsRemovesBookedLabels(t *testing.T) {
	got := FreeSlots(DefaultCatalog, []time.Time{slot(10, 30), slot(17, 0)})
	want := []string{"09:00 AM", "01:00 PM", "03:30 PM"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFreeSlotsOffCatalogBookingDoesNotBlock(t *testing.T) {
	// 2:00 PM is not a catalog label, so nothing is hidden even though it is near 1:00 PM.
	got := FreeSlots(DefaultCatalog, []time.Time{slot(14, 0)})
	if len(got) != len(DefaultCatalog) {
		t.Fatalf("expected all %d slots, got %v", len(DefaultCatalog), got)
	}
}

func TestFreeSlotsFullyBooked(t *testing.T) {
	booked := []time.Time{slot(9, 0), slot(10, 30), slot(13, 0), slot(15, 30), slot(17, 0)}
	if got := FreeSlots(DefaultCatalog, booked); len(got) != 0 {
		t.Fatalf("expected fully booked, got %v", got)
	}
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(time.Date(2025, 6, 10, 18, 22, 0, 0, time.UTC))
	if !start.Equal(slot(0, 0)) {
		t.Fatalf("unexpected start %s", start)
	}
	if want := time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("unexpected end %s", end)
	}
}
