package storage

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

func TestSupabaseRowToModel(t *testing.T) {
	cancelled := "2025-06-09T08:30:00.123456+00:00"
	row := supabaseRow{
		ID:              "7d3c",
		UserName:        "Ada",
		ContactNumber:   "5551234567",
		AppointmentSlot: "2025-06-10T14:00:00+00:00",
		Status:          model.StatusCancelled,
		CancelledAt:     &cancelled,
		CreatedAt:       "2025-06-01T10:00:00Z",
	}
	appt, err := row.toModel()
	if err != nil {
		t.Fatalf("toModel failed: %v", err)
	}
	if appt.SlotString() != "2025-06-10T14:00:00Z" {
		t.Fatalf("unexpected slot %s", appt.SlotString())
	}
	if appt.CancelledAt == nil || appt.CancelledAt.Hour() != 8 {
		t.Fatalf("expected cancelled_at to be parsed, got %v", appt.CancelledAt)
	}
	if !appt.CreatedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created_at %s", appt.CreatedAt)
	}
}

func TestSupabaseRowRejectsBadSlot(t *testing.T) {
	if _, err := (supabaseRow{ID: "x", AppointmentSlot: "tomorrow"}).toModel(); err == nil {
		t.Fatal("expected error for unparseable slot")
	}
}

func TestFirstRowEmptyIsNotFound(t *testing.T) {
	if _, err := firstRow(nil); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsConflict(ErrSlotConflict) {
		t.Fatal("ErrSlotConflict must classify as conflict")
	}
	if !isExclusionViolation(errString("(23P01) conflicting key value violates exclusion constraint")) {
		t.Fatal("expected exclusion violation to be detected")
	}
	if IsConflict(ErrNotFound) {
		t.Fatal("not found is not a conflict")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
