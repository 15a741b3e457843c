// Package storage is the appointment store gateway: the only code that talks to the
// appointments table.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

var (
	ErrNotFound     = errors.New("appointment not found")
	ErrSlotConflict = errors.New("appointment slot overlaps a booked slot")
)

// Store is implemented by every appointment backend.
type Store interface {
	// FindByContact returns booked appointments for contact, most recent slot first.
	FindByContact(ctx context.Context, contact string, limit int) ([]model.Appointment, error)
	// FindAnyByContact returns one appointment of any status for contact, or ErrNotFound.
	FindAnyByContact(ctx context.Context, contact string) (model.Appointment, error)
	// FindOverlapping returns booked appointments with a slot in [start, end], skipping excludeID.
	FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error)
	// CountByContactInRange counts booked appointments for contact in [start, end).
	CountByContactInRange(ctx context.Context, contact string, start, end time.Time, excludeID string) (int, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	UpdateSlot(ctx context.Context, id string, slot time.Time) error
	// Cancel marks a booked appointment cancelled. Already-cancelled or missing ids return ErrNotFound.
	Cancel(ctx context.Context, id string) (time.Time, error)
}

// IsConflict reports a write rejected because the slot collides with a booked one.
func IsConflict(err error) bool {
	if errors.Is(err, ErrSlotConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	// invalid_text_representation: the id is not a uuid, so no such row can exist.
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func guardEnd(slot time.Time) time.Time {
	return slot.UTC().Add(model.CollisionWindow)
}
