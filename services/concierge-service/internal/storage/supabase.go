package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const supabaseTable = "appointments"

// supabaseRow mirrors the appointments table as PostgREST serializes it.
type supabaseRow struct {
	ID              string  `json:"id,omitempty"`
	UserName        string  `json:"user_name"`
	ContactNumber   string  `json:"contact_number"`
	AppointmentSlot string  `json:"appointment_slot"`
	GuardEnd        string  `json:"guard_end,omitempty"`
	Status          string  `json:"status"`
	CancelledAt     *string `json:"cancelled_at,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// SupabaseStore reads and writes appointments through the Supabase REST API.
// The client carries no context, so ctx only short-circuits calls that are already cancelled.
type SupabaseStore struct {
	client *supabase.Client
	now    func() time.Time
}

func NewSupabaseStore(url, serviceKey string) (*SupabaseStore, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, now: time.Now}, nil
}

func (s *SupabaseStore) FindByContact(ctx context.Context, contact string, limit int) ([]model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	var rows []supabaseRow
	_, err := s.client.From(supabaseTable).
		Select("*", "", false).
		Eq("contact_number", contact).
		Eq("status", model.StatusBooked).
		Order("appointment_slot", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("find by contact: %w", err)
	}
	return fromRows(rows)
}

func (s *SupabaseStore) FindAnyByContact(ctx context.Context, contact string) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	var rows []supabaseRow
	_, err := s.client.From(supabaseTable).
		Select("*", "", false).
		Eq("contact_number", contact).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("find any by contact: %w", err)
	}
	return firstRow(rows)
}

func (s *SupabaseStore) FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.client.From(supabaseTable).
		Select("*", "", false).
		Eq("status", model.StatusBooked).
		Gte("appointment_slot", start.UTC().Format(time.RFC3339)).
		Lte("appointment_slot", end.UTC().Format(time.RFC3339))
	if excludeID != "" {
		q = q.Neq("id", excludeID)
	}
	var rows []supabaseRow
	if _, err := q.Order("appointment_slot", &postgrest.OrderOpts{Ascending: true}).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	return fromRows(rows)
}

func (s *SupabaseStore) CountByContactInRange(ctx context.Context, contact string, start, end time.Time, excludeID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q := s.client.From(supabaseTable).
		Select("id", "exact", false).
		Eq("contact_number", contact).
		Eq("status", model.StatusBooked).
		Gte("appointment_slot", start.UTC().Format(time.RFC3339)).
		Lt("appointment_slot", end.UTC().Format(time.RFC3339))
	if excludeID != "" {
		q = q.Neq("id", excludeID)
	}
	var rows []supabaseRow
	count, err := q.ExecuteTo(&rows)
	if err != nil {
		return 0, fmt.Errorf("count by contact: %w", err)
	}
	if int(count) < len(rows) {
		return len(rows), nil
	}
	return int(count), nil
}

func (s *SupabaseStore) Get(ctx context.Context, id string) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	var rows []supabaseRow
	_, err := s.client.From(supabaseTable).
		Select("*", "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		if isInvalidID(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return firstRow(rows)
}

func (s *SupabaseStore) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	if appt.Status == "" {
		appt.Status = model.StatusBooked
	}
	slot := appt.AppointmentSlot.UTC()
	row := supabaseRow{
		UserName:        appt.UserName,
		ContactNumber:   appt.ContactNumber,
		AppointmentSlot: slot.Format(model.SlotLayout),
		GuardEnd:        guardEnd(slot).Format(model.SlotLayout),
		Status:          appt.Status,
	}
	var inserted []supabaseRow
	if _, err := s.client.From(supabaseTable).Insert(row, false, "", "representation", "").ExecuteTo(&inserted); err != nil {
		if isExclusionViolation(err) {
			return model.Appointment{}, fmt.Errorf("insert appointment: %w", ErrSlotConflict)
		}
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	stored, err := firstRow(inserted)
	if err != nil {
		// The write went through but nothing came back; report the outcome as unknown.
		return model.Appointment{}, fmt.Errorf("insert appointment: empty representation: %w", err)
	}
	return stored, nil
}

func (s *SupabaseStore) UpdateSlot(ctx context.Context, id string, slot time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slot = slot.UTC()
	patch := map[string]string{
		"appointment_slot": slot.Format(model.SlotLayout),
		"guard_end":        guardEnd(slot).Format(model.SlotLayout),
	}
	var updated []supabaseRow
	_, err := s.client.From(supabaseTable).
		Update(patch, "representation", "").
		Eq("id", id).
		Eq("status", model.StatusBooked).
		ExecuteTo(&updated)
	if err != nil {
		switch {
		case isExclusionViolation(err):
			return fmt.Errorf("update slot: %w", ErrSlotConflict)
		case isInvalidID(err):
			return ErrNotFound
		}
		return fmt.Errorf("update slot: %w", err)
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) Cancel(ctx context.Context, id string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	cancelledAt := s.now().UTC().Truncate(time.Second)
	patch := map[string]string{
		"status":       model.StatusCancelled,
		"cancelled_at": cancelledAt.Format(time.RFC3339),
	}
	var updated []supabaseRow
	_, err := s.client.From(supabaseTable).
		Update(patch, "representation", "").
		Eq("id", id).
		Eq("status", model.StatusBooked).
		ExecuteTo(&updated)
	if err != nil {
		if isInvalidID(err) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("cancel appointment: %w", err)
	}
	if len(updated) == 0 {
		return time.Time{}, ErrNotFound
	}
	return cancelledAt, nil
}

// Ping reads one id to prove the REST endpoint and key work.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []supabaseRow
	if _, err := s.client.From(supabaseTable).Select("id", "", false).Limit(1, "").ExecuteTo(&rows); err != nil {
		return fmt.Errorf("supabase ping: %w", err)
	}
	return nil
}

func firstRow(rows []supabaseRow) (model.Appointment, error) {
	if len(rows) == 0 {
		return model.Appointment{}, ErrNotFound
	}
	return rows[0].toModel()
}

func fromRows(rows []supabaseRow) ([]model.Appointment, error) {
	out := make([]model.Appointment, 0, len(rows))
	for _, r := range rows {
		appt, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, nil
}

func (r supabaseRow) toModel() (model.Appointment, error) {
	slot, err := parseTimestamp(r.AppointmentSlot)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: bad slot %q: %w", r.ID, r.AppointmentSlot, err)
	}
	appt := model.Appointment{
		ID:              r.ID,
		UserName:        r.UserName,
		ContactNumber:   r.ContactNumber,
		AppointmentSlot: slot,
		Status:          r.Status,
	}
	if r.CreatedAt != "" {
		if created, err := parseTimestamp(r.CreatedAt); err == nil {
			appt.CreatedAt = created
		}
	}
	if r.CancelledAt != nil && *r.CancelledAt != "" {
		if cancelled, err := parseTimestamp(*r.CancelledAt); err == nil {
			appt.CancelledAt = &cancelled
		}
	}
	return appt, nil
}

// parseTimestamp accepts the "Z" and "+00:00" spellings PostgREST and older rows use.
func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", raw)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

func isExclusionViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23P01")
}

func isInvalidID(err error) bool {
	return err != nil && strings.Contains(err.Error(), "22P02")
}

var _ Store = (*SupabaseStore)(nil)
