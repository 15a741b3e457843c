package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/ariaconcierge/libs/db"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

const appointmentColumns = `id::text, user_name, contact_number, appointment_slot, status, cancelled_at, created_at`

type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindByContact(ctx context.Context, contact string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE contact_number = $1 AND status = 'booked'
		ORDER BY appointment_slot DESC
		LIMIT $2
	`, contact, limit)
	if err != nil {
		return nil, fmt.Errorf("find by contact: %w", err)
	}
	return collectAppointments(rows)
}

func (s *PostgresStore) FindAnyByContact(ctx context.Context, contact string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE contact_number = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, contact)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("find any by contact: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'booked'
			AND appointment_slot >= $1
			AND appointment_slot <= $2
			AND ($3 = '' OR id::text <> $3)
		ORDER BY appointment_slot ASC
	`, start.UTC(), end.UTC(), excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	return collectAppointments(rows)
}

func (s *PostgresStore) CountByContactInRange(ctx context.Context, contact string, start, end time.Time, excludeID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE contact_number = $1
			AND status = 'booked'
			AND appointment_slot >= $2
			AND appointment_slot < $3
			AND ($4 = '' OR id::text <> $4)
	`, contact, start.UTC(), end.UTC(), excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by contact: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1::uuid
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if appt.Status == "" {
		appt.Status = model.StatusBooked
	}
	appt.AppointmentSlot = appt.AppointmentSlot.UTC().Truncate(time.Minute)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (user_name, contact_number, appointment_slot, guard_end, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at
	`, appt.UserName, appt.ContactNumber, appt.AppointmentSlot, guardEnd(appt.AppointmentSlot), appt.Status).
		Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.Appointment{}, fmt.Errorf("insert appointment: %w", ErrSlotConflict)
		}
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) UpdateSlot(ctx context.Context, id string, slot time.Time) error {
	slot = slot.UTC().Truncate(time.Minute)
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET appointment_slot = $2,
			guard_end = $3
		WHERE id = $1::uuid AND status = 'booked'
	`, id, slot, guardEnd(slot))
	if err != nil {
		switch {
		case IsConflict(err):
			return fmt.Errorf("update slot: %w", ErrSlotConflict)
		case IsNotFound(err):
			return ErrNotFound
		}
		return fmt.Errorf("update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Cancel(ctx context.Context, id string) (time.Time, error) {
	var cancelledAt time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now()
		WHERE id = $1::uuid AND status = 'booked'
		RETURNING cancelled_at
	`, id).Scan(&cancelledAt)
	if err != nil {
		if IsNotFound(err) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("cancel appointment: %w", err)
	}
	return cancelledAt.UTC(), nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	if err := row.Scan(
		&appt.ID,
		&appt.UserName,
		&appt.ContactNumber,
		&appt.AppointmentSlot,
		&appt.Status,
		&cancelledAt,
		&appt.CreatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	appt.AppointmentSlot = appt.AppointmentSlot.UTC()
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appts, nil
}

var _ Store = (*PostgresStore)(nil)
