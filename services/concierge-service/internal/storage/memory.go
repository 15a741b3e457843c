package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

// MemoryStore keeps appointments in process. It backs STORE_BACKEND=memory for local
// runs and the HTTP tests; nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []model.Appointment
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) FindByContact(_ context.Context, contact string, limit int) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Appointment
	for _, a := range m.rows {
		if a.ContactNumber == contact && a.Status == model.StatusBooked {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppointmentSlot.After(out[j].AppointmentSlot) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FindAnyByContact(_ context.Context, contact string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.rows {
		if a.ContactNumber == contact {
			return a, nil
		}
	}
	return model.Appointment{}, ErrNotFound
}

func (m *MemoryStore) FindOverlapping(_ context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlapping(start, end, excludeID), nil
}

func (m *MemoryStore) overlapping(start, end time.Time, excludeID string) []model.Appointment {
	var out []model.Appointment
	for _, a := range m.rows {
		if a.Status != model.StatusBooked || a.ID == excludeID {
			continue
		}
		if !a.AppointmentSlot.Before(start) && !a.AppointmentSlot.After(end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentSlot.Before(out[j].AppointmentSlot) })
	return out
}

func (m *MemoryStore) CountByContactInRange(_ context.Context, contact string, start, end time.Time, excludeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.rows {
		if a.ContactNumber != contact || a.Status != model.StatusBooked || a.ID == excludeID {
			continue
		}
		if !a.AppointmentSlot.Before(start) && a.AppointmentSlot.Before(end) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Appointment{}, ErrNotFound
}

// Insert enforces the collision window the way the Postgres exclusion constraint does.
func (m *MemoryStore) Insert(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := appt.AppointmentSlot.UTC().Truncate(time.Minute)
	if len(m.overlapping(slot.Add(-model.CollisionWindow), guardEnd(slot), "")) > 0 {
		return model.Appointment{}, ErrSlotConflict
	}
	appt.ID = uuid.NewString()
	appt.AppointmentSlot = slot
	if appt.Status == "" {
		appt.Status = model.StatusBooked
	}
	appt.CreatedAt = m.now().UTC()
	m.rows = append(m.rows, appt)
	return appt, nil
}

func (m *MemoryStore) UpdateSlot(_ context.Context, id string, slot time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot = slot.UTC().Truncate(time.Minute)
	for i := range m.rows {
		if m.rows[i].ID != id || m.rows[i].Status != model.StatusBooked {
			continue
		}
		if len(m.overlapping(slot.Add(-model.CollisionWindow), guardEnd(slot), id)) > 0 {
			return ErrSlotConflict
		}
		m.rows[i].AppointmentSlot = slot
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) Cancel(_ context.Context, id string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].Status == model.StatusBooked {
			at := m.now().UTC()
			m.rows[i].Status = model.StatusCancelled
			m.rows[i].CancelledAt = &at
			return at, nil
		}
	}
	return time.Time{}, ErrNotFound
}

var _ Store = (*MemoryStore)(nil)
