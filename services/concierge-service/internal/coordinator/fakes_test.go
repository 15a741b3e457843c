package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/clock"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/guard"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/policy"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/storage"
)

// memStore is an in-memory storage.Store with call counters and injectable faults.
type memStore struct {
	mu     sync.Mutex
	rows   []model.Appointment
	nextID int
	now    func() time.Time

	insertErr  error
	findErr    error
	overlapErr error

	calls map[string]int
}

func newMemStore() *memStore {
	return &memStore{now: time.Now, calls: map[string]int{}}
}

func (m *memStore) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memStore) seed(a model.Appointment) model.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if a.ID == "" {
		a.ID = "appt-" + strconv.Itoa(m.nextID)
	}
	if a.Status == "" {
		a.Status = model.StatusBooked
	}
	m.rows = append(m.rows, a)
	return a
}

func (m *memStore) FindByContact(_ context.Context, contact string, limit int) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindByContact"]++
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []model.Appointment
	for _, a := range m.rows {
		if a.ContactNumber == contact && a.Status == model.StatusBooked {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppointmentSlot.After(out[j].AppointmentSlot) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FindAnyByContact(_ context.Context, contact string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindAnyByContact"]++
	if m.findErr != nil {
		return model.Appointment{}, m.findErr
	}
	for _, a := range m.rows {
		if a.ContactNumber == contact {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (m *memStore) FindOverlapping(_ context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindOverlapping"]++
	if m.overlapErr != nil {
		return nil, m.overlapErr
	}
	var out []model.Appointment
	for _, a := range m.rows {
		if a.Status != model.StatusBooked || a.ID == excludeID {
			continue
		}
		if !a.AppointmentSlot.Before(start) && !a.AppointmentSlot.After(end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CountByContactInRange(_ context.Context, contact string, start, end time.Time, excludeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CountByContactInRange"]++
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

func (m *memStore) Get(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Get"]++
	for _, a := range m.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (m *memStore) Insert(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	m.calls["Insert"]++
	err := m.insertErr
	m.mu.Unlock()
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CreatedAt = m.now()
	return m.seed(appt), nil
}

func (m *memStore) UpdateSlot(_ context.Context, id string, slot time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateSlot"]++
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].Status == model.StatusBooked {
			m.rows[i].AppointmentSlot = slot
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) Cancel(_ context.Context, id string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Cancel"]++
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].Status == model.StatusBooked {
			at := m.now().UTC()
			m.rows[i].Status = model.StatusCancelled
			m.rows[i].CancelledAt = &at
			return at, nil
		}
	}
	return time.Time{}, storage.ErrNotFound
}

var _ storage.Store = (*memStore)(nil)

// recordingNotifier captures events synchronously. failWith makes every dispatch report an error.
type recordingNotifier struct {
	mu         sync.Mutex
	events     []notify.Event
	broadcasts []notify.Event
	repeats    int
	failWith   error
}

func (n *recordingNotifier) Dispatch(_ context.Context, ev notify.Event) <-chan error {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	ch := make(chan error, 1)
	ch <- n.failWith
	close(ch)
	return ch
}

func (n *recordingNotifier) BroadcastRepeated(_ context.Context, ev notify.Event, count int, _ time.Duration) <-chan struct{} {
	n.mu.Lock()
	n.broadcasts = append(n.broadcasts, ev)
	n.repeats = count
	n.mu.Unlock()
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (n *recordingNotifier) toolCalls(tool string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, ev := range n.events {
		if ev.Type == notify.TypeToolCall && ev.Tool == tool {
			out = append(out, ev)
		}
	}
	return out
}

func (n *recordingNotifier) statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, ev := range n.events {
		if ev.Type == notify.TypeToolStatus {
			out = append(out, ev.DisplayText)
		}
	}
	return out
}

type fixture struct {
	coord    *Coordinator
	store    *memStore
	notifier *recordingNotifier
	clock    *clock.Fake
	reg      *session.Registry
	sess     *session.Session
}

// Now is 2025-06-09 12:00 UTC so every slot on 2025-06-10 clears the lead time.
var fixtureNow = time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fc := clock.NewFake(fixtureNow)
	store := newMemStore()
	store.now = fc.Now
	notifier := &recordingNotifier{}
	reg := session.NewRegistry(logger, fc, time.Hour)

	c := New(Deps{
		Store:    store,
		Guard:    guard.New(store, guard.NewLocalLocker()),
		Sessions: reg,
		Notifier: notifier,
		Rules:    policy.NewStaticProvider(policy.Defaults()),
		Clock:    fc,
		Logger:   logger,
	})
	return &fixture{coord: c, store: store, notifier: notifier, clock: fc, reg: reg, sess: reg.Create("aria-room-test")}
}

func slotAt(day, hh, mm int) time.Time {
	return time.Date(2025, 6, day, hh, mm, 0, 0, time.UTC)
}

var errBackend = errors.New("backend unavailable")
