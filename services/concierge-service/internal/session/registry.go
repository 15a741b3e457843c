package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/clock"
)

// DefaultTeardownGrace is how long a closed session lingers so the final report can be
// delivered before the room is released.
const DefaultTeardownGrace = 7 * time.Second

var ErrNotFound = errors.New("session not found")

type Registry struct {
	logger *slog.Logger
	clock  clock.Clock
	grace  time.Duration

	mu         sync.Mutex
	sessions   map[string]*Session
	onTeardown []func(*Session)

	// afterFunc is swapped in tests.
	afterFunc func(time.Duration, func()) *time.Timer
}

func NewRegistry(logger *slog.Logger, c clock.Clock, grace time.Duration) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = clock.System()
	}
	if grace < 0 {
		grace = 0
	}
	return &Registry{
		logger:    logger,
		clock:     c,
		grace:     grace,
		sessions:  make(map[string]*Session),
		afterFunc: time.AfterFunc,
	}
}

// OnTeardown registers fn to run when a session is released. Not safe after sessions exist.
func (r *Registry) OnTeardown(fn func(*Session)) {
	r.mu.Lock()
	r.onTeardown = append(r.onTeardown, fn)
	r.mu.Unlock()
}

// Create opens a session for room. An empty room gets a generated name.
func (r *Registry) Create(room string) *Session {
	id := uuid.NewString()
	if room == "" {
		room = "aria-room-" + id[:8]
	}
	s := newSession(id, room, r.clock.Now())
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	r.logger.Info("session opened", "session_id", id, "room", room)
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close marks s closed and schedules its release after the grace delay. It never blocks
// and reports false when the session was already closed.
func (r *Registry) Close(s *Session) bool {
	if !s.close() {
		return false
	}
	r.afterFunc(r.grace, func() { r.release(s) })
	return true
}

func (r *Registry) release(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.ID)
	hooks := append([]func(*Session){}, r.onTeardown...)
	r.mu.Unlock()

	s.Index.Clear()
	for _, fn := range hooks {
		fn(s)
	}
	r.logger.Info("session released", "session_id", s.ID, "room", s.Room, "action_count", s.Actions())
}
