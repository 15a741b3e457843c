// Package session owns the per-call state of a voice room: identity, the ordinal index
// and the start instant the close report is measured from.
package session

import (
	"sync"
	"time"
)

type State string

const (
	StateAnonymous  State = "anonymous"
	StateIdentified State = "identified"
	StateClosed     State = "closed"
)

// Session is used by one logical conversation. Lock/Unlock serialize tool calls that
// arrive over overlapping requests.
type Session struct {
	ID        string
	Room      string
	StartedAt time.Time
	Index     *Index

	opMu sync.Mutex

	mu       sync.Mutex
	state    State
	contact  string
	userName string
	actions  int
}

func newSession(id, room string, startedAt time.Time) *Session {
	return &Session{
		ID:        id,
		Room:      room,
		StartedAt: startedAt,
		Index:     NewIndex(),
		state:     StateAnonymous,
	}
}

func (s *Session) Lock()   { s.opMu.Lock() }
func (s *Session) Unlock() { s.opMu.Unlock() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Closed() bool { return s.State() == StateClosed }

// Identify records the verified contact. It is a no-op once the session is closed.
func (s *Session) Identify(contact, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateIdentified
	s.contact = contact
	s.userName = userName
}

func (s *Session) Contact() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contact
}

func (s *Session) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

// CountAction bumps the tool-call counter and returns the new value.
func (s *Session) CountAction() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions++
	return s.actions
}

func (s *Session) Actions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions
}

// close flips the state and reports whether this call did it.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	return true
}

type Snapshot struct {
	SessionID string `json:"session_id"`
	RoomName  string `json:"room_name"`
	State     State  `json:"state"`
	Contact   string `json:"contact_number,omitempty"`
	Listed    int    `json:"listed"`
	Actions   int    `json:"action_count"`
	StartedAt string `json:"started_at"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID: s.ID,
		RoomName:  s.Room,
		State:     s.state,
		Contact:   s.contact,
		Listed:    s.Index.Len(),
		Actions:   s.actions,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
	}
}
