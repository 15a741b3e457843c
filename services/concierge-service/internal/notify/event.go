// Package notify pushes best-effort UI events for a voice room. Nothing in the booking
// flow waits on delivery.
package notify

import (
	"context"
	"time"
)

const (
	TypeToolCall    = "tool_call"
	TypeToolStatus  = "tool_status"
	TypeCallSummary = "call_summary"
)

// Event is the JSON envelope a frontend receives. Type selects which fields are set.
type Event struct {
	Type string `json:"type"`

	Tool    string `json:"tool,omitempty"`
	Payload any    `json:"payload,omitempty"`

	Status      string `json:"status,omitempty"`
	DisplayText string `json:"display_text,omitempty"`

	Summary     string `json:"summary,omitempty"`
	ActionCount int    `json:"action_count,omitempty"`

	SessionID string    `json:"session_id,omitempty"`
	RoomName  string    `json:"room_name,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

func ToolCall(tool string, payload any) Event {
	return Event{Type: TypeToolCall, Tool: tool, Payload: payload}
}

func ToolStatus(displayText string) Event {
	return Event{Type: TypeToolStatus, Status: "active", DisplayText: displayText}
}

func CallSummary(summary string, actions int) Event {
	return Event{Type: TypeCallSummary, Summary: summary, ActionCount: actions}
}

// Sink delivers one event. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }
