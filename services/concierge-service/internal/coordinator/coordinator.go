// Package coordinator runs the appointment tools a voice agent calls during a session.
// Every failure becomes a Reply; nothing here returns an error to the caller.
package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/clock"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/guard"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/policy"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/storage"
)

const (
	ToolIdentify  = "identify_user"
	ToolFetch     = "fetch_slots"
	ToolBook      = "book_appointment"
	ToolRetrieve  = "retrieve_appointments"
	ToolModify    = "modify_appointment"
	ToolCancel    = "cancel_appointment"
	ToolSummarize = "summarize_and_exit"
)

// displayText is what the UI shows while a tool runs.
var displayText = map[string]string{
	ToolIdentify:  "Verifying identity...",
	ToolFetch:     "Finding available slots...",
	ToolBook:      "Securing your appointment...",
	ToolRetrieve:  "Accessing your records...",
	ToolModify:    "Updating your schedule...",
	ToolCancel:    "Processing cancellation...",
	ToolSummarize: "Finalizing session notes...",
}

// Tools lists every tool name in the order an agent is expected to learn them.
func Tools() []string {
	return []string{ToolIdentify, ToolFetch, ToolBook, ToolRetrieve, ToolModify, ToolCancel, ToolSummarize}
}

type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeUserNotFound Outcome = "not_found_user"
	OutcomeValidation   Outcome = "validation"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeConflict     Outcome = "conflict"
	OutcomePastTime     Outcome = "past_time"
	OutcomeDailyLimit   Outcome = "daily_limit"
	OutcomeStorageError Outcome = "storage_error"
	OutcomeUncertain    Outcome = "uncertain"
)

// Reply is read aloud by the agent; Data carries the structured result.
type Reply struct {
	Tool    string  `json:"tool"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Data    any     `json:"data,omitempty"`
}

type Notifier interface {
	Dispatch(ctx context.Context, ev notify.Event) <-chan error
	BroadcastRepeated(ctx context.Context, ev notify.Event, n int, interval time.Duration) <-chan struct{}
}

type Deps struct {
	Store    storage.Store
	Guard    *guard.Guard
	Sessions *session.Registry
	Notifier Notifier
	Rules    policy.Provider
	Clock    clock.Clock
	Logger   *slog.Logger

	// SummaryRepeats and SummaryInterval shape the redundant close broadcast.
	SummaryRepeats  int
	SummaryInterval time.Duration
}

type Coordinator struct {
	store    storage.Store
	guard    *guard.Guard
	sessions *session.Registry
	notifier Notifier
	rules    policy.Provider
	clock    clock.Clock
	logger   *slog.Logger
	tracer   trace.Tracer

	summaryRepeats  int
	summaryInterval time.Duration
}

func New(d Deps) *Coordinator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Rules == nil {
		d.Rules = policy.NewStaticProvider(policy.Defaults())
	}
	if d.Guard == nil {
		d.Guard = guard.New(d.Store, nil)
	}
	if d.Sessions == nil {
		d.Sessions = session.NewRegistry(d.Logger, d.Clock, session.DefaultTeardownGrace)
	}
	if d.Notifier == nil {
		// Log-only events; the worker lives as long as the process.
		disp := notify.NewDispatcher(nil, d.Logger, notify.DispatcherConfig{})
		go disp.Run(context.Background())
		d.Notifier = disp
	}
	if d.SummaryRepeats <= 0 {
		d.SummaryRepeats = 3
	}
	if d.SummaryInterval <= 0 {
		d.SummaryInterval = time.Second
	}
	return &Coordinator{
		store:           d.Store,
		guard:           d.Guard,
		sessions:        d.Sessions,
		notifier:        d.Notifier,
		rules:           d.Rules,
		clock:           d.Clock,
		logger:          d.Logger,
		tracer:          otel.Tracer("github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/coordinator"),
		summaryRepeats:  d.SummaryRepeats,
		summaryInterval: d.SummaryInterval,
	}
}

func (c *Coordinator) Sessions() *session.Registry { return c.sessions }

// begin serializes the call on the session, counts it and announces it to the UI. The
// returned func must be called with the final reply.
func (c *Coordinator) begin(ctx context.Context, sess *session.Session, tool string) (context.Context, func(*Reply)) {
	sess.Lock()
	ctx, span := c.tracer.Start(ctx, "coordinator."+tool, trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("tool", tool),
	))
	sess.CountAction()
	status := notify.ToolStatus(displayText[tool])
	if status.DisplayText == "" {
		status.DisplayText = "Processing..."
	}
	c.publish(ctx, sess, status)

	return ctx, func(r *Reply) {
		r.Tool = tool
		span.SetAttributes(attribute.String("outcome", string(r.Outcome)))
		if r.Outcome == OutcomeStorageError || r.Outcome == OutcomeUncertain {
			span.SetStatus(codes.Error, string(r.Outcome))
		}
		span.End()
		sess.Unlock()
	}
}

// publish hands ev to the notifier and forgets it.
func (c *Coordinator) publish(ctx context.Context, sess *session.Session, ev notify.Event) {
	ev.SessionID = sess.ID
	ev.RoomName = sess.Room
	_ = c.notifier.Dispatch(ctx, ev)
}

func (c *Coordinator) currentRules(ctx context.Context) policy.Rules {
	r, err := c.rules.Rules(ctx)
	if err != nil {
		c.logger.Warn("booking rules unavailable, using defaults", "err", err)
		return policy.Defaults()
	}
	return r
}

// NormalizeContact keeps only the digits of raw.
func NormalizeContact(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validContact(digits string) bool { return len(digits) == 10 }

func reply(outcome Outcome, msg string, data any) Reply {
	return Reply{Outcome: outcome, Message: msg, Data: data}
}
