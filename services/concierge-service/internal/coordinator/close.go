package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/metrics"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
)

type CloseResult struct {
	Report      string         `json:"report"`
	Metrics     metrics.Report `json:"metrics"`
	ActionCount int            `json:"action_count"`
}

// CloseSession builds the final report, broadcasts it and schedules teardown. It returns
// without waiting for either.
func (c *Coordinator) CloseSession(ctx context.Context, sess *session.Session, summary string) (r Reply) {
	ctx, end := c.begin(ctx, sess, ToolSummarize)
	defer func() { end(&r) }()

	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = "Session complete."
	}
	snap := metrics.Snapshot(sess.StartedAt, c.clock.Now())
	report := fmt.Sprintf("CONVERSATION RECAP:\n%s\n\nTECHNICAL PERFORMANCE:\n%s", summary, snap.Format())
	actions := sess.Actions()

	c.publish(ctx, sess, notify.ToolCall(ToolSummarize, map[string]any{"summary": report}))

	packet := notify.CallSummary(report, actions)
	packet.SessionID = sess.ID
	packet.RoomName = sess.Room
	c.notifier.BroadcastRepeated(context.WithoutCancel(ctx), packet, c.summaryRepeats, c.summaryInterval)

	if c.sessions.Close(sess) {
		c.logger.Info("session closing", "session_id", sess.ID, "duration_seconds", snap.DurationSeconds, "action_count", actions)
	}
	return reply(OutcomeOK, "Summary generated. Goodbye.", CloseResult{Report: report, Metrics: snap, ActionCount: actions})
}
