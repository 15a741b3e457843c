package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/availability"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/clock"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/policy"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/storage"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/timeparse"
)

const clockLayout = "03:04 PM"

type BookRequest struct {
	Name          string
	ContactNumber string
	Date          string
	Time          string
}

// AppointmentView is the JSON shape of a stored appointment.
type AppointmentView struct {
	ID              string `json:"id"`
	UserName        string `json:"user_name"`
	ContactNumber   string `json:"contact_number"`
	AppointmentSlot string `json:"appointment_slot"`
	Status          string `json:"status"`
}

func view(a model.Appointment) AppointmentView {
	return AppointmentView{
		ID:              a.ID,
		UserName:        a.UserName,
		ContactNumber:   a.ContactNumber,
		AppointmentSlot: a.SlotString(),
		Status:          a.Status,
	}
}

const (
	msgConflict      = "That slot is already reserved. Please pick a different time."
	msgUncertain     = "I encountered a technical issue while finalizing the booking, though the record may have been created. Let me double-check that for you."
	msgListFirst     = "Please list your appointments first so I know which one to modify."
	msgUnknownCancel = "I don't see an appointment with that number in my recent lookup."
	msgBusy          = "I couldn't secure that time just now. Nothing was changed, so please try again."
)

// Book reserves a slot for a caller. Once the insert has been attempted a storage fault is
// reported as uncertain because the row may exist.
func (c *Coordinator) Book(ctx context.Context, sess *session.Session, req BookRequest) (r Reply) {
	ctx, end := c.begin(ctx, sess, ToolBook)
	defer func() { end(&r) }()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return reply(OutcomeValidation, "What name should I put the appointment under?", nil)
	}
	contact := NormalizeContact(req.ContactNumber)
	if !validContact(contact) {
		return reply(OutcomeValidation, fmt.Sprintf("I heard %s. Please provide a 10-digit phone number.", req.ContactNumber), nil)
	}
	slot, err := timeparse.Parse(req.Date, req.Time)
	if err != nil {
		return reply(OutcomeValidation, fmt.Sprintf("I had trouble understanding the time '%s'. Could you try saying it differently?", req.Time), nil)
	}
	rules := c.currentRules(ctx)
	if clock.IsTooSoon(c.clock, slot, rules.LeadTime) {
		return reply(OutcomePastTime, fmt.Sprintf("The requested time %s on %s is in the past. Please pick a time in the future.", req.Time, req.Date), nil)
	}

	release, err := c.guard.Reserve(ctx, slot)
	if err != nil {
		c.logger.Warn("slot reservation failed", "session_id", sess.ID, "slot", slot.Format(model.SlotLayout), "err", err)
		return reply(OutcomeStorageError, msgBusy, nil)
	}
	defer release()

	if rej, ok := c.checkSlot(ctx, sess, rules, contact, slot, ""); !ok {
		if rej.Outcome == OutcomeConflict {
			rej.Message = msgConflict
		}
		return rej
	}

	stored, err := c.store.Insert(ctx, model.Appointment{
		UserName:        name,
		ContactNumber:   contact,
		AppointmentSlot: slot,
		Status:          model.StatusBooked,
	})
	if err != nil {
		if storage.IsConflict(err) {
			return reply(OutcomeConflict, msgConflict, nil)
		}
		c.logger.Error("booking insert failed", "session_id", sess.ID, "slot", slot.Format(model.SlotLayout), "err", err)
		return reply(OutcomeUncertain, msgUncertain, nil)
	}

	c.logger.Info("appointment booked", "session_id", sess.ID, "appointment_id", stored.ID, "slot", stored.SlotString())
	v := view(stored)
	c.publish(ctx, sess, notify.ToolCall(ToolBook, map[string]any{"success": true, "data": v}))
	msg := fmt.Sprintf("Perfect. I've scheduled that for %s on %s at %s.", name, slot.Format(timeparse.DateLayout), slot.Format(clockLayout))
	return reply(OutcomeOK, msg, v)
}

// checkSlot applies the daily cap and the collision window. excludeID skips the record
// being moved.
func (c *Coordinator) checkSlot(ctx context.Context, sess *session.Session, rules policy.Rules, contact string, slot time.Time, excludeID string) (Reply, bool) {
	if rules.DailyCap > 0 {
		dayStart, _ := availability.DayBounds(slot)
		n, err := c.store.CountByContactInRange(ctx, contact, dayStart, dayStart.Add(24*time.Hour), excludeID)
		if err != nil {
			c.logger.Error("daily cap check failed", "session_id", sess.ID, "err", err)
			return reply(OutcomeStorageError, "I couldn't check the schedule right now. Please try again in a moment.", nil), false
		}
		if n >= rules.DailyCap {
			return reply(OutcomeDailyLimit, fmt.Sprintf("You already have %d appointments on %s, which is our daily limit. Could we pick another day?", n, slot.Format(timeparse.DateLayout)), nil), false
		}
	}

	taken, err := c.guard.HasConflict(ctx, slot, excludeID)
	if err != nil {
		c.logger.Error("collision check failed", "session_id", sess.ID, "err", err)
		return reply(OutcomeStorageError, "I couldn't check the schedule right now. Please try again in a moment.", nil), false
	}
	if taken {
		return reply(OutcomeConflict, "That new time is already taken.", nil), false
	}
	return Reply{}, true
}

// resolveOrdinal maps a spoken number to a booked appointment from the latest listing.
// When ok is false, the Reply explains why and carries missing as its message for index misses.
func (c *Coordinator) resolveOrdinal(ctx context.Context, sess *session.Session, ordinal, missing string) (model.Appointment, Reply, bool) {
	n, ok := session.ParseOrdinal(ordinal)
	if !ok {
		return model.Appointment{}, reply(OutcomeNotFound, missing, nil), false
	}
	id, err := sess.Index.Resolve(n)
	if err != nil {
		return model.Appointment{}, reply(OutcomeNotFound, missing, nil), false
	}
	appt, err := c.store.Get(ctx, id)
	if storage.IsNotFound(err) || (err == nil && appt.Status != model.StatusBooked) {
		return model.Appointment{}, reply(OutcomeNotFound, "That appointment is no longer on file. Let me pull up your list again so we have the latest.", nil), false
	}
	if err != nil {
		c.logger.Error("appointment lookup failed", "session_id", sess.ID, "appointment_id", id, "err", err)
		return model.Appointment{}, reply(OutcomeStorageError, "I couldn't reach your records right now. Please try again in a moment.", nil), false
	}
	return appt, Reply{}, true
}

// Modify moves a listed appointment to a new slot.
func (c *Coordinator) Modify(ctx context.Context, sess *session.Session, ordinal, newDate, newTime string) (r Reply) {
	ctx, end := c.begin(ctx, sess, ToolModify)
	defer func() { end(&r) }()

	appt, rej, ok := c.resolveOrdinal(ctx, sess, ordinal, msgListFirst)
	if !ok {
		return rej
	}
	slot, err := timeparse.Parse(newDate, newTime)
	if err != nil {
		return reply(OutcomeValidation, fmt.Sprintf("I had trouble understanding the time '%s'. Could you try saying it differently?", newTime), nil)
	}
	rules := c.currentRules(ctx)
	if clock.IsTooSoon(c.clock, slot, rules.LeadTime) {
		return reply(OutcomePastTime, "I can't move an appointment to a past time. What new day and time would you like instead?", nil)
	}

	release, err := c.guard.Reserve(ctx, slot)
	if err != nil {
		c.logger.Warn("slot reservation failed", "session_id", sess.ID, "slot", slot.Format(model.SlotLayout), "err", err)
		return reply(OutcomeStorageError, msgBusy, nil)
	}
	defer release()

	if rej, ok := c.checkSlot(ctx, sess, rules, appt.ContactNumber, slot, appt.ID); !ok {
		return rej
	}

	if err := c.store.UpdateSlot(ctx, appt.ID, slot); err != nil {
		switch {
		case storage.IsConflict(err):
			return reply(OutcomeConflict, "That new time is already taken.", nil)
		case storage.IsNotFound(err):
			return reply(OutcomeNotFound, "That appointment is no longer on file. Let me pull up your list again so we have the latest.", nil)
		}
		c.logger.Error("appointment update failed", "session_id", sess.ID, "appointment_id", appt.ID, "err", err)
		return reply(OutcomeStorageError, "I ran into a problem updating that appointment. Please try again in a moment.", nil)
	}

	appt.AppointmentSlot = slot
	c.logger.Info("appointment moved", "session_id", sess.ID, "appointment_id", appt.ID, "slot", appt.SlotString())
	v := view(appt)
	c.publish(ctx, sess, notify.ToolCall(ToolModify, map[string]any{"success": true, "data": v}))
	return reply(OutcomeOK, fmt.Sprintf("Updated to %s at %s.", slot.Format(timeparse.DateLayout), slot.Format(clockLayout)), v)
}

// Cancel soft-cancels a listed appointment.
func (c *Coordinator) Cancel(ctx context.Context, sess *session.Session, ordinal string) (r Reply) {
	ctx, end := c.begin(ctx, sess, ToolCancel)
	defer func() { end(&r) }()

	appt, rej, ok := c.resolveOrdinal(ctx, sess, ordinal, msgUnknownCancel)
	if !ok {
		return rej
	}

	cancelledAt, err := c.store.Cancel(ctx, appt.ID)
	if err != nil {
		if storage.IsNotFound(err) {
			return reply(OutcomeNotFound, "That appointment is no longer on file. Let me pull up your list again so we have the latest.", nil)
		}
		c.logger.Error("appointment cancel failed", "session_id", sess.ID, "appointment_id", appt.ID, "err", err)
		return reply(OutcomeStorageError, "I ran into a problem cancelling that appointment. It is still on file, so please try again in a moment.", nil)
	}

	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt
	c.logger.Info("appointment cancelled", "session_id", sess.ID, "appointment_id", appt.ID)
	v := view(appt)
	c.publish(ctx, sess, notify.ToolCall(ToolCancel, map[string]any{"success": true, "data": v}))
	return reply(OutcomeOK, "Successfully cancelled.", v)
}
