package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/availability"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/storage"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/timeparse"
)

type IdentifyResult struct {
	Found   bool           `json:"found"`
	Profile *model.Profile `json:"profile,omitempty"`
}

// Identify looks a caller up by phone number. A well-formed number moves the session to
// identified whether or not records exist; a miss continues as a new guest.
func (c *Coordinator) Identify(ctx context.Context, sess *session.Session, phone string) (r Reply) {
	ctx, end := c.begin(ctx, sess, ToolIdentify)
	defer func() { end(&r) }()

	contact := NormalizeContact(phone)
	if !validContact(contact) {
		return reply(OutcomeValidation, fmt.Sprintf("I heard %s. Please provide a 10-digit phone number.", phone), nil)
	}

	appt, err := c.store.FindAnyByContact(ctx, contact)
	switch {
	case storage.IsNotFound(err):
		sess.Identify(contact, "")
		c.publish(ctx, sess, notify.ToolCall(ToolIdentify, map[string]any{"found": false, "data": nil}))
		return reply(OutcomeUserNotFound, "No records found. You can proceed as a new guest.", IdentifyResult{Found: false})
	case err != nil:
		c.logger.Error("identify lookup failed", "session_id", sess.ID, "err", err)
		return reply(OutcomeStorageError, "I'm having trouble reaching our records right now. Could you give me a moment and try again?", nil)
	}

	profile := model.Profile{UserName: appt.UserName, ContactNumber: appt.ContactNumber}
	sess.Identify(contact, appt.UserName)
	c.publish(ctx, sess, notify.ToolCall(ToolIdentify, map[string]any{"found": true, "data": profile}))
	return reply(OutcomeOK, fmt.Sprintf("User verified: %s. Access granted.", appt.UserName), IdentifyResult{Found: true, Profile: &profile})
}

type SlotsResult struct {
	Date           string   `json:"date"`
	AvailableSlots []string `json:"available_slots"`
}

// FetchAvailability lists the catalog times still open on date's UTC day.
func (c *Coordinator) FetchAvailability(ctx context.Context, sess *session.Session, date string) (r Reply) {
	ctx, end := c.begin(ctx, sess, ToolFetch)
	defer func() { end(&r) }()

	day, err := timeparse.ParseDate(date)
	if err != nil {
		return reply(OutcomeValidation, fmt.Sprintf("I couldn't read the date %q. Could you give it as year, month and day?", date), nil)
	}
	dayLabel := day.Format(timeparse.DateLayout)
	start, stop := availability.DayBounds(day)

	booked, err := c.store.FindOverlapping(ctx, start, stop, "")
	if err != nil {
		c.logger.Error("availability lookup failed", "session_id", sess.ID, "date", dayLabel, "err", err)
		return reply(OutcomeStorageError, fmt.Sprintf("I couldn't check the schedule for %s right now. Please try again in a moment.", dayLabel), nil)
	}
	slots := make([]time.Time, 0, len(booked))
	for _, a := range booked {
		slots = append(slots, a.AppointmentSlot)
	}
	free := availability.FreeSlots(c.currentRules(ctx).Catalog, slots)

	c.publish(ctx, sess, notify.ToolCall(ToolFetch, map[string]any{"available_slots": free}))
	result := SlotsResult{Date: dayLabel, AvailableSlots: free}
	if len(free) == 0 {
		return reply(OutcomeOK, fmt.Sprintf("We are fully booked for %s.", dayLabel), result)
	}
	return reply(OutcomeOK, fmt.Sprintf("For %s, available times are: %s.", dayLabel, strings.Join(free, ", ")), result)
}

// ListingEntry is one numbered line of a listing.
type ListingEntry struct {
	Option          int    `json:"option"`
	AppointmentID   string `json:"appointment_id"`
	AppointmentSlot string `json:"appointment_slot"`
	When            string `json:"when"`
}

const listingLayout = "Monday, Jan 02 at 03:04 PM"

// ListByContact reads out the most recent appointments and renumbers the session index.
// An empty contact falls back to the number the session was identified with.
func (c *Coordinator) ListByContact(ctx context.Context, sess *session.Session, contactNumber string) (r Reply) {
	ctx, end := c.begin(ctx, sess, ToolRetrieve)
	defer func() { end(&r) }()

	contact := NormalizeContact(contactNumber)
	if contact == "" {
		contact = sess.Contact()
	}
	if !validContact(contact) {
		return reply(OutcomeValidation, fmt.Sprintf("I heard %s. Please provide a 10-digit phone number.", contactNumber), nil)
	}

	appts, err := c.store.FindByContact(ctx, contact, c.currentRules(ctx).ListingLimit)
	if err != nil {
		sess.Index.Clear()
		c.logger.Error("listing failed", "session_id", sess.ID, "err", err)
		return reply(OutcomeStorageError, "I couldn't pull up your appointments right now. Please try again in a moment.", nil)
	}
	if len(appts) > session.MaxOrdinals {
		appts = appts[:session.MaxOrdinals]
	}
	sess.Index.Rebuild(appts)

	if len(appts) == 0 {
		c.publish(ctx, sess, notify.ToolCall(ToolRetrieve, map[string]any{"appointments": []ListingEntry{}}))
		return reply(OutcomeOK, "No appointments found for this contact number.", []ListingEntry{})
	}

	now := c.clock.Now()
	entries := make([]ListingEntry, 0, len(appts))
	lines := make([]string, 0, len(appts))
	for i, a := range appts {
		when := "Upcoming"
		if a.AppointmentSlot.Before(now) {
			when = "Past"
		}
		entries = append(entries, ListingEntry{
			Option:          i + 1,
			AppointmentID:   a.ID,
			AppointmentSlot: a.SlotString(),
			When:            when,
		})
		lines = append(lines, fmt.Sprintf("Option %d: %s (%s)", i+1, a.AppointmentSlot.UTC().Format(listingLayout), when))
	}
	c.publish(ctx, sess, notify.ToolCall(ToolRetrieve, map[string]any{"appointments": entries}))
	msg := "I found these: " + strings.Join(lines, "; ") + ". Which one would you like to handle?"
	return reply(OutcomeOK, msg, entries)
}
