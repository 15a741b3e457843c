// Package timeparse turns the date and time strings a caller speaks or types into a
// canonical UTC slot.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrUnparseable = errors.New("unparseable date or time")

// clockLayouts are tried in order after normalization; first success wins.
var clockLayouts = []string{
	"3:04 PM",
	"3 PM",
	"3:04:05 PM",
	"15:04",
	"15:04:05",
}

var (
	spaceRun     = regexp.MustCompile(`\s+`)
	gluedMeridie = regexp.MustCompile(`^(\d{1,2}(?::\d{2}){0,2})\s*([AP])\.?\s*M\.?$`)
)

// Parse combines an ISO calendar date with a clock time and returns the UTC instant with
// seconds truncated. A full RFC 3339 timestamp in place of the clock is taken as the
// instant itself and must fall on date in UTC.
func Parse(date, clock string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if ts, ok := parseTimestamp(clock); ok {
		ts = ts.UTC().Truncate(time.Minute)
		if ts.Format(DateLayout) != day.Format(DateLayout) {
			return time.Time{}, fmt.Errorf("%w: time %q is not on %s in UTC", ErrUnparseable, clock, date)
		}
		return ts, nil
	}
	tod, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, time.UTC), nil
}

// ParseDate accepts YYYY-MM-DD and rejects dates that do not exist on the calendar.
func ParseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrUnparseable, date)
	}
	return day, nil
}

func parseClock(raw string) (time.Time, error) {
	s := normalizeClock(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty time", ErrUnparseable)
	}
	for _, layout := range clockLayouts {
		if tod, err := time.Parse(layout, s); err == nil {
			return tod, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrUnparseable, raw)
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "T") {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	return ts, err == nil
}

// normalizeClock uppercases, collapses whitespace and rewrites meridiem markers such as
// "2pm", "2:00p.m." or "2 P.M." to "2 PM".
func normalizeClock(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spaceRun.ReplaceAllString(s, " ")
	switch s {
	case "NOON", "MIDDAY":
		return "12:00 PM"
	case "MIDNIGHT":
		return "12:00 AM"
	}
	if m := gluedMeridie.FindStringSubmatch(s); m != nil {
		return m[1] + " " + m[2] + "M"
	}
	return s
}
