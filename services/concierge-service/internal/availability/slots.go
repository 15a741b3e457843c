// Package availability computes which catalog times on a day are still open.
package availability

import "time"

// LabelLayout is how catalog entries and booked slots are compared.
const LabelLayout = "03:04 PM"

// DefaultCatalog is the fixed list of bookable times offered for any day.
var DefaultCatalog = []string{"09:00 AM", "10:30 AM", "01:00 PM", "03:30 PM", "05:00 PM"}

// DayBounds returns the first and last second of day's UTC calendar day.
func DayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Second)
}

// FreeSlots returns the catalog entries, in catalog order, whose label no booked slot
// renders to. Booked slots are expected to lie within a single UTC day.
func FreeSlots(catalog []string, booked []time.Time) []string {
	busy := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		busy[b.UTC().Format(LabelLayout)] = struct{}{}
	}
	free := make([]string, 0, len(catalog))
	for _, label := range catalog {
		if _, taken := busy[label]; taken {
			continue
		}
		free = append(free, label)
	}
	return free
}
