// Package policy holds the booking rules the coordinator enforces.
package policy

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/availability"
)

type Rules struct {
	// LeadTime is the minimum gap between now and a bookable slot. Zero disables it.
	LeadTime time.Duration
	// DailyCap limits booked appointments per contact per UTC day. Zero disables it.
	DailyCap int
	// ListingLimit caps how many appointments one listing reads out.
	ListingLimit int
	Catalog      []string
}

type Provider interface {
	Rules(ctx context.Context) (Rules, error)
}

type staticProvider struct {
	rules Rules
}

func NewStaticProvider(rules Rules) Provider {
	if rules.ListingLimit <= 0 {
		rules.ListingLimit = 5
	}
	if len(rules.Catalog) == 0 {
		rules.Catalog = append([]string(nil), availability.DefaultCatalog...)
	}
	return &staticProvider{rules: rules}
}

func (p *staticProvider) Rules(_ context.Context) (Rules, error) {
	r := p.rules
	r.Catalog = append([]string(nil), p.rules.Catalog...)
	return r, nil
}

// Defaults returns the rules a deployment starts from.
func Defaults() Rules {
	return Rules{
		LeadTime:     15 * time.Minute,
		DailyCap:     3,
		ListingLimit: 5,
		Catalog:      append([]string(nil), availability.DefaultCatalog...),
	}
}
