// Package store persists funnel records keyed by user id.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/funnelbot/internal/funnel"
)

// Store is the record store used by the funnel. Update is atomic per record
// and rejects values that break funnel.ValidateTransition.
type Store interface {
	// Create inserts rec unless a record for the user already exists.
	Create(ctx context.Context, rec funnel.Record) (bool, error)
	Get(ctx context.Context, userID int64) (funnel.Record, error)
	Update(ctx context.Context, userID int64, fn func(*funnel.Record) error) (funnel.Record, error)
	// Remove deletes a record; only used to roll back a registration whose
	// document was never delivered.
	Remove(ctx context.Context, userID int64) error
	// DueForWarmup lists users eligible for stage whose last event is at or
	// before cutoff.
	DueForWarmup(ctx context.Context, stage funnel.Stage, cutoff time.Time) ([]int64, error)
	Recipients(ctx context.Context, audience Audience) ([]int64, error)
	Stats(ctx context.Context) (Stats, error)
}

// Audience selects broadcast recipients.
type Audience uint8

const (
	AudienceAll Audience = iota
	AudienceWithContact
	AudienceWithoutContact
	AudienceSubscribed
)

var audienceNames = map[Audience]string{
	AudienceAll:            "all",
	AudienceWithContact:    "with_contact",
	AudienceWithoutContact: "without_contact",
	AudienceSubscribed:     "subscribed",
}

func (a Audience) String() string {
	if s, ok := audienceNames[a]; ok {
		return s
	}
	return "unknown"
}

// ParseAudience maps a name back to its Audience.
func ParseAudience(s string) (Audience, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for a, name := range audienceNames {
		if name == key {
			return a, nil
		}
	}
	return 0, fmt.Errorf("store: unknown audience %q", s)
}

// Match reports whether rec belongs to the audience.
func (a Audience) Match(rec funnel.Record) bool {
	switch a {
	case AudienceAll:
		return true
	case AudienceWithContact:
		return rec.ContactProvided
	case AudienceWithoutContact:
		return !rec.ContactProvided
	case AudienceSubscribed:
		return rec.Subscribed
	}
	return false
}

// Stats are the simple counts shown to the admin.
type Stats struct {
	Total          int
	WithContact    int
	WithoutContact int
	Subscribed     int
	ByStatus       map[funnel.Status]int
}

// Conversion is the share of users with a contact, in percent.
func (s Stats) Conversion() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.WithContact) * 100 / float64(s.Total)
}

func (s *Stats) add(status funnel.Status, contact, subscribed bool, n int) {
	if s.ByStatus == nil {
		s.ByStatus = make(map[funnel.Status]int, len(funnel.Statuses()))
	}
	s.Total += n
	s.ByStatus[status] += n
	if contact {
		s.WithContact += n
	} else {
		s.WithoutContact += n
	}
	if subscribed {
		s.Subscribed += n
	}
}

func warmupEligible(rec funnel.Record, stage funnel.Stage, cutoff time.Time) bool {
	return rec.Status == funnel.StatusOfferSent &&
		!rec.ContactProvided &&
		rec.Subscribed &&
		!rec.WarmupSent(stage) &&
		!rec.LastEventAt.After(cutoff)
}
