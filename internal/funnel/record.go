package funnel

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by stores when no record exists for a user id.
	ErrNotFound = errors.New("funnel: record not found")
	// ErrInvariant wraps every rejected record transition.
	ErrInvariant = errors.New("funnel: invariant violated")
)

// Meta is the display metadata supplied by the transport with an update.
type Meta struct {
	Username  string
	FirstName string
	LastName  string
}

// Record is the persisted funnel state of one user.
type Record struct {
	UserID          int64     `db:"user_id"`
	Username        string    `db:"username"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	AddedAt         time.Time `db:"added_at"`
	Status          Status    `db:"status"`
	Subscribed      bool      `db:"subscribed"`
	ContactProvided bool      `db:"contact_provided"`
	ContactName     string    `db:"contact_name"`
	ContactPhone    string    `db:"contact_phone"`
	LastEventAt     time.Time `db:"last_event_at"`
	Warmup1Sent     bool      `db:"warmup1_sent"`
	Warmup2Sent     bool      `db:"warmup2_sent"`
}

// NewRecord builds the record created on the first valid code word.
func NewRecord(userID int64, meta Meta, now time.Time) Record {
	return Record{
		UserID:      userID,
		Username:    meta.Username,
		FirstName:   meta.FirstName,
		LastName:    meta.LastName,
		AddedAt:     now,
		Status:      StatusFileSent,
		Subscribed:  true,
		LastEventAt: now,
	}
}

// WarmupSent reports whether the given stage flag is set.
func (r Record) WarmupSent(stage Stage) bool {
	switch stage {
	case StageWarmup1:
		return r.Warmup1Sent
	case StageWarmup2:
		return r.Warmup2Sent
	}
	return false
}

func (r *Record) markWarmup(stage Stage) {
	switch stage {
	case StageWarmup1:
		r.Warmup1Sent = true
	case StageWarmup2:
		r.Warmup2Sent = true
	}
}

// DisplayName picks the best human-readable name for the record.
func (r Record) DisplayName() string {
	switch {
	case r.FirstName != "":
		return r.FirstName
	case r.Username != "":
		return r.Username
	}
	return fmt.Sprintf("id%d", r.UserID)
}

// Validate checks the invariants that hold for a single record value.
func (r Record) Validate() error {
	if r.UserID == 0 {
		return fmt.Errorf("%w: empty user id", ErrInvariant)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: invalid status %d", ErrInvariant, uint8(r.Status))
	}
	hasContact := r.ContactName != "" && r.ContactPhone != ""
	if r.ContactProvided != hasContact {
		return fmt.Errorf("%w: contact_provided=%t but name/phone present=%t", ErrInvariant, r.ContactProvided, hasContact)
	}
	if r.ContactProvided != (r.Status == StatusContactProvided) {
		return fmt.Errorf("%w: status %s disagrees with contact_provided=%t", ErrInvariant, r.Status, r.ContactProvided)
	}
	if r.LastEventAt.Before(r.AddedAt) {
		return fmt.Errorf("%w: last_event_at before added_at", ErrInvariant)
	}
	return nil
}

// ValidateTransition checks that next is a legal successor of prev.
func ValidateTransition(prev, next Record) error {
	if err := next.Validate(); err != nil {
		return err
	}
	switch {
	case prev.UserID != next.UserID:
		return fmt.Errorf("%w: user id is immutable", ErrInvariant)
	case !prev.AddedAt.Equal(next.AddedAt):
		return fmt.Errorf("%w: added_at is immutable", ErrInvariant)
	case next.LastEventAt.Before(prev.LastEventAt):
		return fmt.Errorf("%w: last_event_at went backwards", ErrInvariant)
	case prev.ContactProvided && !next.ContactProvided:
		return fmt.Errorf("%w: contact_provided reverted", ErrInvariant)
	case prev.ContactProvided && (prev.ContactName != next.ContactName || prev.ContactPhone != next.ContactPhone):
		return fmt.Errorf("%w: contact is set once", ErrInvariant)
	case !prev.Subscribed && next.Subscribed:
		return fmt.Errorf("%w: unsubscribe is terminal", ErrInvariant)
	}
	for _, stage := range Stages() {
		was, is := prev.WarmupSent(stage), next.WarmupSent(stage)
		if was && !is {
			return fmt.Errorf("%w: %s flag reverted", ErrInvariant, stage)
		}
		if !was && is && (prev.Status != StatusOfferSent || prev.ContactProvided) {
			return fmt.Errorf("%w: %s set outside offer_sent", ErrInvariant, stage)
		}
	}
	return nil
}
