package funnel

import (
	"time"

	"github.com/m3rciful/funnelbot/internal/contact"
)

// Event is an input to the state machine.
type Event interface {
	event()
}

// CodeWordEntered is the correct code word arriving from a user.
type CodeWordEntered struct {
	UserID int64
	Meta   Meta
}

// TextReceived is any other free-form text, already run through the extractor.
type TextReceived struct {
	Contact contact.Result
}

// ContactShared is a structured contact payload from the transport.
type ContactShared struct {
	Contact contact.Result
}

// OfferDue fires when the offer delay elapsed.
type OfferDue struct{}

// WarmupDue is raised by the scanner for a candidate record.
type WarmupDue struct {
	Stage     Stage
	Threshold time.Duration
}

// UnsubscribeRequested is the terminal opt-out.
type UnsubscribeRequested struct{}

func (CodeWordEntered) event()      {}
func (TextReceived) event()         {}
func (ContactShared) event()        {}
func (OfferDue) event()             {}
func (WarmupDue) event()            {}
func (UnsubscribeRequested) event() {}

// Action tells the caller which side effect the decision requires.
type Action uint8

const (
	// ActionSkip absorbs the event without a reply.
	ActionSkip Action = iota
	// ActionRejectCodeWord answers an unknown user who sent the wrong word.
	ActionRejectCodeWord
	// ActionAlreadyReceived answers a repeated code word.
	ActionAlreadyReceived
	// ActionRegister creates the record and delivers the document.
	ActionRegister
	// ActionSendOffer delivers the consultation offer.
	ActionSendOffer
	// ActionSendWarmup delivers the warm-up of the event's stage.
	ActionSendWarmup
	// ActionAcceptContact stores the contact, thanks the user, notifies the admin.
	ActionAcceptContact
	// ActionInvalidPhone explains the accepted phone formats.
	ActionInvalidPhone
	// ActionContactHint asks for name and phone.
	ActionContactHint
	// ActionContactKnown tells the user their contact is already on file.
	ActionContactKnown
	// ActionUnsubscribe stops broadcasts for the user.
	ActionUnsubscribe
	// ActionAlreadyUnsubscribed answers a repeated opt-out.
	ActionAlreadyUnsubscribed
)

var actionNames = [...]string{
	ActionSkip:                "skip",
	ActionRejectCodeWord:      "reject_code_word",
	ActionAlreadyReceived:     "already_received",
	ActionRegister:            "register",
	ActionSendOffer:           "send_offer",
	ActionSendWarmup:          "send_warmup",
	ActionAcceptContact:       "accept_contact",
	ActionInvalidPhone:        "invalid_phone",
	ActionContactHint:         "contact_hint",
	ActionContactKnown:        "contact_known",
	ActionUnsubscribe:         "unsubscribe",
	ActionAlreadyUnsubscribed: "already_unsubscribed",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// Decision is the outcome of one event.
type Decision struct {
	Action Action
	// Next is the record after the transition; meaningful when Mutates is set.
	Next    Record
	Mutates bool
	// Reason explains skips in logs.
	Reason string
}

// Machine is the pure funnel transition function under a policy.
type Machine struct {
	Policy Policy
}

// NewMachine returns a machine for the policy.
func NewMachine(p Policy) Machine {
	return Machine{Policy: p}
}

// Decide maps the current record (nil for unknown users) and an event to a decision.
func (m Machine) Decide(cur *Record, ev Event, now time.Time) Decision {
	switch e := ev.(type) {
	case CodeWordEntered:
		if cur != nil {
			return Decision{Action: ActionAlreadyReceived}
		}
		return Decision{Action: ActionRegister, Next: NewRecord(e.UserID, e.Meta, now), Mutates: true}
	case TextReceived:
		return m.onText(cur, e.Contact, now)
	case ContactShared:
		return m.onContact(cur, e.Contact, now)
	case OfferDue:
		return m.onOfferDue(cur, now)
	case WarmupDue:
		return m.onWarmupDue(cur, e, now)
	case UnsubscribeRequested:
		switch {
		case cur == nil:
			return skip("not_found")
		case !cur.Subscribed:
			return Decision{Action: ActionAlreadyUnsubscribed}
		}
		next := *cur
		next.Subscribed = false
		return Decision{Action: ActionUnsubscribe, Next: next, Mutates: true}
	}
	return skip("unknown_event")
}

func (m Machine) onText(cur *Record, res contact.Result, now time.Time) Decision {
	if cur == nil {
		return Decision{Action: ActionRejectCodeWord}
	}
	if !m.Policy.ContactCapture {
		return skip("contact_capture_disabled")
	}
	if cur.ContactProvided {
		return Decision{Action: ActionContactKnown}
	}
	// Before the offer only a complete contact is answered; other text
	// stays silent.
	if cur.Status == StatusFileSent && res.Outcome != contact.OutcomeExtracted {
		return skip("offer_pending")
	}
	switch res.Outcome {
	case contact.OutcomeInvalidPhone:
		return Decision{Action: ActionInvalidPhone}
	case contact.OutcomeExtracted:
		return acceptContact(*cur, res, now)
	}
	return Decision{Action: ActionContactHint}
}

func (m Machine) onContact(cur *Record, res contact.Result, now time.Time) Decision {
	switch {
	case cur == nil:
		return skip("not_found")
	case !m.Policy.ContactCapture:
		return skip("contact_capture_disabled")
	case cur.ContactProvided:
		return skip("contact_provided")
	case cur.Status == StatusFileSent && res.Outcome != contact.OutcomeExtracted:
		return skip("offer_pending")
	}
	switch res.Outcome {
	case contact.OutcomeExtracted:
		return acceptContact(*cur, res, now)
	case contact.OutcomeInvalidPhone:
		return Decision{Action: ActionInvalidPhone}
	}
	return Decision{Action: ActionContactHint}
}

func acceptContact(cur Record, res contact.Result, now time.Time) Decision {
	next := cur
	next.ContactProvided = true
	next.ContactName = res.Name
	if next.ContactName == "" {
		next.ContactName = cur.DisplayName()
	}
	next.ContactPhone = res.Phone
	next.Status = StatusContactProvided
	next.LastEventAt = later(cur.LastEventAt, now)
	return Decision{Action: ActionAcceptContact, Next: next, Mutates: true}
}

func (m Machine) onOfferDue(cur *Record, now time.Time) Decision {
	switch {
	case cur == nil:
		return skip("not_found")
	case !m.Policy.ContactCapture:
		return skip("contact_capture_disabled")
	case cur.ContactProvided:
		return skip("contact_provided")
	case !cur.Subscribed:
		return skip("unsubscribed")
	case cur.Status != StatusFileSent:
		return skip("already_offered")
	}
	next := *cur
	next.Status = StatusOfferSent
	next.LastEventAt = later(cur.LastEventAt, now)
	return Decision{Action: ActionSendOffer, Next: next, Mutates: true}
}

func (m Machine) onWarmupDue(cur *Record, e WarmupDue, now time.Time) Decision {
	switch {
	case cur == nil:
		return skip("not_found")
	case !m.Policy.ContactCapture:
		return skip("contact_capture_disabled")
	case cur.ContactProvided:
		return skip("contact_provided")
	case !cur.Subscribed:
		return skip("unsubscribed")
	case cur.Status != StatusOfferSent:
		return skip("not_offered")
	case cur.WarmupSent(e.Stage):
		return skip("already_sent")
	case now.Sub(cur.LastEventAt) < e.Threshold:
		return skip("not_due")
	}
	next := *cur
	next.markWarmup(e.Stage)
	next.LastEventAt = later(cur.LastEventAt, now)
	if next.Warmup1Sent && next.Warmup2Sent {
		next.Status = StatusExhausted
	}
	return Decision{Action: ActionSendWarmup, Next: next, Mutates: true}
}

func skip(reason string) Decision {
	return Decision{Action: ActionSkip, Reason: reason}
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
