package funnel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/funnelbot/internal/contact"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func offered(at time.Time) Record {
	r := NewRecord(42, Meta{FirstName: "Иван", Username: "ivan"}, t0)
	r.Status = StatusOfferSent
	r.LastEventAt = at
	return r
}

func TestDecideCodeWord(t *testing.T) {
	m := NewMachine(DefaultPolicy())

	d := m.Decide(nil, CodeWordEntered{UserID: 42, Meta: Meta{Username: "ivan"}}, t0)
	require.Equal(t, ActionRegister, d.Action)
	require.True(t, d.Mutates)
	assert.Equal(t, int64(42), d.Next.UserID)
	assert.Equal(t, StatusFileSent, d.Next.Status)
	assert.True(t, d.Next.Subscribed)
	assert.Equal(t, t0, d.Next.AddedAt)
	assert.Equal(t, t0, d.Next.LastEventAt)
	require.NoError(t, d.Next.Validate())

	existing := d.Next
	again := m.Decide(&existing, CodeWordEntered{UserID: 42}, t0.Add(time.Minute))
	assert.Equal(t, ActionAlreadyReceived, again.Action)
	assert.False(t, again.Mutates)
}

func TestDecideTextFromUnknownUserRejectsCodeWord(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	d := m.Decide(nil, TextReceived{Contact: contact.Extract("пароль")}, t0)
	assert.Equal(t, ActionRejectCodeWord, d.Action)
}

func TestDecideBeforeOffer(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	r := NewRecord(42, Meta{FirstName: "Иван"}, t0)
	now := t0.Add(10 * time.Second)

	noise := m.Decide(&r, TextReceived{Contact: contact.Extract("привет")}, now)
	assert.Equal(t, ActionSkip, noise.Action)
	assert.Equal(t, "offer_pending", noise.Reason)
	assert.Equal(t, ActionSkip, m.Decide(&r, TextReceived{Contact: contact.Extract("12345")}, now).Action)

	d := m.Decide(&r, TextReceived{Contact: contact.Extract("Иван +79991234567")}, now)
	require.Equal(t, ActionAcceptContact, d.Action)
	assert.Equal(t, StatusContactProvided, d.Next.Status)
	require.NoError(t, ValidateTransition(r, d.Next))

	shared := m.Decide(&r, ContactShared{Contact: contact.FromPayload("Иван", "+79991234567")}, now)
	require.Equal(t, ActionAcceptContact, shared.Action)
	assert.True(t, shared.Next.ContactProvided)

	converted := d.Next
	offer := m.Decide(&converted, OfferDue{}, now.Add(time.Minute))
	assert.Equal(t, ActionSkip, offer.Action)
	assert.Equal(t, "contact_provided", offer.Reason)
}

func TestDecideContactOutcomes(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	r := offered(t0)

	assert.Equal(t, ActionInvalidPhone, m.Decide(&r, TextReceived{Contact: contact.Extract("12345")}, t0).Action)
	assert.Equal(t, ActionContactHint, m.Decide(&r, TextReceived{Contact: contact.Extract("привет")}, t0).Action)

	now := t0.Add(time.Hour)
	d := m.Decide(&r, TextReceived{Contact: contact.Extract("Иван Петров +79991234567")}, now)
	require.Equal(t, ActionAcceptContact, d.Action)
	assert.True(t, d.Next.ContactProvided)
	assert.Equal(t, StatusContactProvided, d.Next.Status)
	assert.Equal(t, "Иван Петров", d.Next.ContactName)
	assert.Equal(t, "79991234567", d.Next.ContactPhone)
	assert.Equal(t, now, d.Next.LastEventAt)
	require.NoError(t, ValidateTransition(r, d.Next))

	converted := d.Next
	assert.Equal(t, ActionContactKnown, m.Decide(&converted, TextReceived{Contact: contact.Extract("hi")}, now).Action)
	assert.Equal(t, ActionSkip, m.Decide(&converted, ContactShared{Contact: contact.FromPayload("Иван", "+79990000000")}, now).Action)
}

func TestDecidePhoneOnlyFallsBackToDisplayName(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	r := offered(t0)
	d := m.Decide(&r, TextReceived{Contact: contact.Extract("+7 (999) 123-45-67")}, t0)
	require.Equal(t, ActionAcceptContact, d.Action)
	assert.Equal(t, "Иван", d.Next.ContactName)
	require.NoError(t, d.Next.Validate())
}

func TestDecideContactAcceptedAfterExhaustion(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	r := offered(t0)
	r.Warmup1Sent, r.Warmup2Sent, r.Status = true, true, StatusExhausted
	d := m.Decide(&r, ContactShared{Contact: contact.FromPayload("Иван", "89991234567")}, t0.Add(time.Hour))
	require.Equal(t, ActionAcceptContact, d.Action)
	require.NoError(t, ValidateTransition(r, d.Next))
}

func TestDecideOfferDue(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	r := NewRecord(42, Meta{}, t0)

	now := t0.Add(time.Minute)
	d := m.Decide(&r, OfferDue{}, now)
	require.Equal(t, ActionSendOffer, d.Action)
	assert.Equal(t, StatusOfferSent, d.Next.Status)
	assert.Equal(t, now, d.Next.LastEventAt)

	sent := d.Next
	assert.Equal(t, "already_offered", m.Decide(&sent, OfferDue{}, now).Reason)

	converted := r
	converted.ContactProvided, converted.ContactName, converted.ContactPhone = true, "Иван", "79991234567"
	converted.Status = StatusContactProvided
	assert.Equal(t, "contact_provided", m.Decide(&converted, OfferDue{}, now).Reason)

	assert.Equal(t, "not_found", m.Decide(nil, OfferDue{}, now).Reason)

	unsub := r
	unsub.Subscribed = false
	assert.Equal(t, "unsubscribed", m.Decide(&unsub, OfferDue{}, now).Reason)
}

func TestDecideWarmup(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	r := offered(t0)

	notDue := m.Decide(&r, WarmupDue{Stage: StageWarmup1, Threshold: 2 * time.Hour}, t0.Add(time.Hour))
	assert.Equal(t, "not_due", notDue.Reason)

	now := t0.Add(2 * time.Hour)
	d := m.Decide(&r, WarmupDue{Stage: StageWarmup1, Threshold: time.Hour}, now)
	require.Equal(t, ActionSendWarmup, d.Action)
	assert.True(t, d.Next.Warmup1Sent)
	assert.False(t, d.Next.Warmup2Sent)
	assert.Equal(t, StatusOfferSent, d.Next.Status)
	assert.Equal(t, now, d.Next.LastEventAt)
	require.NoError(t, ValidateTransition(r, d.Next))

	w1 := d.Next
	assert.Equal(t, "already_sent", m.Decide(&w1, WarmupDue{Stage: StageWarmup1, Threshold: time.Hour}, now.Add(time.Hour)).Reason)

	// Stage two is measured from the stage one send time.
	assert.Equal(t, "not_due", m.Decide(&w1, WarmupDue{Stage: StageWarmup2, Threshold: 3 * time.Hour}, t0.Add(4*time.Hour)).Reason)
	d2 := m.Decide(&w1, WarmupDue{Stage: StageWarmup2, Threshold: 3 * time.Hour}, now.Add(3*time.Hour))
	require.Equal(t, ActionSendWarmup, d2.Action)
	assert.Equal(t, StatusExhausted, d2.Next.Status)
	require.NoError(t, ValidateTransition(w1, d2.Next))

	done := d2.Next
	assert.Equal(t, "not_offered", m.Decide(&done, WarmupDue{Stage: StageWarmup1, Threshold: 0}, now.Add(10*time.Hour)).Reason)
}

func TestDecideVariantWithoutContactCapture(t *testing.T) {
	m := NewMachine(Policy{ContactCapture: false})
	r := NewRecord(7, Meta{}, t0)
	assert.Equal(t, ActionSkip, m.Decide(&r, OfferDue{}, t0).Action)

	o := offered(t0)
	assert.Equal(t, ActionSkip, m.Decide(&o, WarmupDue{Stage: StageWarmup1}, t0.Add(time.Hour)).Action)
	assert.Equal(t, ActionSkip, m.Decide(&o, TextReceived{Contact: contact.Extract("Иван +79991234567")}, t0).Action)
}

func TestDecideUnsubscribe(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	r := NewRecord(7, Meta{}, t0)
	d := m.Decide(&r, UnsubscribeRequested{}, t0)
	require.Equal(t, ActionUnsubscribe, d.Action)
	assert.False(t, d.Next.Subscribed)

	gone := d.Next
	assert.Equal(t, ActionAlreadyUnsubscribed, m.Decide(&gone, UnsubscribeRequested{}, t0).Action)
	assert.Equal(t, ActionSkip, m.Decide(nil, UnsubscribeRequested{}, t0).Action)
}

func TestValidateTransitionRejectsRegressions(t *testing.T) {
	r := offered(t0)
	r.Warmup1Sent = true

	back := r
	back.Warmup1Sent = false
	require.ErrorIs(t, ValidateTransition(r, back), ErrInvariant)

	earlier := r
	earlier.LastEventAt = t0.Add(-time.Second)
	require.ErrorIs(t, ValidateTransition(r, earlier), ErrInvariant)

	half := r
	half.ContactProvided, half.ContactName, half.Status = true, "Иван", StatusContactProvided
	require.ErrorIs(t, ValidateTransition(r, half), ErrInvariant)

	fresh := NewRecord(42, Meta{}, t0)
	early := fresh
	early.Warmup2Sent = true
	require.ErrorIs(t, ValidateTransition(fresh, early), ErrInvariant, "warm-up before offer")

	resub := fresh
	resub.Subscribed = false
	again := resub
	again.Subscribed = true
	require.ErrorIs(t, ValidateTransition(resub, again), ErrInvariant)
}

func TestStatusRoundTripThroughDriver(t *testing.T) {
	for _, st := range Statuses() {
		v, err := st.Value()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.Scan([]byte(v.(string))))
		assert.Equal(t, st, back)
	}
	_, err := StatusUnknown.Value()
	assert.Error(t, err)
	var s Status
	assert.Error(t, s.Scan("bogus"))
}
