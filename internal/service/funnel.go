// Package service runs the funnel: it feeds inbound events to the state
// machine, persists the outcome and performs the requested deliveries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/internal/broadcast"
	"github.com/m3rciful/funnelbot/internal/contact"
	"github.com/m3rciful/funnelbot/internal/funnel"
	"github.com/m3rciful/funnelbot/internal/messages"
	"github.com/m3rciful/funnelbot/internal/store"
	"github.com/m3rciful/funnelbot/internal/transport"
	"github.com/m3rciful/funnelbot/internal/trigger"
)

const component = "funnel.service"

// CallbackOfferContact is the inline button key attached to the offer.
const CallbackOfferContact = "offer_contact"

// ErrDocumentMissing means the configured document is not readable.
var ErrDocumentMissing = errors.New("service: document missing")

// errNoChange aborts a store update whose decision does not mutate.
var errNoChange = errors.New("service: no change")

// Config carries the funnel parameters.
type Config struct {
	CodeWord      string
	DocumentPath  string
	OfferDelay    time.Duration
	AdminID       int64
	AdminUsername string
	Policy        funnel.Policy
}

// Scheduler is the delayed trigger engine as seen by the service.
type Scheduler interface {
	Schedule(ctx context.Context, userID int64, name string, delay time.Duration, action trigger.Action) (uuid.UUID, error)
}

// Deps are the collaborators of Funnel.
type Deps struct {
	Store       store.Store
	Sender      transport.Sender
	Texts       *messages.Catalog
	Triggers    Scheduler
	Broadcaster *broadcast.Dispatcher
	Now         func() time.Time
	// StatFile checks the document before registration; os.Stat by default.
	StatFile func(path string) (os.FileInfo, error)
}

// Funnel implements the caller-facing funnel operations.
type Funnel struct {
	cfg         Config
	store       store.Store
	sender      transport.Sender
	texts       *messages.Catalog
	triggers    Scheduler
	broadcaster *broadcast.Dispatcher
	machine     funnel.Machine
	locks       *keyedMutex
	now         func() time.Time
	statFile    func(string) (os.FileInfo, error)
}

// New validates deps and builds the service.
func New(cfg Config, deps Deps) (*Funnel, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("service: store is required")
	case deps.Sender == nil:
		return nil, errors.New("service: sender is required")
	case deps.Triggers == nil:
		return nil, errors.New("service: trigger scheduler is required")
	case strings.TrimSpace(cfg.CodeWord) == "":
		return nil, errors.New("service: code word is required")
	}
	texts := deps.Texts
	if texts == nil {
		texts = messages.MustCatalog()
	}
	b := deps.Broadcaster
	if b == nil {
		b = broadcast.New(deps.Sender, broadcast.Options{})
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	stat := deps.StatFile
	if stat == nil {
		stat = os.Stat
	}
	return &Funnel{
		cfg:         cfg,
		store:       deps.Store,
		sender:      deps.Sender,
		texts:       texts,
		triggers:    deps.Triggers,
		broadcaster: b,
		machine:     funnel.NewMachine(cfg.Policy),
		locks:       newKeyedMutex(),
		now:         now,
		statFile:    stat,
	}, nil
}

// IsCodeWord compares text with the configured code word, ignoring case and
// surrounding whitespace.
func (f *Funnel) IsCodeWord(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(f.cfg.CodeWord))
}

// IsAdmin reports whether userID is the configured admin.
func (f *Funnel) IsAdmin(userID int64) bool {
	return f.cfg.AdminID != 0 && userID == f.cfg.AdminID
}

// OnCodeWord registers the user and delivers the document. Registration is
// rolled back when the document cannot be delivered, so the next code word
// retries from scratch.
func (f *Funnel) OnCodeWord(ctx context.Context, userID int64, meta funnel.Meta) (funnel.Action, error) {
	unlock := f.locks.Lock(userID)
	defer unlock()

	cur, err := f.lookup(ctx, userID)
	if err != nil {
		return funnel.ActionSkip, err
	}
	d := f.machine.Decide(cur, funnel.CodeWordEntered{UserID: userID, Meta: meta}, f.now())
	if d.Action == funnel.ActionAlreadyReceived {
		return d.Action, f.reply(ctx, userID, f.texts.AlreadyReceived, f.adminVars(), nil)
	}

	if _, err := f.statFile(f.cfg.DocumentPath); err != nil {
		logger.Error(ctx, component, "register.document_missing",
			slog.Int64("user_id", userID),
			slog.String("path", f.cfg.DocumentPath),
			slog.String("err", err.Error()),
		)
		_ = f.reply(ctx, userID, f.texts.DocumentMissing, nil, nil)
		return funnel.ActionSkip, fmt.Errorf("%w: %s", ErrDocumentMissing, f.cfg.DocumentPath)
	}

	created, err := f.store.Create(ctx, d.Next)
	if err != nil {
		return funnel.ActionSkip, err
	}
	if !created {
		return funnel.ActionAlreadyReceived, f.reply(ctx, userID, f.texts.AlreadyReceived, f.adminVars(), nil)
	}

	_ = f.reply(ctx, userID, f.texts.Welcome, map[string]any{"first_name": meta.FirstName}, nil)
	caption, _ := f.texts.Render(f.texts.DocumentCaption, nil)
	if err := f.sender.SendDocument(ctx, userID, f.cfg.DocumentPath, caption); err != nil {
		if rmErr := f.store.Remove(ctx, userID); rmErr != nil {
			logger.Error(ctx, component, "register.rollback_failed",
				slog.Int64("user_id", userID),
				slog.String("err", rmErr.Error()),
			)
		}
		_ = f.reply(ctx, userID, f.texts.DocumentFailed, nil, nil)
		return funnel.ActionSkip, fmt.Errorf("service: deliver document to %d: %w", userID, err)
	}

	logger.Info(ctx, component, "register.ok",
		slog.Int64("user_id", userID),
		slog.String("username", meta.Username),
	)

	if f.cfg.Policy.ContactCapture {
		if err := f.ScheduleOffer(ctx, userID); err != nil {
			logger.Error(ctx, component, "offer.schedule_failed",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	}
	return funnel.ActionRegister, nil
}

// OnPlainText handles any non-command text: the code word, a contact or noise.
func (f *Funnel) OnPlainText(ctx context.Context, userID int64, meta funnel.Meta, text string) (funnel.Action, error) {
	if f.IsCodeWord(text) {
		return f.OnCodeWord(ctx, userID, meta)
	}
	return f.onContactEvent(ctx, userID, funnel.TextReceived{Contact: contact.Extract(text)})
}

// OnContactPayload handles a structured contact shared through the platform.
func (f *Funnel) OnContactPayload(ctx context.Context, userID int64, name, phone string) (funnel.Action, error) {
	return f.onContactEvent(ctx, userID, funnel.ContactShared{Contact: contact.FromPayload(name, phone)})
}

func (f *Funnel) onContactEvent(ctx context.Context, userID int64, ev funnel.Event) (funnel.Action, error) {
	unlock := f.locks.Lock(userID)
	defer unlock()

	d, err := f.advance(ctx, userID, ev)
	if err != nil {
		return funnel.ActionSkip, err
	}

	switch d.Action {
	case funnel.ActionRejectCodeWord:
		return d.Action, f.reply(ctx, userID, f.texts.WrongCodeWord, nil, nil)
	case funnel.ActionInvalidPhone:
		return d.Action, f.reply(ctx, userID, f.texts.InvalidPhone, nil, nil)
	case funnel.ActionContactHint:
		return d.Action, f.sendContactHint(ctx, userID)
	case funnel.ActionContactKnown:
		return d.Action, f.reply(ctx, userID, f.texts.ContactKnown, nil, nil)
	case funnel.ActionAcceptContact:
		logger.Info(ctx, component, "contact.accepted",
			slog.Int64("user_id", userID),
			slog.String("phone", d.Next.ContactPhone),
		)
		_ = f.reply(ctx, userID, f.texts.ThankYou, map[string]any{"name": d.Next.ContactName}, &transport.Markup{RemoveKeyboard: true})
		f.notifyAdmin(ctx, d.Next)
		return d.Action, nil
	}
	logger.Debug(ctx, component, "contact.skip",
		slog.Int64("user_id", userID),
		slog.String("cause", d.Reason),
	)
	return d.Action, nil
}

// RequestContact answers the offer button with the contact hint while the
// user still has no contact on file.
func (f *Funnel) RequestContact(ctx context.Context, userID int64) error {
	cur, err := f.lookup(ctx, userID)
	if err != nil {
		return err
	}
	switch {
	case cur == nil:
		return f.reply(ctx, userID, f.texts.NotRegistered, nil, nil)
	case cur.ContactProvided:
		return f.reply(ctx, userID, f.texts.ContactKnown, nil, nil)
	}
	return f.sendContactHint(ctx, userID)
}

func (f *Funnel) sendContactHint(ctx context.Context, userID int64) error {
	return f.reply(ctx, userID, f.texts.ContactHint, nil, &transport.Markup{RequestContact: f.texts.ShareContactButton})
}

// ScheduleOffer arms the one-shot offer trigger for userID.
func (f *Funnel) ScheduleOffer(ctx context.Context, userID int64) error {
	_, err := f.triggers.Schedule(ctx, userID, "offer", f.cfg.OfferDelay, func(ctx context.Context) error {
		return f.FireOffer(ctx, userID)
	})
	return err
}

// FireOffer re-reads the record and sends the offer unless the user converted
// or was already offered in the meantime. A failed send leaves the record
// untouched and is not retried.
func (f *Funnel) FireOffer(ctx context.Context, userID int64) error {
	unlock := f.locks.Lock(userID)
	defer unlock()

	cur, err := f.lookup(ctx, userID)
	if err != nil {
		return err
	}
	d := f.machine.Decide(cur, funnel.OfferDue{}, f.now())
	if d.Action != funnel.ActionSendOffer {
		logger.Info(ctx, component, "offer.suppressed",
			slog.Int64("user_id", userID),
			slog.String("cause", d.Reason),
		)
		return nil
	}

	markup := &transport.Markup{Inline: []transport.Button{{Text: f.texts.OfferButton, Unique: CallbackOfferContact}}}
	if err := f.reply(ctx, userID, f.texts.Offer, nil, markup); err != nil {
		return err
	}
	if _, err := f.advance(ctx, userID, funnel.OfferDue{}); err != nil {
		return err
	}
	logger.Info(ctx, component, "offer.sent", slog.Int64("user_id", userID))
	return nil
}

// AdvanceWarmup sends the stage's warm-up to userID if the record still
// qualifies, then marks it. It reports whether a message went out.
func (f *Funnel) AdvanceWarmup(ctx context.Context, userID int64, stage funnel.Stage, threshold time.Duration) (bool, error) {
	unlock := f.locks.Lock(userID)
	defer unlock()

	ev := funnel.WarmupDue{Stage: stage, Threshold: threshold}
	cur, err := f.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	d := f.machine.Decide(cur, ev, f.now())
	if d.Action != funnel.ActionSendWarmup {
		logger.Debug(ctx, component, "warmup.skip",
			slog.Int64("user_id", userID),
			slog.String("stage", stage.String()),
			slog.String("cause", d.Reason),
		)
		return false, nil
	}

	text := f.texts.Warmup1
	if stage == funnel.StageWarmup2 {
		text = f.texts.Warmup2
	}
	if err := f.reply(ctx, userID, text, nil, nil); err != nil {
		return false, err
	}
	if _, err := f.advance(ctx, userID, ev); err != nil {
		return true, err
	}
	logger.Info(ctx, component, "warmup.sent",
		slog.Int64("user_id", userID),
		slog.String("stage", stage.String()),
	)
	return true, nil
}

// Unsubscribe sets the terminal opt-out flag.
func (f *Funnel) Unsubscribe(ctx context.Context, userID int64) (funnel.Action, error) {
	unlock := f.locks.Lock(userID)
	defer unlock()

	d, err := f.advance(ctx, userID, funnel.UnsubscribeRequested{})
	if err != nil {
		return funnel.ActionSkip, err
	}
	switch d.Action {
	case funnel.ActionUnsubscribe:
		logger.Info(ctx, component, "unsubscribe.ok", slog.Int64("user_id", userID))
		return d.Action, f.reply(ctx, userID, f.texts.Unsubscribed, nil, nil)
	case funnel.ActionAlreadyUnsubscribed:
		return d.Action, f.reply(ctx, userID, f.texts.AlreadyUnsubscribed, nil, nil)
	}
	return d.Action, f.reply(ctx, userID, f.texts.NotRegistered, nil, nil)
}

// Broadcast sends p to the audience.
func (f *Funnel) Broadcast(ctx context.Context, audience store.Audience, p broadcast.Payload) (broadcast.Tally, error) {
	ids, err := f.store.Recipients(ctx, audience)
	if err != nil {
		return broadcast.Tally{}, err
	}
	return f.BroadcastTo(ctx, audience, ids, p)
}

// BroadcastTo sends p to a recipient list the caller already fetched, so the
// announced total and the tally agree.
func (f *Funnel) BroadcastTo(ctx context.Context, audience store.Audience, ids []int64, p broadcast.Payload) (broadcast.Tally, error) {
	logger.Info(ctx, component, "broadcast.start",
		slog.String("audience", audience.String()),
		slog.Int("recipients", len(ids)),
	)
	return f.broadcaster.Send(ctx, ids, p)
}

// Recipients exposes the audience size for progress messages.
func (f *Funnel) Recipients(ctx context.Context, audience store.Audience) ([]int64, error) {
	return f.store.Recipients(ctx, audience)
}

// Stats returns the admin counters.
func (f *Funnel) Stats(ctx context.Context) (store.Stats, error) {
	return f.store.Stats(ctx)
}

// Lookup returns the record of userID, or ok=false when there is none.
func (f *Funnel) Lookup(ctx context.Context, userID int64) (funnel.Record, bool, error) {
	cur, err := f.lookup(ctx, userID)
	if err != nil || cur == nil {
		return funnel.Record{}, false, err
	}
	return *cur, true, nil
}

// Texts exposes the message catalog to the command layer.
func (f *Funnel) Texts() *messages.Catalog {
	return f.texts
}

func (f *Funnel) lookup(ctx context.Context, userID int64) (*funnel.Record, error) {
	rec, err := f.store.Get(ctx, userID)
	if errors.Is(err, funnel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// advance decides ev against the row locked by the store and persists the
// result. Unknown users are decided with a nil record.
func (f *Funnel) advance(ctx context.Context, userID int64, ev funnel.Event) (funnel.Decision, error) {
	var d funnel.Decision
	_, err := f.store.Update(ctx, userID, func(r *funnel.Record) error {
		d = f.machine.Decide(r, ev, f.now())
		if !d.Mutates {
			return errNoChange
		}
		*r = d.Next
		return nil
	})
	switch {
	case err == nil, errors.Is(err, errNoChange):
		return d, nil
	case errors.Is(err, funnel.ErrNotFound):
		return f.machine.Decide(nil, ev, f.now()), nil
	}
	return d, err
}

func (f *Funnel) reply(ctx context.Context, userID int64, tpl string, vars map[string]any, markup *transport.Markup) error {
	text, err := f.texts.Render(tpl, vars)
	if err != nil {
		logger.Warn(ctx, component, "render.failed", slog.String("err", err.Error()))
	}
	return f.sender.SendText(ctx, userID, text, markup)
}

func (f *Funnel) adminVars() map[string]any {
	return map[string]any{"admin_username": strings.TrimPrefix(f.cfg.AdminUsername, "@")}
}

func (f *Funnel) notifyAdmin(ctx context.Context, rec funnel.Record) {
	if f.cfg.AdminID == 0 {
		return
	}
	username := rec.Username
	if username == "" {
		username = "не указан"
	}
	err := f.reply(ctx, f.cfg.AdminID, f.texts.AdminNotification, map[string]any{
		"name":     rec.ContactName,
		"phone":    rec.ContactPhone,
		"user_id":  rec.UserID,
		"username": username,
		"date":     f.now().Format("02.01.2006 15:04"),
	}, nil)
	if err != nil {
		logger.Error(ctx, component, "admin.notify_failed",
			slog.Int64("user_id", rec.UserID),
			slog.String("err", err.Error()),
		)
	}
}
