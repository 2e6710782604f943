// Package messages holds user-facing texts. Every text is a Liquid template
// and may be overridden from the YAML config.
package messages

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// Texts lists every message the bot sends.
type Texts struct {
	Start               string `yaml:"start"`
	Help                string `yaml:"help"`
	WrongCodeWord       string `yaml:"wrong_code_word"`
	AlreadyReceived     string `yaml:"already_received"`
	Welcome             string `yaml:"welcome"`
	DocumentCaption     string `yaml:"document_caption"`
	DocumentMissing     string `yaml:"document_missing"`
	DocumentFailed      string `yaml:"document_failed"`
	Offer               string `yaml:"offer"`
	OfferButton         string `yaml:"offer_button"`
	ContactHint         string `yaml:"contact_hint"`
	ShareContactButton  string `yaml:"share_contact_button"`
	InvalidPhone        string `yaml:"invalid_phone"`
	ThankYou            string `yaml:"thank_you"`
	ContactKnown        string `yaml:"contact_known"`
	Warmup1             string `yaml:"warmup1"`
	Warmup2             string `yaml:"warmup2"`
	AdminNotification   string `yaml:"admin_notification"`
	Unsubscribed        string `yaml:"unsubscribed"`
	AlreadyUnsubscribed string `yaml:"already_unsubscribed"`
	NotRegistered       string `yaml:"not_registered"`
	NotAdmin            string `yaml:"not_admin"`
	Identity            string `yaml:"identity"`
	Stats               string `yaml:"stats"`
	BroadcastUsage      string `yaml:"broadcast_usage"`
	BroadcastEmpty      string `yaml:"broadcast_empty"`
	BroadcastStarted    string `yaml:"broadcast_started"`
	BroadcastDone       string `yaml:"broadcast_done"`
	InternalError       string `yaml:"internal_error"`
}

func (t *Texts) fields() map[string]*string {
	return map[string]*string{
		"start":                &t.Start,
		"help":                 &t.Help,
		"wrong_code_word":      &t.WrongCodeWord,
		"already_received":     &t.AlreadyReceived,
		"welcome":              &t.Welcome,
		"document_caption":     &t.DocumentCaption,
		"document_missing":     &t.DocumentMissing,
		"document_failed":      &t.DocumentFailed,
		"offer":                &t.Offer,
		"offer_button":         &t.OfferButton,
		"contact_hint":         &t.ContactHint,
		"share_contact_button": &t.ShareContactButton,
		"invalid_phone":        &t.InvalidPhone,
		"thank_you":            &t.ThankYou,
		"contact_known":        &t.ContactKnown,
		"warmup1":              &t.Warmup1,
		"warmup2":              &t.Warmup2,
		"admin_notification":   &t.AdminNotification,
		"unsubscribed":         &t.Unsubscribed,
		"already_unsubscribed": &t.AlreadyUnsubscribed,
		"not_registered":       &t.NotRegistered,
		"not_admin":            &t.NotAdmin,
		"identity":             &t.Identity,
		"stats":                &t.Stats,
		"broadcast_usage":      &t.BroadcastUsage,
		"broadcast_empty":      &t.BroadcastEmpty,
		"broadcast_started":    &t.BroadcastStarted,
		"broadcast_done":       &t.BroadcastDone,
		"internal_error":       &t.InternalError,
	}
}

// WithDefaults fills every empty text from Default.
func (t Texts) WithDefaults() Texts {
	def := Default()
	defFields := def.fields()
	for name, ptr := range t.fields() {
		if *ptr == "" {
			*ptr = *defFields[name]
		}
	}
	return t
}

// Catalog renders texts and caches parsed templates.
type Catalog struct {
	Texts
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewCatalog parses every text up front so a broken override fails at startup.
func NewCatalog(t Texts) (*Catalog, error) {
	c := &Catalog{Texts: t.WithDefaults(), engine: liquid.NewEngine()}
	for name, ptr := range c.Texts.fields() {
		if _, err := c.parse(*ptr); err != nil {
			return nil, fmt.Errorf("messages: %s: %w", name, err)
		}
	}
	return c, nil
}

// MustCatalog is NewCatalog for the built-in texts.
func MustCatalog() *Catalog {
	c, err := NewCatalog(Texts{})
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) parse(src string) (*liquid.Template, error) {
	if cached, ok := c.cache.Load(src); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := c.engine.ParseString(src)
	if err != nil {
		return nil, err
	}
	c.cache.Store(src, tpl)
	return tpl, nil
}

// Render executes tpl with vars. On failure the raw template is returned
// together with the error so callers can still send something readable.
func (c *Catalog) Render(tpl string, vars map[string]any) (string, error) {
	t, err := c.parse(tpl)
	if err != nil {
		return tpl, err
	}
	out, rerr := t.RenderString(vars)
	if rerr != nil {
		return tpl, rerr
	}
	return out, nil
}
