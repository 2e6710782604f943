package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/funnelbot/core/telegram"
	"github.com/m3rciful/funnelbot/core/telegram/middleware"
)

// TextOptions configures text and contact routing.
type TextOptions struct {
	// UnknownText runs when the registry has no text fallback.
	UnknownText tele.HandlerFunc
	// Contact handles messages carrying a shared phone contact.
	Contact tele.HandlerFunc
}

// TextRoutes routes free text and shared contacts. Text equal to a public
// command name, with or without the slash, runs that command.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && !cmd.AdminOnly {
				return handle(c, handlerName(key), func() error { return cmd.Handler(c) })
			}
		}
		fallback := opts.UnknownText
		if reg != nil && reg.TextFallback() != nil {
			fallback = reg.TextFallback()
		}
		if fallback == nil {
			skip(c, "unknown_text", "no_handler")
			return nil
		}
		return handle(c, "fallback", func() error { return fallback(c) })
	}

	contact := func(c tele.Context) error {
		if msg := c.Message(); msg == nil || msg.Contact == nil || opts.Contact == nil {
			skip(c, "contact", "no_contact")
			return nil
		}
		return handle(c, "contact", func() error { return opts.Contact(c) })
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(middleware.MessageMetricsMiddleware(h)))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnContact, Handler: wrap(contact)},
	}
}
