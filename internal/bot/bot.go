// Package bot binds telegram updates to the funnel service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/funnelbot/core/logger"
	tg "github.com/m3rciful/funnelbot/core/telegram"
	"github.com/m3rciful/funnelbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/funnelbot/core/telegram/helpers"
	"github.com/m3rciful/funnelbot/core/telegram/router"
	"github.com/m3rciful/funnelbot/internal/broadcast"
	"github.com/m3rciful/funnelbot/internal/funnel"
	"github.com/m3rciful/funnelbot/internal/messages"
	"github.com/m3rciful/funnelbot/internal/service"
	"github.com/m3rciful/funnelbot/internal/store"
)

const component = "tg.bot"

// Funnel is the service surface the handlers use.
type Funnel interface {
	OnPlainText(ctx context.Context, userID int64, meta funnel.Meta, text string) (funnel.Action, error)
	OnContactPayload(ctx context.Context, userID int64, name, phone string) (funnel.Action, error)
	RequestContact(ctx context.Context, userID int64) error
	Unsubscribe(ctx context.Context, userID int64) (funnel.Action, error)
	BroadcastTo(ctx context.Context, audience store.Audience, ids []int64, p broadcast.Payload) (broadcast.Tally, error)
	Recipients(ctx context.Context, audience store.Audience) ([]int64, error)
	Stats(ctx context.Context) (store.Stats, error)
	Lookup(ctx context.Context, userID int64) (funnel.Record, bool, error)
	IsAdmin(userID int64) bool
}

var _ Funnel = (*service.Funnel)(nil)

// Replier sends handler replies to the current chat.
type Replier func(c tele.Context, text string) error

// Handlers holds the telegram entry points.
type Handlers struct {
	svc   Funnel
	texts *messages.Catalog
	reply Replier
}

// New builds handlers. A nil reply uses the shared async dispatcher.
func New(svc Funnel, texts *messages.Catalog, reply Replier) *Handlers {
	if texts == nil {
		texts = messages.MustCatalog()
	}
	if reply == nil {
		reply = func(c tele.Context, text string) error { return tghelpers.SendText(c, text) }
	}
	return &Handlers{svc: svc, texts: texts, reply: reply}
}

// broadcastCommands maps admin commands to their audiences.
var broadcastCommands = []struct {
	name     string
	audience store.Audience
	desc     string
}{
	{"/broadcast_all", store.AudienceAll, "Рассылка всем"},
	{"/broadcast_with_contact", store.AudienceWithContact, "Рассылка оставившим контакт"},
	{"/broadcast_no_contact", store.AudienceWithoutContact, "Рассылка без контакта"},
	{"/broadcast_subscribed", store.AudienceSubscribed, "Рассылка подписанным"},
}

// Register adds commands, the offer callback and the text fallback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	errs := []error{
		reg.RegisterCommand("/start", commands.Command{Handler: h.Start, Description: "Начать работу с ботом"}),
		reg.RegisterCommand("/help", commands.Command{Handler: h.Help, Description: "Помощь"}),
		reg.RegisterCommand("/id", commands.Command{Handler: h.Identity, Description: "Ваш статус"}),
		reg.RegisterCommand("/unsubscribe", commands.Command{Handler: h.Unsubscribe, Description: "Отписаться от рассылки"}),
		reg.RegisterCommand("/stats", commands.Command{Handler: h.Stats, Description: "Статистика воронки", AdminOnly: true}),
	}
	for _, bc := range broadcastCommands {
		errs = append(errs, reg.RegisterCommand(bc.name, commands.Command{
			Handler:     h.broadcastHandler(bc.name, bc.audience),
			Description: bc.desc,
			AdminOnly:   true,
		}))
	}
	errs = append(errs, reg.RegisterCallback(service.CallbackOfferContact, h.OfferContact))
	reg.SetTextFallback(h.Text)
	return errors.Join(errs...)
}

// Routes wires commands, callbacks, free text and shared contacts.
func (h *Handlers) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       adminID,
		OnAdminReject: h.NotAdmin,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{Contact: h.Contact})...)
	return routes
}

func (h *Handlers) render(tpl string, vars map[string]any) string {
	out, err := h.texts.Render(tpl, vars)
	if err != nil {
		logger.Warn(logger.Background(), component, "render.failed", slog.String("err", err.Error()))
	}
	return out
}

func meta(u *tele.User) funnel.Meta {
	if u == nil {
		return funnel.Meta{}
	}
	return funnel.Meta{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

// Start greets the user.
func (h *Handlers) Start(c tele.Context) error {
	first := ""
	if u := c.Sender(); u != nil {
		first = u.FirstName
	}
	return h.reply(c, h.render(h.texts.Start, map[string]any{"first_name": first}))
}

// Help lists the public commands.
func (h *Handlers) Help(c tele.Context) error {
	return h.reply(c, h.render(h.texts.Help, nil))
}

// NotAdmin answers admin commands from everyone else.
func (h *Handlers) NotAdmin(c tele.Context) error {
	return h.reply(c, h.render(h.texts.NotAdmin, nil))
}

// Identity shows the user id, admin flag and funnel status.
func (h *Handlers) Identity(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	u := c.Sender()
	if u == nil {
		return nil
	}
	rec, ok, err := h.svc.Lookup(ctx, u.ID)
	if err != nil {
		_ = h.reply(c, h.render(h.texts.InternalError, nil))
		return fmt.Errorf("bot: lookup %d: %w", u.ID, err)
	}
	username := u.Username
	if username == "" {
		username = "не указан"
	}
	vars := map[string]any{
		"user_id":    u.ID,
		"username":   username,
		"first_name": u.FirstName,
		"is_admin":   h.svc.IsAdmin(u.ID),
		"registered": ok,
	}
	if ok {
		vars["status"] = rec.Status.String()
		vars["contact_provided"] = rec.ContactProvided
		vars["subscribed"] = rec.Subscribed
	}
	return h.reply(c, h.render(h.texts.Identity, vars))
}

// Unsubscribe stops broadcasts for the sender.
func (h *Handlers) Unsubscribe(c tele.Context) error {
	_, err := h.svc.Unsubscribe(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	return err
}

// Stats renders the admin counters.
func (h *Handlers) Stats(c tele.Context) error {
	st, err := h.svc.Stats(tghelpers.BuildContext(c))
	if err != nil {
		_ = h.reply(c, h.render(h.texts.InternalError, nil))
		return fmt.Errorf("bot: stats: %w", err)
	}
	return h.reply(c, h.render(h.texts.Stats, statsVars(st)))
}

func statsVars(st store.Stats) map[string]any {
	rows := make([]map[string]any, 0, len(st.ByStatus))
	for _, s := range funnel.Statuses() {
		if n := st.ByStatus[s]; n > 0 {
			rows = append(rows, map[string]any{"status": s.String(), "count": n})
		}
	}
	return map[string]any{
		"total":           st.Total,
		"with_contact":    st.WithContact,
		"without_contact": st.WithoutContact,
		"subscribed":      st.Subscribed,
		"conversion":      fmt.Sprintf("%.1f", st.Conversion()),
		"by_status":       rows,
	}
}

// payloadFrom reads broadcast content: a reply-to message is copied as is,
// otherwise the command arguments are sent as text.
func payloadFrom(c tele.Context) broadcast.Payload {
	msg := c.Message()
	if msg == nil {
		return broadcast.Payload{}
	}
	if msg.ReplyTo != nil && msg.Chat != nil {
		return broadcast.Payload{SourceChatID: msg.Chat.ID, SourceMessageID: msg.ReplyTo.ID}
	}
	return broadcast.Payload{Text: strings.TrimSpace(msg.Payload)}
}

func (h *Handlers) broadcastHandler(name string, audience store.Audience) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		p := payloadFrom(c)
		if err := p.Validate(); err != nil {
			return h.reply(c, h.render(h.texts.BroadcastUsage, map[string]any{
				"command":  strings.TrimPrefix(name, "/"),
				"audience": audience.String(),
			}))
		}

		ids, err := h.svc.Recipients(ctx, audience)
		if err != nil {
			_ = h.reply(c, h.render(h.texts.InternalError, nil))
			return fmt.Errorf("bot: broadcast recipients: %w", err)
		}
		if len(ids) == 0 {
			return h.reply(c, h.render(h.texts.BroadcastEmpty, map[string]any{"audience": audience.String()}))
		}
		_ = h.reply(c, h.render(h.texts.BroadcastStarted, map[string]any{
			"total":    len(ids),
			"audience": audience.String(),
		}))

		tally, err := h.svc.BroadcastTo(context.WithoutCancel(ctx), audience, ids, p)
		if err != nil {
			_ = h.reply(c, h.render(h.texts.InternalError, nil))
			return fmt.Errorf("bot: broadcast %s: %w", audience, err)
		}
		return h.reply(c, h.render(h.texts.BroadcastDone, map[string]any{
			"sent":   tally.Sent,
			"failed": tally.Failed,
		}))
	}
}

// Text feeds free text to the funnel.
func (h *Handlers) Text(c tele.Context) error {
	_, err := h.svc.OnPlainText(tghelpers.BuildContext(c), tghelpers.SenderID(c), meta(c.Sender()), c.Text())
	return err
}

// Contact feeds a shared phone contact to the funnel. Only the sender's own
// contact is accepted.
func (h *Handlers) Contact(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Contact == nil {
		return nil
	}
	ct := msg.Contact
	uid := tghelpers.SenderID(c)
	if ct.UserID != 0 && ct.UserID != uid {
		logger.Info(tghelpers.BuildContext(c), component, "contact.foreign",
			slog.Int64("user_id", uid),
		)
		return nil
	}
	name := strings.TrimSpace(ct.FirstName + " " + ct.LastName)
	if name == "" && c.Sender() != nil {
		name = c.Sender().FirstName
	}
	_, err := h.svc.OnContactPayload(tghelpers.BuildContext(c), uid, name, ct.PhoneNumber)
	return err
}

// OfferContact answers the offer button.
func (h *Handlers) OfferContact(c tele.Context) error {
	return h.svc.RequestContact(tghelpers.BuildContext(c), tghelpers.SenderID(c))
}
