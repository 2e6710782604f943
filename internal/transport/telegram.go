package transport

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/core/telegram/keyboard"
	"github.com/m3rciful/funnelbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

// TelegramOptions tune retries of transient network failures.
type TelegramOptions struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Telegram sends synchronously through a telebot bot. The bot is bound
// after construction because it only exists once the runtime starts.
type Telegram struct {
	bot  atomic.Pointer[tele.Bot]
	opts TelegramOptions
}

// NewTelegram returns an unbound sender.
func NewTelegram(opts TelegramOptions) *Telegram {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Telegram{opts: opts}
}

// Bind attaches the running bot.
func (t *Telegram) Bind(b *tele.Bot) {
	t.bot.Store(b)
}

var _ Sender = (*Telegram)(nil)

func (t *Telegram) SendText(ctx context.Context, userID int64, text string, markup *Markup) error {
	opts := &tele.SendOptions{ReplyMarkup: toReplyMarkup(markup)}
	return t.do(ctx, "send.text", userID, func(b *tele.Bot) error {
		_, err := b.Send(tele.ChatID(userID), text, opts)
		return err
	})
}

func (t *Telegram) SendDocument(ctx context.Context, userID int64, path, caption string) error {
	return t.do(ctx, "send.document", userID, func(b *tele.Bot) error {
		doc := &tele.Document{
			File:     tele.FromDisk(path),
			FileName: filepath.Base(path),
			Caption:  caption,
		}
		_, err := b.Send(tele.ChatID(userID), doc)
		return err
	})
}

func (t *Telegram) CopyMessage(ctx context.Context, userID, fromChatID int64, messageID int) error {
	src := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: fromChatID}
	return t.do(ctx, "send.copy", userID, func(b *tele.Bot) error {
		_, err := b.Copy(tele.ChatID(userID), src)
		return err
	})
}

func (t *Telegram) do(ctx context.Context, op string, userID int64, run func(*tele.Bot) error) error {
	b := t.bot.Load()
	if b == nil {
		return &Error{Op: op, UserID: userID, Err: ErrNotBound}
	}

	start := time.Now()
	attempts := t.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = run(b); err == nil {
			logger.Debug(ctx, component, op,
				slog.Int64("user_id", userID),
				slog.Int("attempts", attempt),
				slog.Duration("duration", logger.Took(start)),
			)
			return nil
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		backoff := t.opts.RetryBackoff * time.Duration(attempt)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	sendErr := &Error{Op: op, UserID: userID, Err: err}
	logger.Warn(ctx, component, op+".fail",
		slog.Int64("user_id", userID),
		slog.String("err", sendErr.Error()),
		slog.String("err_code", sendErr.Code()),
		slog.Duration("duration", logger.Took(start)),
	)
	return sendErr
}

func toReplyMarkup(m *Markup) *tele.ReplyMarkup {
	switch {
	case m == nil:
		return nil
	case len(m.Inline) > 0:
		btns := make([]keyboard.Button, len(m.Inline))
		for i, b := range m.Inline {
			btns[i] = keyboard.Button{Text: b.Text, Unique: b.Unique}
		}
		return keyboard.Column(btns...)
	case m.RequestContact != "":
		return keyboard.ShareContact(m.RequestContact)
	case m.RemoveKeyboard:
		return keyboard.Remove()
	}
	return nil
}
