package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes SendText through d; nil makes sends synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// SendText replies to the current chat with plain text. With a dispatcher
// set the send is queued; a full or closed queue falls back to sending
// inline so the reply is not lost.
func SendText(c tele.Context, text string, opts ...interface{}) error {
	send := func() error { return c.Send(text, opts...) }
	d := dispatcher.Load()
	if d == nil {
		return send()
	}

	ctx := BuildContext(c)
	err := d.Enqueue(ctx, "send.text", "sendMessage", send)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback", slog.String("err", err.Error()))
		return send()
	}
	return err
}
