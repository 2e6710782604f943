package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/funnelbot/core/logger"
)

const contextKey = "logger_ctx"

// BuildContext returns the logging context of the update, creating and
// caching it on first use. It carries the rid and the update, user and chat
// ids, so service calls made with it log them without extra attrs.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx
	}
	userID, chatID := SenderID(c), int64(0)
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	c.Set(contextKey, ctx)
	return ctx
}

// WithHandler adds the handler name to the cached context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(contextKey, ctx)
	return ctx
}

// SenderID returns the id of the update author, or 0.
func SenderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
