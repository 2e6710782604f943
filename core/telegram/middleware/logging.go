package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/funnelbot/core/telegram/helpers"
)

// seenUpdates remembers recently logged update ids so the receipt line is
// written once even when the middleware wraps several routes.
type seenUpdates struct {
	mu   sync.Mutex
	ids  map[int]time.Time
	keep time.Duration
}

var received = &seenUpdates{ids: make(map[int]time.Time), keep: 10 * time.Second}

func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for old, ts := range s.ids {
		if now.Sub(ts) > s.keep {
			delete(s.ids, old)
		}
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = now
	return true
}

// LoggerMiddleware attaches the request context and logs one sampled debug
// line per update. Free text and shared contacts carry names and phone
// numbers, so only their length is logged; commands and callback keys are
// logged verbatim.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()
		if !logger.ShouldSampleDebug() || !received.first(upd.ID, time.Now()) {
			return next(c)
		}

		kind := UpdateKind(c)
		attrs := []slog.Attr{slog.String("status", "ok"), slog.String("op", kind)}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil {
			attrs = append(attrs,
				slog.String("username", logger.SanitizeLimit(user.Username, 64)),
				slog.String("lang", user.LanguageCode),
			)
		}
		switch kind {
		case "callback":
			key, payload := callbacks.Parse(upd.Callback)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(key, 128)),
				slog.String("payload", logger.SanitizeLimit(payload, 256)),
			)
		case "command":
			cmd, _, _ := strings.Cut(c.Text(), " ")
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(cmd, 64)))
		case "message":
			attrs = append(attrs, slog.Int("count", len([]rune(c.Text()))))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}
