package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/funnelbot/core/logger"
	tghelpers "github.com/m3rciful/funnelbot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware. Exclude holds
// UpdateKind values that bypass the limit.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// lastSeen tracks when each user last got through. Entries idle for
// evictAfter intervals are dropped lazily.
type lastSeen struct {
	mu        sync.Mutex
	interval  time.Duration
	seen      map[int64]time.Time
	lastSweep time.Time
}

const evictAfter = 100

// allow records now for userID unless the previous pass was too recent.
func (l *lastSeen) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ttl := l.interval * evictAfter; now.Sub(l.lastSweep) > ttl {
		for id, ts := range l.seen {
			if now.Sub(ts) > ttl {
				delete(l.seen, id)
			}
		}
		l.lastSweep = now
	}
	if prev, ok := l.seen[userID]; ok && now.Sub(prev) < l.interval {
		return false
	}
	l.seen[userID] = now
	return true
}

// RateLimitMiddleware drops updates that arrive within Interval of the
// same user's previous one. Dropped updates go to OnLimited, if set.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiter := &lastSeen{interval: opts.Interval, seen: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c)
			if _, skip := opts.Exclude[kind]; skip || limiter.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("op", kind),
			)
			if opts.OnLimited == nil {
				return nil
			}
			return opts.OnLimited(c)
		}
	}
}
