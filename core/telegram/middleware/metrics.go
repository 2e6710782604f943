package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "reply_counters"

// replyCounters track replies of one update. Replies go through the async
// dispatcher, so the fields are updated from other goroutines.
type replyCounters struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// metricsContext counts Send and Reply calls made through the update context.
type metricsContext struct {
	tele.Context
	counters *replyCounters
}

func (m metricsContext) count(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	m.counters.messages.Add(1)
	if hasKeyboard(opts) {
		m.counters.keyboard.Store(true)
	}
	return nil
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

// MessageMetricsMiddleware counts replies so handler summaries can log
// "messages" and "kb".
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &replyCounters{}
		c.Set(countersKey, counters)
		return next(metricsContext{Context: c, counters: counters})
	}
}

// GetCounters returns the replies sent so far and whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	counters, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	return int(counters.messages.Load()), counters.keyboard.Load()
}
