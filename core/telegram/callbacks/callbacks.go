// Package callbacks decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse returns the button key and payload of cb. Telebot fills Unique and
// strips the key from Data once it has routed the update; raw data keeps
// the "\f<unique>|<payload>" encoding.
func Parse(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	parts := strings.SplitN(raw, "|", 2)
	key = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		payload = parts[1]
	}
	return key, payload
}

// Key returns the callback key of the current update, or "" outside callbacks.
func Key(c tele.Context) string {
	key, _ := Parse(c.Callback())
	return key
}
