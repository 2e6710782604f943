package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/funnelbot/core/config"
)

// UpdateKind classifies c as one of the coreconfig.Update* kinds, or "other".
func UpdateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message == nil:
		return "other"
	case upd.Message.Contact != nil:
		return coreconfig.UpdateContact
	case strings.HasPrefix(upd.Message.Text, "/"):
		return coreconfig.UpdateCommand
	default:
		return coreconfig.UpdateMessage
	}
}
