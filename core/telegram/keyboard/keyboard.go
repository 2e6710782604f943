// Package keyboard builds reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button. Unique is the callback key the registry
// routes on; Data travels after it as the payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Column stacks buttons one per row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, len(buttons))
	for i, b := range buttons {
		rows[i] = markup.Row(markup.Data(b.Text, b.Unique, b.Data))
	}
	markup.Inline(rows...)
	return markup
}

// ShareContact is a one-time reply keyboard with a single
// "share my phone number" button.
func ShareContact(label string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	markup.Reply(markup.Row(markup.Contact(label)))
	return markup
}

// Remove hides a reply keyboard shown earlier.
func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
