package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"routed", &tele.Callback{Unique: "offer_contact", Data: "42"}, "offer_contact", "42"},
		{"raw", &tele.Callback{Data: "\foffer_contact|42"}, "offer_contact", "42"},
		{"raw without payload", &tele.Callback{Data: "\foffer_contact"}, "offer_contact", ""},
		{"plain", &tele.Callback{Data: "offer_contact"}, "offer_contact", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := Parse(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}

func TestKey(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	assert.NoError(t, err)
	c := b.NewContext(tele.Update{Callback: &tele.Callback{Data: "\foffer_contact|1"}})
	assert.Equal(t, "offer_contact", Key(c))
	assert.Empty(t, Key(b.NewContext(tele.Update{Message: &tele.Message{Text: "hi"}})))
}
