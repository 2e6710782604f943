package transport

import (
	"context"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
		perm bool
	}{
		{ErrNotBound, "not_bound", false},
		{fmt.Errorf("open: %w", fs.ErrNotExist), "file_missing", true},
		{context.DeadlineExceeded, "cancelled", false},
		{tele.ErrBlockedByUser, "blocked", true},
		{tele.NewError(400, "telegram: Bad Request: chat not found"), "bad_request", true},
		{fmt.Errorf("boom"), "send_failed", false},
	}
	for _, tc := range cases {
		e := &Error{Op: "send.text", UserID: 7, Err: tc.err}
		assert.Equal(t, tc.code, e.Code(), tc.err.Error())
		assert.Equal(t, tc.perm, e.Permanent(), tc.err.Error())
		assert.ErrorIs(t, e, tc.err)
	}
}

func TestUnboundSenderFails(t *testing.T) {
	s := NewTelegram(TelegramOptions{})
	err := s.SendText(context.Background(), 7, "hi", nil)

	var sendErr *Error
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "send.text", sendErr.Op)
	assert.Equal(t, int64(7), sendErr.UserID)
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestToReplyMarkup(t *testing.T) {
	assert.Nil(t, toReplyMarkup(nil))
	assert.Nil(t, toReplyMarkup(&Markup{}))

	inline := toReplyMarkup(&Markup{Inline: []Button{{Text: "Оставить заявку", Unique: "offer_contact"}}})
	require.Len(t, inline.InlineKeyboard, 1)
	assert.Equal(t, "Оставить заявку", inline.InlineKeyboard[0][0].Text)
	assert.Equal(t, "offer_contact", inline.InlineKeyboard[0][0].Unique)

	share := toReplyMarkup(&Markup{RequestContact: "Поделиться контактом"})
	require.Len(t, share.ReplyKeyboard, 1)
	assert.True(t, share.ReplyKeyboard[0][0].Contact)
	assert.True(t, share.OneTimeKeyboard)

	assert.True(t, toReplyMarkup(&Markup{RemoveKeyboard: true}).RemoveKeyboard)
}
