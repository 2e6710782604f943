package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/funnelbot/internal/transport"
)

type call struct {
	userID    int64
	text      string
	fromChat  int64
	messageID int
}

type fakeSender struct {
	calls []call
	fail  map[int64]bool
}

func (f *fakeSender) SendText(_ context.Context, userID int64, text string, _ *transport.Markup) error {
	f.calls = append(f.calls, call{userID: userID, text: text})
	if f.fail[userID] {
		return &transport.Error{Op: "send.text", UserID: userID, Err: errors.New("blocked")}
	}
	return nil
}

func (f *fakeSender) CopyMessage(_ context.Context, userID, fromChatID int64, messageID int) error {
	f.calls = append(f.calls, call{userID: userID, fromChat: fromChatID, messageID: messageID})
	if f.fail[userID] {
		return errors.New("copy failed")
	}
	return nil
}

func TestSendIsolatesRecipientFailure(t *testing.T) {
	s := &fakeSender{fail: map[int64]bool{2: true}}
	d := New(s, Options{})

	tally, err := d.Send(context.Background(), []int64{1, 2, 3}, Payload{Text: "news"})
	require.NoError(t, err)
	assert.Equal(t, Tally{Total: 3, Sent: 2, Failed: 1}, tally)
	require.Len(t, s.calls, 3)
	assert.Equal(t, int64(3), s.calls[2].userID, "recipient after the failure still gets the message")
}

func TestSendCopiesMessage(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Options{})

	tally, err := d.Send(context.Background(), []int64{5}, Payload{SourceChatID: 100, SourceMessageID: 77})
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Sent)
	assert.Equal(t, call{userID: 5, fromChat: 100, messageID: 77}, s.calls[0])
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	d := New(&fakeSender{}, Options{})
	tally, err := d.Send(context.Background(), []int64{1}, Payload{})
	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.Equal(t, 0, tally.Sent)
}

func TestSendStopsOnCancel(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tally, err := d.Send(ctx, []int64{1, 2}, Payload{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, Tally{Total: 2, Failed: 2}, tally)
	assert.Empty(t, s.calls)
}

func TestSendEmptyAudience(t *testing.T) {
	tally, err := New(&fakeSender{}, Options{}).Send(context.Background(), nil, Payload{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, Tally{}, tally)
}
