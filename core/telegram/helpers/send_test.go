package helpers

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/funnelbot/core/telegram/sender"
)

type sendRecorder struct {
	tele.Context
	sent atomic.Int32
}

func (r *sendRecorder) Send(interface{}, ...interface{}) error {
	r.sent.Add(1)
	return nil
}

func newRecorder(t *testing.T) *sendRecorder {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return &sendRecorder{Context: b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: 3},
		Chat:   &tele.Chat{ID: 3},
	}})}
}

func TestSendTextWithoutDispatcherIsSynchronous(t *testing.T) {
	SetDispatcher(nil)
	rec := newRecorder(t)
	require.NoError(t, SendText(rec, "hi"))
	assert.Equal(t, int32(1), rec.sent.Load())
}

func TestSendTextQueuesAndFallsBackAfterClose(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })

	rec := newRecorder(t)
	require.NoError(t, SendText(rec, "queued"))
	d.Close()
	assert.Equal(t, int32(1), rec.sent.Load())

	require.NoError(t, SendText(rec, "inline"))
	assert.Equal(t, int32(2), rec.sent.Load())
}
