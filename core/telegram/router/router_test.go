package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/funnelbot/core/telegram"
	"github.com/m3rciful/funnelbot/core/telegram/commands"
)

// newBot points an offline bot at a fake Bot API that counts calls.
func newBot(t *testing.T, calls *atomic.Int32) *tele.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/answerCallbackQuery") {
			calls.Add(1)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)
	b, err := tele.NewBot(tele.Settings{Offline: true, URL: srv.URL})
	require.NoError(t, err)
	return b
}

func textContext(b *tele.Bot, text string) tele.Context {
	return b.NewContext(tele.Update{
		ID: 10,
		Message: &tele.Message{
			Sender: &tele.User{ID: 5},
			Chat:   &tele.Chat{ID: 5, Type: tele.ChatPrivate},
			Text:   text,
		},
	})
}

func callbackContext(b *tele.Bot, data string) tele.Context {
	return b.NewContext(tele.Update{
		ID: 11,
		Callback: &tele.Callback{
			ID:     "cb",
			Sender: &tele.User{ID: 5},
			Data:   data,
		},
	})
}

func TestTextRoutesRunPublicCommandsByName(t *testing.T) {
	var help, stats, fallback int
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{
		Description: "help",
		Handler:     func(tele.Context) error { help++; return nil },
	}))
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{
		Description: "stats",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { stats++; return nil },
	}))
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	routes := TextRoutes(reg, TextOptions{})
	require.Len(t, routes, 2)
	b := newBot(t, new(atomic.Int32))

	require.NoError(t, routes[0].Handler(textContext(b, "help")))
	require.NoError(t, routes[0].Handler(textContext(b, "stats")))
	require.NoError(t, routes[0].Handler(textContext(b, "hello")))
	assert.Equal(t, 1, help)
	assert.Zero(t, stats, "admin commands are not reachable by plain text")
	assert.Equal(t, 2, fallback)
}

func TestContactRouteSkipsMessagesWithoutContact(t *testing.T) {
	var got int
	routes := TextRoutes(tg.NewRegistry(), TextOptions{Contact: func(tele.Context) error { got++; return nil }})
	b := newBot(t, new(atomic.Int32))

	require.NoError(t, routes[1].Handler(textContext(b, "no contact")))
	assert.Zero(t, got)

	c := b.NewContext(tele.Update{ID: 12, Message: &tele.Message{
		Sender:  &tele.User{ID: 5},
		Chat:    &tele.Chat{ID: 5, Type: tele.ChatPrivate},
		Contact: &tele.Contact{PhoneNumber: "+79990001122", UserID: 5},
	}})
	require.NoError(t, routes[1].Handler(c))
	assert.Equal(t, 1, got)
}

func TestCallbackRouteAnswersKnownKeys(t *testing.T) {
	var answered atomic.Int32
	var served int
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallback("offer", func(tele.Context) error { served++; return nil }))
	b := newBot(t, &answered)

	route := CallbackRoute(reg, CallbackOptions{})
	require.NoError(t, route.Handler(callbackContext(b, "\fofffer")))
	require.NoError(t, route.Handler(callbackContext(b, "\foffer|contact")))
	assert.Equal(t, 1, served)
	assert.Equal(t, int32(2), answered.Load(), "known and unknown keys are both answered once")
}

func TestCallbackRouteCustomNotFound(t *testing.T) {
	var missing int
	b := newBot(t, new(atomic.Int32))
	route := CallbackRoute(tg.NewRegistry(), CallbackOptions{
		NotFound: func(tele.Context) error { missing++; return nil },
	})
	require.NoError(t, route.Handler(callbackContext(b, "\fgone")))
	assert.Equal(t, 1, missing)
}

func TestCommandRoutesGateAdminCommands(t *testing.T) {
	var served, rejected int
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{
		Description: "stats",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { served++; return nil },
	}))
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       5,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	require.Len(t, routes, 1)
	b := newBot(t, new(atomic.Int32))

	require.NoError(t, routes[0].Handler(textContext(b, "/stats")))
	other := b.NewContext(tele.Update{ID: 13, Message: &tele.Message{
		Sender: &tele.User{ID: 6},
		Chat:   &tele.Chat{ID: 6, Type: tele.ChatPrivate},
		Text:   "/stats",
	}})
	require.NoError(t, routes[0].Handler(other))
	assert.Equal(t, 1, served)
	assert.Equal(t, 1, rejected)
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "store unavailable" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "TG_403", errorCode(&tele.Error{Code: 403, Description: "Forbidden"}))
	assert.Equal(t, "FLOOD", errorCode(tele.FloodError{RetryAfter: 5}))
	assert.Equal(t, "TIMEOUT", errorCode(context.DeadlineExceeded))
	assert.Equal(t, "STORE_UNAVAILABLE", errorCode(codedErr{}))
	assert.Equal(t, "INTERNAL", errorCode(errors.New("boom")))
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "broadcast_all", handlerName("/Broadcast All"))
	assert.Equal(t, "unknown", handlerName(" / "))
}
