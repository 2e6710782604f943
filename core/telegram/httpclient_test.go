package telegram

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/funnelbot/core/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHTTPClientOutlastsLongPoll(t *testing.T) {
	c := newHTTPClient(50 * time.Second)
	rt, ok := c.Transport.(*retryTransport)
	require.True(t, ok)
	tr, ok := rt.base.(*http.Transport)
	require.True(t, ok)
	assert.Greater(t, tr.ResponseHeaderTimeout, 50*time.Second)
	assert.Greater(t, c.Timeout, tr.ResponseHeaderTimeout)

	assert.Equal(t, clientTimeout, newHTTPClient(0).Timeout)
}

func TestRetryTransportRetriesDialErrors(t *testing.T) {
	var calls atomic.Int32
	rt := &retryTransport{
		retries: 2,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			if calls.Add(1) < 3 {
				return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
			}
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
	}
	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	rt := &retryTransport{
		retries: 3,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("tls: bad certificate")
		}),
	}
	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

type headerTimeoutErr struct{}

func (headerTimeoutErr) Error() string   { return "net/http: timeout awaiting response headers" }
func (headerTimeoutErr) Timeout() bool   { return true }
func (headerTimeoutErr) Temporary() bool { return true }

func TestRetryTransportDoesNotRepeatLateRequests(t *testing.T) {
	var calls atomic.Int32
	rt := &retryTransport{
		retries: 3,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, headerTimeoutErr{}
		}),
	}
	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEndpointOfHidesToken(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/bot123:secret/getUpdates", nil)
	require.NoError(t, err)
	assert.Equal(t, "getUpdates", endpointOf(req))
}

func TestPollerFollowsRunMode(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	assert.Equal(t, defaultLongPoll, longPollTimeout(cfg))
	cfg.Telegram.LongPollTimeoutSeconds = 25
	assert.Equal(t, 25*time.Second, longPollTimeout(cfg))

	lp, ok := newPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, []string{"message", "callback_query"}, lp.AllowedUpdates)

	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook"}
	assert.Zero(t, longPollTimeout(cfg))
	wh, ok := newPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.com/hook", wh.Endpoint.PublicURL)
}
