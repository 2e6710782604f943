package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/core/telegram/netutil"
)

const (
	dialTimeout     = 5 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 30 * time.Second
	headerTimeout   = 5 * time.Second
	clientTimeout   = 30 * time.Second
	keepAlive       = 30 * time.Second

	transportRetries = 3
	transportBackoff = 2 * time.Second
)

// newHTTPClient returns the Bot API client. Header and overall timeouts
// are stretched past longPoll so idle getUpdates calls are not cut off.
func newHTTPClient(longPoll time.Duration) *http.Client {
	header := headerTimeout + longPoll
	return &http.Client{
		Timeout: max(clientTimeout, header+headerTimeout),
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       idleConnTimeout,
				TLSHandshakeTimeout:   tlsTimeout,
				ResponseHeaderTimeout: header,
				ExpectContinueTimeout: time.Second,
			},
			retries: transportRetries,
			backoff: transportBackoff,
		},
	}
}

// retryTransport repeats requests that failed before reaching Telegram.
// Requests whose body cannot be replayed are tried once.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; attempt <= t.retries && err != nil && netutil.ShouldRetry(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if waitErr := wait(req.Context(), t.backoff*time.Duration(attempt)); waitErr != nil {
			return nil, waitErr
		}
		logger.Debug(req.Context(), component, "http.retry",
			slog.String("endpoint", endpointOf(req)),
			slog.Int("attempt", attempt+1),
		)

		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			retry.Body = body
		}
		resp, err = t.base.RoundTrip(retry)
	}
	return resp, err
}

// endpointOf returns the Bot API method, keeping the token out of logs.
func endpointOf(req *http.Request) string {
	path := req.URL.Path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
