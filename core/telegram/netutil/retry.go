// Package netutil classifies Bot API transport failures.
package netutil

import (
	"errors"
	"net"
	"syscall"
)

// ShouldRetry reports whether err proves the request never reached the
// Bot API: a failed dial or a refused connection. Timeouts and resets are
// not retried because Telegram may already have acted on the request, and
// Bot API errors are never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
