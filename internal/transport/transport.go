// Package transport delivers funnel messages to chat users.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned before the bot is attached to the sender.
var ErrNotBound = errors.New("transport: bot not bound")

// Button is an inline button; Unique is the callback key.
type Button struct {
	Text   string
	Unique string
}

// Markup is the keyboard attached to an outgoing text.
type Markup struct {
	Inline []Button
	// RequestContact, when set, shows a reply keyboard with a single
	// share-contact button labelled with this text.
	RequestContact string
	RemoveKeyboard bool
}

// Sender is the outbound side of the chat platform.
type Sender interface {
	SendText(ctx context.Context, userID int64, text string, markup *Markup) error
	SendDocument(ctx context.Context, userID int64, path, caption string) error
	CopyMessage(ctx context.Context, userID, fromChatID int64, messageID int) error
}

// Error describes a failed delivery.
type Error struct {
	Op     string
	UserID int64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s to %d: %v", e.Op, e.UserID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code classifies the failure for logs.
func (e *Error) Code() string {
	switch {
	case errors.Is(e.Err, ErrNotBound):
		return "not_bound"
	case errors.Is(e.Err, os.ErrNotExist):
		return "file_missing"
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		return "cancelled"
	}
	var flood tele.FloodError
	if errors.As(e.Err, &flood) {
		return "flood"
	}
	var apiErr *tele.Error
	if errors.As(e.Err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden:
			return "blocked"
		case http.StatusBadRequest:
			return "bad_request"
		case http.StatusTooManyRequests:
			return "flood"
		}
	}
	return "send_failed"
}

// Permanent reports whether retrying the same delivery cannot succeed.
func (e *Error) Permanent() bool {
	switch e.Code() {
	case "blocked", "bad_request", "file_missing":
		return true
	}
	return false
}
