// Package broadcast sends one message to many users, isolating per-recipient failures.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/internal/transport"
)

const component = "funnel.broadcast"

// ErrEmptyPayload is returned when there is nothing to send.
var ErrEmptyPayload = errors.New("broadcast: empty payload")

// Payload is either plain text or a reference to a message to copy verbatim.
type Payload struct {
	Text            string
	SourceChatID    int64
	SourceMessageID int
}

// IsCopy reports whether the payload references an existing message.
func (p Payload) IsCopy() bool {
	return p.SourceMessageID != 0
}

// Validate rejects payloads with neither text nor a source message.
func (p Payload) Validate() error {
	if p.Text == "" && !p.IsCopy() {
		return ErrEmptyPayload
	}
	return nil
}

// Tally counts the outcome of a broadcast.
type Tally struct {
	Total  int
	Sent   int
	Failed int
}

// Sender is the part of the transport a broadcast needs.
type Sender interface {
	SendText(ctx context.Context, userID int64, text string, markup *transport.Markup) error
	CopyMessage(ctx context.Context, userID, fromChatID int64, messageID int) error
}

// Options tune the dispatcher.
type Options struct {
	// Pause is slept between recipients to stay under platform rate limits.
	Pause time.Duration
}

// Dispatcher delivers broadcasts sequentially.
type Dispatcher struct {
	sender Sender
	opts   Options
}

// New returns a dispatcher over sender.
func New(sender Sender, opts Options) *Dispatcher {
	return &Dispatcher{sender: sender, opts: opts}
}

// Send delivers p to every id. A failed recipient is counted and logged and
// never stops the loop. Cancelling ctx stops early; the remaining recipients
// count as failed.
func (d *Dispatcher) Send(ctx context.Context, ids []int64, p Payload) (Tally, error) {
	tally := Tally{Total: len(ids)}
	if err := p.Validate(); err != nil {
		return tally, err
	}
	start := time.Now()

	for i, id := range ids {
		if ctx.Err() != nil {
			tally.Failed += len(ids) - i
			break
		}
		if err := d.deliver(ctx, id, p); err != nil {
			tally.Failed++
			logger.Warn(ctx, component, "broadcast.recipient_failed",
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
		} else {
			tally.Sent++
		}
		if d.opts.Pause > 0 && i < len(ids)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(d.opts.Pause):
			}
		}
	}

	logger.Info(ctx, component, "broadcast.done",
		slog.Int("recipients", tally.Total),
		slog.Int("sent", tally.Sent),
		slog.Int("failed", tally.Failed),
		slog.Bool("copy", p.IsCopy()),
		slog.Duration("duration", logger.Took(start)),
	)
	return tally, nil
}

func (d *Dispatcher) deliver(ctx context.Context, id int64, p Payload) error {
	if p.IsCopy() {
		return d.sender.CopyMessage(ctx, id, p.SourceChatID, p.SourceMessageID)
	}
	return d.sender.SendText(ctx, id, p.Text, nil)
}
