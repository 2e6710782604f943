// Package trigger runs one-shot actions a fixed delay after they are scheduled.
// Tasks live in process memory only: a restart drops whatever is pending.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/funnelbot/core/logger"
)

const component = "funnel.trigger"

// ErrClosed is returned by Schedule after Shutdown.
var ErrClosed = errors.New("trigger: engine closed")

// Action is the deferred work. Its error is logged and never retried.
type Action func(ctx context.Context) error

// Timer is the subset of *time.Timer the engine needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via Options.
type AfterFunc func(d time.Duration, f func()) Timer

// Options tune the engine.
type Options struct {
	AfterFunc AfterFunc
	Now       func() time.Time
}

// Task describes a pending trigger.
type Task struct {
	ID     uuid.UUID
	UserID int64
	Name   string
	Due    time.Time
}

type task struct {
	Task
	timer Timer
}

// Engine owns the pending timers.
type Engine struct {
	afterFunc AfterFunc
	now       func() time.Time

	mu      sync.Mutex
	tasks   map[uuid.UUID]*task
	closed  bool
	running sync.WaitGroup
}

// New builds an engine; zero Options use the wall clock.
func New(opts Options) *Engine {
	af := opts.AfterFunc
	if af == nil {
		af = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		afterFunc: af,
		now:       now,
		tasks:     make(map[uuid.UUID]*task),
	}
}

// Schedule arranges for action to run once, no earlier than delay from now.
// It never blocks on the action. The action receives ctx detached from its
// cancellation so request metadata survives the originating handler.
func (e *Engine) Schedule(ctx context.Context, userID int64, name string, delay time.Duration, action Action) (uuid.UUID, error) {
	if action == nil {
		return uuid.Nil, fmt.Errorf("trigger: nil action for %s", name)
	}
	if delay < 0 {
		delay = 0
	}
	id := uuid.New()
	base := context.WithoutCancel(ctx)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return uuid.Nil, ErrClosed
	}
	t := &task{Task: Task{ID: id, UserID: userID, Name: name, Due: e.now().Add(delay)}}
	e.tasks[id] = t
	// Held across afterFunc so a zero-delay fire cannot observe the map before the timer is stored.
	t.timer = e.afterFunc(delay, func() { e.fire(base, id, action) })
	e.mu.Unlock()

	logger.Debug(ctx, component, "trigger.scheduled",
		slog.String("trigger_id", id.String()),
		slog.Int64("user_id", userID),
		slog.String("op", name),
		slog.Duration("delay", delay),
	)
	return id, nil
}

func (e *Engine) fire(ctx context.Context, id uuid.UUID, action Action) {
	e.mu.Lock()
	t, ok := e.tasks[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}
	delete(e.tasks, id)
	e.running.Add(1)
	e.mu.Unlock()
	defer e.running.Done()
	ctx = logger.WithUser(ctx, t.UserID)

	attrs := []slog.Attr{
		slog.String("trigger_id", id.String()),
		slog.Int64("user_id", t.UserID),
		slog.String("op", t.Name),
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, component, "trigger.panic", append(attrs, slog.Any("panic", r))...)
		}
	}()

	start := time.Now()
	if err := action(ctx); err != nil {
		logger.Error(ctx, component, "trigger.failed", append(attrs,
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)...)
		return
	}
	logger.Debug(ctx, component, "trigger.fired", append(attrs,
		slog.Duration("duration", logger.Took(start)),
	)...)
}

// Cancel stops a pending trigger. It reports false when the trigger already
// fired, was cancelled, or never existed.
func (e *Engine) Cancel(id uuid.UUID) bool {
	e.mu.Lock()
	t, ok := e.tasks[id]
	if ok {
		delete(e.tasks, id)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	t.timer.Stop()
	return true
}

// Pending lists triggers that have not fired yet, earliest first.
func (e *Engine) Pending() []Task {
	e.mu.Lock()
	out := make([]Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, t.Task)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out
}

// Shutdown drops pending triggers and waits for running actions until ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	dropped := make([]*task, 0, len(e.tasks))
	for id, t := range e.tasks {
		dropped = append(dropped, t)
		delete(e.tasks, id)
	}
	e.mu.Unlock()

	for _, t := range dropped {
		t.timer.Stop()
		logger.Warn(ctx, component, "trigger.dropped",
			slog.String("trigger_id", t.ID.String()),
			slog.Int64("user_id", t.UserID),
			slog.String("op", t.Name),
			slog.Time("due", t.Due),
		)
	}

	done := make(chan struct{})
	go func() {
		e.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info(ctx, component, "trigger.shutdown", slog.Int("pending_count", len(dropped)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("trigger: shutdown: %w", ctx.Err())
	}
}
