// Package warmup periodically advances users who went quiet after the offer.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/internal/funnel"
)

const component = "funnel.warmup"

// Source lists candidates for a stage.
type Source interface {
	DueForWarmup(ctx context.Context, stage funnel.Stage, cutoff time.Time) ([]int64, error)
}

// Advancer sends one warm-up after re-checking the record under its lock.
// It returns false when the record no longer qualifies.
type Advancer interface {
	AdvanceWarmup(ctx context.Context, userID int64, stage funnel.Stage, threshold time.Duration) (bool, error)
}

// Config holds the sweep cadence and per-stage thresholds.
type Config struct {
	Interval time.Duration
	Warmup1  time.Duration
	Warmup2  time.Duration
}

func (c Config) threshold(stage funnel.Stage) time.Duration {
	if stage == funnel.StageWarmup2 {
		return c.Warmup2
	}
	return c.Warmup1
}

// Report summarises one stage of a sweep.
type Report struct {
	Stage      funnel.Stage
	Candidates int
	Sent       int
	Skipped    int
	Failed     int
	Err        error
}

// Scanner runs sweeps on a fixed interval.
type Scanner struct {
	src Source
	adv Advancer
	cfg Config
	now func() time.Time
}

// New builds a scanner. now may be nil.
func New(src Source, adv Advancer, cfg Config, now func() time.Time) (*Scanner, error) {
	if src == nil || adv == nil {
		return nil, errors.New("warmup: source and advancer are required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("warmup: interval must be > 0, got %s", cfg.Interval)
	}
	if now == nil {
		now = time.Now
	}
	return &Scanner{src: src, adv: adv, cfg: cfg, now: now}, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
// A sweep in flight when ctx ends is allowed to finish.
func (s *Scanner) Run(ctx context.Context) error {
	logger.Info(ctx, component, "scanner.start",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("warmup1", s.cfg.Warmup1),
		slog.Duration("warmup2", s.cfg.Warmup2),
	)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.Sweep(context.WithoutCancel(ctx))
		select {
		case <-ctx.Done():
			logger.Info(ctx, component, "scanner.stop")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs stage 1 then stage 2 once. Stage errors are logged and do not
// stop the other stage.
func (s *Scanner) Sweep(ctx context.Context) []Report {
	ctx = logger.WithRID(ctx, logger.JobRID("sweep"))
	reports := make([]Report, 0, len(funnel.Stages()))
	for _, stage := range funnel.Stages() {
		reports = append(reports, s.sweepStage(ctx, stage))
	}
	return reports
}

func (s *Scanner) sweepStage(ctx context.Context, stage funnel.Stage) Report {
	rep := Report{Stage: stage}
	threshold := s.cfg.threshold(stage)
	start := time.Now()

	ids, err := s.src.DueForWarmup(ctx, stage, s.now().Add(-threshold))
	if err != nil {
		rep.Err = err
		logger.Error(ctx, component, "sweep.query_failed",
			slog.String("stage", stage.String()),
			slog.String("err", err.Error()),
		)
		return rep
	}
	rep.Candidates = len(ids)

	for _, id := range ids {
		userCtx := logger.WithUser(ctx, id)
		sent, err := s.adv.AdvanceWarmup(userCtx, id, stage, threshold)
		switch {
		case err != nil:
			rep.Failed++
			logger.Warn(userCtx, component, "sweep.advance_failed",
				slog.String("stage", stage.String()),
				slog.String("err", err.Error()),
			)
		case sent:
			rep.Sent++
		default:
			rep.Skipped++
		}
	}

	level := logger.Debug
	if rep.Candidates > 0 {
		level = logger.Info
	}
	level(ctx, component, "sweep.stage",
		slog.String("stage", stage.String()),
		slog.Int("count", rep.Candidates),
		slog.Int("sent", rep.Sent),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return rep
}
