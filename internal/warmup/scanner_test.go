package warmup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/funnelbot/internal/funnel"
)

type fakeSource struct {
	mu      sync.Mutex
	due     map[funnel.Stage][]int64
	err     map[funnel.Stage]error
	cutoffs map[funnel.Stage]time.Time
	calls   int
}

func (f *fakeSource) DueForWarmup(_ context.Context, stage funnel.Stage, cutoff time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.cutoffs == nil {
		f.cutoffs = map[funnel.Stage]time.Time{}
	}
	f.cutoffs[stage] = cutoff
	return f.due[stage], f.err[stage]
}

type advanceCall struct {
	userID    int64
	stage     funnel.Stage
	threshold time.Duration
}

type fakeAdvancer struct {
	mu    sync.Mutex
	calls []advanceCall
	skip  map[int64]bool
	fail  map[int64]error
}

func (f *fakeAdvancer) AdvanceWarmup(_ context.Context, userID int64, stage funnel.Stage, threshold time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, advanceCall{userID, stage, threshold})
	if err := f.fail[userID]; err != nil {
		return false, err
	}
	return !f.skip[userID], nil
}

var now = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{Interval: time.Minute, Warmup1: 24 * time.Hour, Warmup2: 48 * time.Hour}
}

func TestSweepRunsStagesInOrder(t *testing.T) {
	src := &fakeSource{due: map[funnel.Stage][]int64{
		funnel.StageWarmup1: {1, 2, 3},
		funnel.StageWarmup2: {4},
	}}
	adv := &fakeAdvancer{
		skip: map[int64]bool{2: true},
		fail: map[int64]error{3: errors.New("blocked")},
	}
	s, err := New(src, adv, testConfig(), func() time.Time { return now })
	require.NoError(t, err)

	reps := s.Sweep(context.Background())
	require.Len(t, reps, 2)
	assert.Equal(t, Report{Stage: funnel.StageWarmup1, Candidates: 3, Sent: 1, Skipped: 1, Failed: 1}, reps[0])
	assert.Equal(t, Report{Stage: funnel.StageWarmup2, Candidates: 1, Sent: 1}, reps[1])

	assert.Equal(t, now.Add(-24*time.Hour), src.cutoffs[funnel.StageWarmup1])
	assert.Equal(t, now.Add(-48*time.Hour), src.cutoffs[funnel.StageWarmup2])

	require.Len(t, adv.calls, 4)
	assert.Equal(t, advanceCall{1, funnel.StageWarmup1, 24 * time.Hour}, adv.calls[0])
	assert.Equal(t, advanceCall{4, funnel.StageWarmup2, 48 * time.Hour}, adv.calls[3])
}

func TestSweepQueryErrorDoesNotStopNextStage(t *testing.T) {
	boom := errors.New("db down")
	src := &fakeSource{
		due: map[funnel.Stage][]int64{funnel.StageWarmup2: {9}},
		err: map[funnel.Stage]error{funnel.StageWarmup1: boom},
	}
	adv := &fakeAdvancer{}
	s, err := New(src, adv, testConfig(), nil)
	require.NoError(t, err)

	reps := s.Sweep(context.Background())
	assert.ErrorIs(t, reps[0].Err, boom)
	assert.Equal(t, 1, reps[1].Sent)
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	src := &fakeSource{}
	s, err := New(src, &fakeAdvancer{}, Config{Interval: 5 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls >= 4
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop")
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, &fakeAdvancer{}, testConfig(), nil)
	assert.Error(t, err)
	_, err = New(&fakeSource{}, &fakeAdvancer{}, Config{}, nil)
	assert.Error(t, err)
}
