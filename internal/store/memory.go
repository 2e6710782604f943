package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/funnelbot/internal/funnel"
)

// Memory is an in-process Store. Records are lost on restart.
type Memory struct {
	mu      sync.Mutex
	records map[int64]funnel.Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[int64]funnel.Record)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Create(_ context.Context, rec funnel.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, fmt.Errorf("store: create %d: %w", rec.UserID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.UserID]; ok {
		return false, nil
	}
	m.records[rec.UserID] = rec
	return true, nil
}

func (m *Memory) Get(_ context.Context, userID int64) (funnel.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return funnel.Record{}, funnel.ErrNotFound
	}
	return rec, nil
}

// Update runs fn on a copy under the store lock. fn must not call back into the store.
func (m *Memory) Update(_ context.Context, userID int64, fn func(*funnel.Record) error) (funnel.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.records[userID]
	if !ok {
		return funnel.Record{}, funnel.ErrNotFound
	}
	next := prev
	if err := fn(&next); err != nil {
		return prev, err
	}
	if err := funnel.ValidateTransition(prev, next); err != nil {
		return prev, fmt.Errorf("store: update %d: %w", userID, err)
	}
	m.records[userID] = next
	return next, nil
}

func (m *Memory) Remove(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

func (m *Memory) DueForWarmup(_ context.Context, stage funnel.Stage, cutoff time.Time) ([]int64, error) {
	m.mu.Lock()
	var due []funnel.Record
	for _, rec := range m.records {
		if warmupEligible(rec, stage, cutoff) {
			due = append(due, rec)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].LastEventAt.Equal(due[j].LastEventAt) {
			return due[i].UserID < due[j].UserID
		}
		return due[i].LastEventAt.Before(due[j].LastEventAt)
	})
	ids := make([]int64, len(due))
	for i, rec := range due {
		ids[i] = rec.UserID
	}
	return ids, nil
}

func (m *Memory) Recipients(_ context.Context, audience Audience) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, rec := range m.records {
		if audience.Match(rec) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st Stats
	for _, rec := range m.records {
		st.add(rec.Status, rec.ContactProvided, rec.Subscribed, 1)
	}
	return st, nil
}
