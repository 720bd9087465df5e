package idempotency

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process idempotency store with the same claim rules as
// Store. It backs local runs and tests.
type Memory struct {
	mu        sync.Mutex
	records   map[string]Record
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory(ttlWindow time.Duration) *Memory {
	return &Memory{
		records:   map[string]Record{},
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

func (m *Memory) Begin(_ context.Context, key, op string, basketID int64) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	if existing, ok := m.records[key]; ok && existing.ExpiresAt >= now.Unix() && existing.Status != StatusFailed {
		return &existing, false, nil
	}
	rec := Record{
		Key:       key,
		Status:    StatusInProgress,
		Operation: op,
		BasketID:  basketID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.ttlWindow).Unix(),
	}
	m.records[key] = rec
	return &rec, true, nil
}

func (m *Memory) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) MarkDone(_ context.Context, key, responseBody string, responseStatus int) error {
	return m.update(key, func(r *Record) {
		r.Status = StatusDone
		r.ResponseBody = responseBody
		r.ResponseStatus = responseStatus
	})
}

func (m *Memory) MarkFailed(_ context.Context, key, note string) error {
	return m.update(key, func(r *Record) {
		r.Status = StatusFailed
		r.Note = note
	})
}

func (m *Memory) update(key string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	rec.UpdatedAt = m.nowFunc()
	m.records[key] = rec
	return nil
}
