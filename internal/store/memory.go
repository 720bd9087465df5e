package store

import (
	"context"
	"sync"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// Memory keeps baskets in process with the same versioning rules as Store.
type Memory struct {
	mu      sync.Mutex
	records map[int64]basketRecord
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: map[int64]basketRecord{}}
}

func (m *Memory) Get(_ context.Context, buyerID int64) (basket.Basket, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[buyerID]
	if !ok {
		b := basket.Empty(buyerID)
		b.BuyerID = buyerID
		return b, 0, nil
	}
	b, err := fromRecord(rec)
	return b, rec.Version, err
}

func (m *Memory) Save(_ context.Context, b basket.Basket, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.records[b.BuyerID]; ok && cur.Version != expected {
		return 0, ErrVersionConflict
	}
	rec := toRecord(b)
	rec.Version = expected + 1
	m.records[b.BuyerID] = rec
	return rec.Version, nil
}
