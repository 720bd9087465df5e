// Package events describes basket change notifications and the publishers
// that carry them to a broker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeItemAdded       = "item_added"
	TypeQuantityUpdated = "quantity_updated"
	TypeItemRemoved     = "item_removed"
	TypeBasketCleared   = "basket_cleared"
	TypePromoApplied    = "promo_applied"
)

// BasketEvent is published after every successful basket mutation.
type BasketEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"event_type"`
	BasketID   int64     `json:"basket_id"`
	ProductID  int64     `json:"product_id,omitempty"`
	Quantity   int       `json:"quantity"`
	ItemCount  int       `json:"item_count"`
	PromoCode  string    `json:"promo_code,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New returns an event of type typ with a fresh id and timestamp.
func New(typ string, basketID int64) BasketEvent {
	return BasketEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		BasketID:   basketID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers basket events.
type Publisher interface {
	Publish(ctx context.Context, ev BasketEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, BasketEvent) error { return nil }

// Recorder keeps published events in memory. The zero value is ready to use.
type Recorder struct {
	Events []BasketEvent
}

func (r *Recorder) Publish(_ context.Context, ev BasketEvent) error {
	r.Events = append(r.Events, ev)
	return nil
}
