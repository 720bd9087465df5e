package store

import (
	"errors"
	"time"
)

// ErrVersionConflict is returned when a basket was written by someone else
// since it was read.
var ErrVersionConflict = errors.New("basket version conflict")

// basketRecord is the shape persisted in the baskets DynamoDB table.
// Product snapshots are not persisted; they are re-attached from the catalog.
type basketRecord struct {
	BuyerID   int64        `dynamodbav:"buyer_id"` // PK
	BasketID  int64        `dynamodbav:"basket_id"`
	Items     []itemRecord `dynamodbav:"items"`
	Version   int64        `dynamodbav:"version"`
	UpdatedAt time.Time    `dynamodbav:"updated_at"`
}

type itemRecord struct {
	ID        int64  `dynamodbav:"id"`
	ProductID int64  `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
	Price     string `dynamodbav:"price"` // decimal string, never float
}
