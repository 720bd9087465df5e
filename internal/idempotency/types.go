package idempotency

import (
	"errors"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// ErrNotFound is returned when completing a key that was never claimed.
var ErrNotFound = errors.New("idempotency record not found")

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	Key            string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	Operation      string    `dynamodbav:"operation"`
	BasketID       int64     `dynamodbav:"basket_id"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Matches reports whether the record was created for the same operation on
// the same basket.
func (r *Record) Matches(op string, basketID int64) bool {
	return r.Operation == op && r.BasketID == basketID
}
