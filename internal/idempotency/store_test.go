package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestBegin_Get_MarkDone_MarkFailed(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "idempotency-table", 24*time.Hour)

	ctx := context.Background()
	key := "test-key-1"

	rec, created, err := s.Begin(ctx, key, "add_item", 12)
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}
	if rec.Status != StatusInProgress || !rec.Matches("add_item", 12) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// second claim reports the existing record
	existing, created2, err := s.Begin(ctx, key, "add_item", 12)
	if err != nil {
		t.Fatalf("second Begin error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate claim")
	}
	if existing == nil || existing.Status != StatusInProgress {
		t.Fatalf("expected in-progress record, got %+v", existing)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == nil || got.BasketID != 12 || got.Operation != "add_item" {
		t.Fatalf("record mismatch: %+v", got)
	}

	if err := s.MarkDone(ctx, key, `{"id":12}`, 200); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	item := mock.table[key]
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	if rb, ok := item["response_body"].(*types.AttributeValueMemberS); !ok || rb.Value != `{"id":12}` {
		t.Fatalf("response_body not set correctly: %+v", item["response_body"])
	}

	done, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after done: %v", err)
	}
	if done.ResponseStatus != 200 {
		t.Fatalf("response status = %d", done.ResponseStatus)
	}

	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	item2 := mock.table[key]
	if st, ok := item2["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusFailed {
		t.Fatalf("status not updated to FAILED, got %+v", item2["status"])
	}
	if n, ok := item2["note"].(*types.AttributeValueMemberS); !ok || n.Value != "failed-reason" {
		t.Fatalf("note not set, got %+v", item2["note"])
	}
}

func TestBegin_ReclaimsFailedAndExpired(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "idempotency-table", time.Hour)
	ctx := context.Background()

	if _, _, err := s.Begin(ctx, "k-failed", "clear", 1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.MarkFailed(ctx, "k-failed", "store unavailable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, created, err := s.Begin(ctx, "k-failed", "clear", 1); err != nil || !created {
		t.Fatalf("failed key should be claimable again, created=%v err=%v", created, err)
	}

	start := time.Now()
	s.nowFunc = func() time.Time { return start }
	if _, _, err := s.Begin(ctx, "k-old", "clear", 1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	s.nowFunc = func() time.Time { return start.Add(2 * time.Hour) }
	if _, created, err := s.Begin(ctx, "k-old", "clear", 1); err != nil || !created {
		t.Fatalf("expired key should be claimable again, created=%v err=%v", created, err)
	}
}

func TestMarkDone_UnknownKey(t *testing.T) {
	s := NewStore(newSimpleMock(), "idempotency-table", time.Hour)
	err := s.MarkDone(context.Background(), "never-claimed", "", 200)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttributevalueMarshal_Unmarshal(t *testing.T) {
	rec := Record{
		Key:       "k1",
		Status:    StatusInProgress,
		Operation: "promo",
		BasketID:  4,
		CreatedAt: time.Now().Round(time.Second),
		UpdatedAt: time.Now().Round(time.Second),
		ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
	}
	m, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, ok := m["idempotency_key"]; !ok {
		t.Fatalf("partition key attribute missing: %v", m)
	}
	var out Record
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Key != rec.Key || out.BasketID != rec.BasketID {
		t.Fatalf("unmarshal mismatch")
	}
}

func TestMemory_MatchesStoreRules(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	if _, created, _ := m.Begin(ctx, "k", "add_item", 1); !created {
		t.Fatalf("expected first claim to succeed")
	}
	existing, created, _ := m.Begin(ctx, "k", "add_item", 1)
	if created || existing.Status != StatusInProgress {
		t.Fatalf("expected in-progress duplicate, got created=%v rec=%+v", created, existing)
	}
	if err := m.MarkDone(ctx, "k", "{}", 200); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	rec, _ := m.Get(ctx, "k")
	if rec.Status != StatusDone || rec.ResponseStatus != 200 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if err := m.MarkFailed(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.MarkFailed(ctx, "k", "x"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, created, _ := m.Begin(ctx, "k", "add_item", 1); !created {
		t.Fatalf("failed key should be claimable again")
	}
}
