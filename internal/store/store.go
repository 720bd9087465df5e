// Package store persists baskets with optimistic versioning.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-basket-client/internal/aws"
	"github.com/imrishuroy/go-basket-client/internal/basket"
)

const saveCondition = "attribute_not_exists(buyer_id) OR version = :expected"

// Store encapsulates operations on the baskets table. Each buyer owns one
// basket and the basket id equals the buyer id.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new baskets Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches the basket of buyerID and its version. A buyer without a
// stored basket gets an empty one at version 0.
func (s *Store) Get(ctx context.Context, buyerID int64) (basket.Basket, int64, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            keyFor(buyerID),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return basket.Basket{}, 0, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		b := basket.Empty(buyerID)
		b.BuyerID = buyerID
		return b, 0, nil
	}
	var rec basketRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return basket.Basket{}, 0, fmt.Errorf("unmarshal basket: %w", err)
	}
	b, err := fromRecord(rec)
	if err != nil {
		return basket.Basket{}, 0, err
	}
	return b, rec.Version, nil
}

// Save writes b if the stored version still equals expected and returns the
// new version. ErrVersionConflict reports a lost update.
func (s *Store) Save(ctx context.Context, b basket.Basket, expected int64) (int64, error) {
	rec := toRecord(b)
	rec.Version = expected + 1
	rec.UpdatedAt = s.nowFunc()

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal basket: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: sdkaws.String(saveCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return 0, ErrVersionConflict
		}
		return 0, fmt.Errorf("put item: %w", err)
	}
	return rec.Version, nil
}

func keyFor(buyerID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"buyer_id": &types.AttributeValueMemberN{Value: strconv.FormatInt(buyerID, 10)},
	}
}

func toRecord(b basket.Basket) basketRecord {
	rec := basketRecord{
		BuyerID:  b.BuyerID,
		BasketID: b.ID,
		Items:    make([]itemRecord, 0, len(b.Items)),
	}
	for _, it := range b.Items {
		rec.Items = append(rec.Items, itemRecord{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.String(),
		})
	}
	return rec
}

func fromRecord(rec basketRecord) (basket.Basket, error) {
	b := basket.Empty(rec.BasketID)
	b.BuyerID = rec.BuyerID
	for _, it := range rec.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return basket.Basket{}, fmt.Errorf("basket %d item %d: bad price %q: %w", rec.BasketID, it.ID, it.Price, err)
		}
		b.Items = append(b.Items, basket.BasketItem{
			ID:        it.ID,
			BasketID:  rec.BasketID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}
	return b, nil
}
