package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-basket-client/internal/basket"
	"github.com/imrishuroy/go-basket-client/internal/config"
	"github.com/imrishuroy/go-basket-client/internal/events"
	"github.com/imrishuroy/go-basket-client/internal/idempotency"
	"github.com/imrishuroy/go-basket-client/internal/store"
)

func testCatalog() config.Catalog {
	return config.Catalog{
		1: {
			ID:       1,
			Title:    "Vintage camera",
			Price:    decimal.RequireFromString("50"),
			SellerID: 7,
			Seller:   basket.Some(basket.UserRef{ID: 7, Username: "ana"}),
			Tags:     []basket.TagRef{{ID: 1, Name: "retro"}},
			Images:   []basket.ImageRef{},
		},
		2: {ID: 2, Title: "Tripod", Price: decimal.RequireFromString("25.50")},
	}
}

type fixture struct {
	router *gin.Engine
	repo   *store.Memory
	idem   *idempotency.Memory
	events *events.Recorder
}

func newFixture(t *testing.T, preserve bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		repo:   store.NewMemory(),
		idem:   idempotency.NewMemory(time.Hour),
		events: &events.Recorder{},
	}
	f.router = NewRouter(HandlerConfig{
		Baskets:            f.repo,
		Idempotency:        f.idem,
		Publisher:          f.events,
		Catalog:            testCatalog(),
		PreserveReferences: preserve,
	})
	return f
}

func (f *fixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func key(k string) map[string]string { return map[string]string{IdempotencyHeader: k} }

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetBasket_EmptyForNewBuyer(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/api/buyers/4/basket", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":4,"buyerId":4,"items":[]}`, w.Body.String())

	w = f.do(http.MethodGet, "/api/buyers/0/basket", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddItem(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/baskets/3/items/1", "25", key("k1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	b, version, err := f.repo.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.Len(t, b.Items, 1)
	assert.Equal(t, basket.MaxQuantityPerItem, b.Items[0].Quantity)
	assert.Equal(t, "50", b.Items[0].Price.String())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	item := doc["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "50", item["price"], "decimals are strings")
	assert.Equal(t, "Vintage camera", item["product"].(map[string]any)["title"])

	require.Len(t, f.events.Events, 1)
	ev := f.events.Events[0]
	assert.Equal(t, events.TypeItemAdded, ev.Type)
	assert.Equal(t, int64(1), ev.ProductID)
	assert.Equal(t, 10, ev.Quantity)
	assert.Equal(t, 1, ev.ItemCount)
}

func TestAddItem_Errors(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/baskets/3/items/1", "1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_idempotency_key")

	w = f.do(http.MethodPost, "/api/baskets/3/items/99", "1", key("k-unknown"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "product_not_found")
	rec, err := f.idem.Get(context.Background(), "k-unknown")
	require.NoError(t, err)
	assert.Equal(t, idempotency.StatusFailed, rec.Status)

	w = f.do(http.MethodPost, "/api/baskets/3/items/1", "-1", key("k-neg"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Quantity cannot be negative")

	// a rejected request releases its key
	w = f.do(http.MethodPost, "/api/baskets/3/items/1", "2", key("k-neg"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddItem_IdempotentReplay(t *testing.T) {
	f := newFixture(t, false)

	first := f.do(http.MethodPost, "/api/baskets/3/items/2", "2", key("same"))
	require.Equal(t, http.StatusOK, first.Code)

	// later change that the replay must not reflect
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/baskets/3/items/2/increase", "", nil).Code)

	second := f.do(http.MethodPost, "/api/baskets/3/items/2", "2", key("same"))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	b, _, _ := f.repo.Get(context.Background(), 3)
	assert.Equal(t, 3, b.Items[0].Quantity, "replay did not re-apply")
	assert.Len(t, f.events.Events, 2)

	reused := f.do(http.MethodPost, "/api/baskets/4/items/2", "2", key("same"))
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
}

func TestAddItem_InProgress(t *testing.T) {
	f := newFixture(t, false)
	_, _, err := f.idem.Begin(context.Background(), "busy", opAddItem, 3)
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/baskets/3/items/1", "1", key("busy"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "request_in_progress")
}

func TestQuantityRoutes(t *testing.T) {
	f := newFixture(t, false)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/baskets/5/items/1", "2", key("a")).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/baskets/5/items/2", "1", key("b")).Code)

	quantity := func(productID int64) int {
		b, _, err := f.repo.Get(context.Background(), 5)
		require.NoError(t, err)
		if it, ok := b.Item(productID); ok {
			return it.Quantity
		}
		return -1
	}

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/baskets/5/items/1", "42", nil).Code)
	assert.Equal(t, 10, quantity(1))

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/baskets/5/items/1/increase", "", nil).Code)
	assert.Equal(t, 10, quantity(1), "increase stays at the maximum")

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/baskets/5/items/1/decrease", "", nil).Code)
	assert.Equal(t, 9, quantity(1))

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/baskets/5/items/2/decrease", "", nil).Code)
	assert.Equal(t, -1, quantity(2), "last unit removes the line")

	w := f.do(http.MethodPut, "/api/baskets/5/items/2/increase", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Item not found in basket")

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/baskets/5/items/1", "0", nil).Code)
	assert.Equal(t, -1, quantity(1), "zero removes the line")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPut, "/api/baskets/5/items/1", "3", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/baskets/5/items/1", "", nil).Code)

	types := make([]string, 0, len(f.events.Events))
	for _, ev := range f.events.Events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		events.TypeItemAdded, events.TypeItemAdded,
		events.TypeQuantityUpdated, events.TypeQuantityUpdated, events.TypeQuantityUpdated,
		events.TypeItemRemoved, events.TypeItemRemoved,
	}, types)
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t, false)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/baskets/6/items/1", "1", key("a")).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/baskets/6/items/2", "1", key("b")).Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/baskets/6/items/1", "", nil).Code)
	b, _, _ := f.repo.Get(context.Background(), 6)
	assert.Len(t, b.Items, 1)

	w := f.do(http.MethodDelete, "/api/baskets/6", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":6,"buyerId":6,"items":[]}`, w.Body.String())
	last := f.events.Events[len(f.events.Events)-1]
	assert.Equal(t, events.TypeBasketCleared, last.Type)
	assert.Equal(t, 0, last.ItemCount)
}

func TestPromoTotalsValidate(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/api/baskets/7/validate", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Body.String())

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/baskets/7/items/1", "2", key("a")).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/baskets/7/items/2", "2", key("b")).Code)

	w = f.do(http.MethodPost, "/api/baskets/7/promo", `"discount10"`, key("p1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"discountRate":"0.1"}`, w.Body.String())
	last := f.events.Events[len(f.events.Events)-1]
	assert.Equal(t, events.TypePromoApplied, last.Type)
	assert.Equal(t, "DISCOUNT10", last.PromoCode)

	w = f.do(http.MethodPost, "/api/baskets/7/promo", `"BOGUS"`, key("p2"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_promo_code")

	w = f.do(http.MethodGet, "/api/baskets/7/totals?promoCode=DISCOUNT10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subtotal":"151","discount":"15.1","totalAmount":"135.9"}`, w.Body.String())

	w = f.do(http.MethodGet, "/api/baskets/7/totals?promoCode=NOPE", "", nil)
	assert.JSONEq(t, `{"subtotal":"151","discount":"0","totalAmount":"151"}`, w.Body.String())

	w = f.do(http.MethodGet, "/api/baskets/7/validate", "", nil)
	assert.Equal(t, "true", w.Body.String())
}

func TestPreserveReferencesDocument(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/baskets/8/items/1", "1", key("a")).Code)

	w := f.do(http.MethodGet, "/api/buyers/8/basket", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "1", doc["$id"])
	items := doc["items"].(map[string]any)
	assert.Equal(t, "2", items["$id"])
	values := items["$values"].([]any)
	require.Len(t, values, 1)
	product := values[0].(map[string]any)["product"].(map[string]any)
	assert.Contains(t, product["tags"].(map[string]any), "$values")
	assert.Equal(t, "ana", product["seller"].(map[string]any)["username"])
	assert.Nil(t, product["condition"])
}

// conflictingRepo loses every save.
type conflictingRepo struct {
	*store.Memory
	saves int
}

func (r *conflictingRepo) Save(ctx context.Context, b basket.Basket, expected int64) (int64, error) {
	r.saves++
	return 0, store.ErrVersionConflict
}

func TestMutate_VersionConflictExhausted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &conflictingRepo{Memory: store.NewMemory()}
	r := NewRouter(HandlerConfig{Baskets: repo, Idempotency: idempotency.NewMemory(time.Hour), Catalog: testCatalog()})

	req := httptest.NewRequest(http.MethodDelete, "/api/baskets/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, saveAttempts, repo.saves)
}

// brokenRepo fails every read.
type brokenRepo struct{}

func (brokenRepo) Get(context.Context, int64) (basket.Basket, int64, error) {
	return basket.Basket{}, 0, errors.New("table unavailable")
}

func (brokenRepo) Save(context.Context, basket.Basket, int64) (int64, error) {
	return 0, errors.New("table unavailable")
}

func TestStoreFailure_ReleasesIdempotencyKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	idem := idempotency.NewMemory(time.Hour)
	r := NewRouter(HandlerConfig{Baskets: brokenRepo{}, Idempotency: idem, Catalog: testCatalog()})

	req := httptest.NewRequest(http.MethodPost, "/api/baskets/1/items/1", strings.NewReader("1"))
	req.Header.Set(IdempotencyHeader, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	rec, err := idem.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, idempotency.StatusFailed, rec.Status)
}

// failingPublisher rejects every event.
type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.BasketEvent) error {
	return errors.New("broker down")
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := store.NewMemory()
	r := NewRouter(HandlerConfig{Baskets: repo, Idempotency: idempotency.NewMemory(time.Hour), Publisher: failingPublisher{}, Catalog: testCatalog()})

	req := httptest.NewRequest(http.MethodPost, "/api/baskets/2/items/2", strings.NewReader("1"))
	req.Header.Set(IdempotencyHeader, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	b, _, _ := repo.Get(context.Background(), 2)
	assert.Len(t, b.Items, 1)
}
