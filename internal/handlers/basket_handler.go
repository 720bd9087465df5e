package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/basket"
	"github.com/imrishuroy/go-basket-client/internal/config"
	"github.com/imrishuroy/go-basket-client/internal/events"
	"github.com/imrishuroy/go-basket-client/internal/idempotency"
	"github.com/imrishuroy/go-basket-client/internal/logging"
	"github.com/imrishuroy/go-basket-client/internal/store"
	"github.com/imrishuroy/go-basket-client/internal/validation"
)

// saveAttempts bounds the load-apply-save loop on version conflicts.
const saveAttempts = 3

// Repository loads and stores baskets with optimistic versioning.
type Repository interface {
	Get(ctx context.Context, buyerID int64) (basket.Basket, int64, error)
	Save(ctx context.Context, b basket.Basket, expected int64) (int64, error)
}

// IdempotencyStore claims and completes Idempotency-Key values.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, op string, basketID int64) (*idempotency.Record, bool, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Catalog resolves product snapshots and prices.
type Catalog interface {
	Lookup(productID int64) (basket.ProductSnapshot, bool)
}

// HandlerConfig groups dependencies for the basket handler.
type HandlerConfig struct {
	Baskets            Repository
	Idempotency        IdempotencyStore
	Publisher          events.Publisher
	Catalog            Catalog
	PreserveReferences bool
	Logger             *zap.Logger
}

type basketHandler struct {
	cfg HandlerConfig
	v   *validatorv10.Validate
	log *zap.Logger
}

// RegisterBasketRoutes registers routes for the basket API.
func RegisterBasketRoutes(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Catalog == nil {
		cfg.Catalog = config.Catalog{}
	}
	h := &basketHandler{cfg: cfg, v: validation.New(), log: logging.OrNop(cfg.Logger)}

	r.GET("/api/buyers/:userId/basket", h.getBasket)

	baskets := r.Group("/api/baskets/:basketId")
	baskets.DELETE("", h.clear)
	baskets.POST("/promo", h.idempotent(opApplyPromo, h.applyPromo))
	baskets.GET("/totals", h.totals)
	baskets.GET("/validate", h.validate)

	items := baskets.Group("/items/:productId")
	items.POST("", h.idempotent(opAddItem, h.addItem))
	items.PUT("", h.setQuantity)
	items.DELETE("", h.removeItem)
	items.PUT("/increase", h.increase)
	items.PUT("/decrease", h.decrease)
}

// result is a status and JSON body produced by an operation.
type result struct {
	status int
	body   any
}

func (r result) write(c *gin.Context) {
	if r.body == nil {
		c.Status(r.status)
		return
	}
	c.JSON(r.status, r.body)
}

func failure(status int, code string, err error) result {
	body := gin.H{"error": code}
	if err != nil {
		body["msg"] = err.Error()
	}
	return result{status: status, body: body}
}

func (h *basketHandler) getBasket(c *gin.Context) {
	var p validation.BuyerURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return
	}
	b, _, err := h.cfg.Baskets.Get(c.Request.Context(), p.UserID)
	if err != nil {
		h.storeFailure(c, p.UserID, err).write(c)
		return
	}
	c.JSON(http.StatusOK, h.document(b))
}

func (h *basketHandler) addItem(c *gin.Context) (result, bool) {
	var p validation.ItemURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return result{}, false
	}
	qty, err := validation.BindQuantity(c, h.v)
	if err != nil {
		return result{}, false
	}
	product, ok := h.cfg.Catalog.Lookup(p.ProductID)
	if !ok {
		return failure(http.StatusNotFound, "product_not_found", nil), true
	}
	return h.mutate(c, p.BasketID, func(b *basket.Basket) (events.BasketEvent, error) {
		it, err := basket.AddItem(b, p.ProductID, qty, product.Price)
		if err != nil {
			return events.BasketEvent{}, err
		}
		ev := events.New(events.TypeItemAdded, b.ID)
		ev.ProductID = p.ProductID
		ev.Quantity = it.Quantity
		return ev, nil
	}), true
}

func (h *basketHandler) setQuantity(c *gin.Context) {
	var p validation.ItemURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return
	}
	qty, err := validation.BindQuantity(c, h.v)
	if err != nil {
		return
	}
	h.mutate(c, p.BasketID, func(b *basket.Basket) (events.BasketEvent, error) {
		if err := basket.UpdateQuantity(b, p.ProductID, qty); err != nil {
			return events.BasketEvent{}, err
		}
		ev := events.New(events.TypeQuantityUpdated, b.ID)
		ev.ProductID = p.ProductID
		ev.Quantity = basket.ClampQuantity(qty)
		if qty == 0 {
			ev.Type = events.TypeItemRemoved
		}
		return ev, nil
	}).write(c)
}

func (h *basketHandler) removeItem(c *gin.Context) {
	var p validation.ItemURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return
	}
	h.mutate(c, p.BasketID, func(b *basket.Basket) (events.BasketEvent, error) {
		if !basket.RemoveItem(b, p.ProductID) {
			return events.BasketEvent{}, basket.ErrItemNotFound
		}
		ev := events.New(events.TypeItemRemoved, b.ID)
		ev.ProductID = p.ProductID
		return ev, nil
	}).write(c)
}

func (h *basketHandler) clear(c *gin.Context) {
	var p validation.BasketURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return
	}
	h.mutate(c, p.BasketID, func(b *basket.Basket) (events.BasketEvent, error) {
		basket.Clear(b)
		return events.New(events.TypeBasketCleared, b.ID), nil
	}).write(c)
}

func (h *basketHandler) increase(c *gin.Context) {
	h.step(c, basket.IncreaseQuantity)
}

func (h *basketHandler) decrease(c *gin.Context) {
	h.step(c, basket.DecreaseQuantity)
}

// step applies a one-unit change to a line.
func (h *basketHandler) step(c *gin.Context, apply func(*basket.Basket, int64) error) {
	var p validation.ItemURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return
	}
	h.mutate(c, p.BasketID, func(b *basket.Basket) (events.BasketEvent, error) {
		if err := apply(b, p.ProductID); err != nil {
			return events.BasketEvent{}, err
		}
		ev := events.New(events.TypeQuantityUpdated, b.ID)
		ev.ProductID = p.ProductID
		if it, ok := b.Item(p.ProductID); ok {
			ev.Quantity = it.Quantity
		} else {
			ev.Type = events.TypeItemRemoved
		}
		return ev, nil
	}).write(c)
}

func (h *basketHandler) applyPromo(c *gin.Context) (result, bool) {
	var p validation.BasketURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return result{}, false
	}
	code, err := validation.BindPromoCode(c, h.v)
	if err != nil {
		return result{}, false
	}
	ctx := c.Request.Context()
	b, _, err := h.cfg.Baskets.Get(ctx, p.BasketID)
	if err != nil {
		return h.storeFailure(c, p.BasketID, err), true
	}
	rate, err := basket.ApplyPromoCode(b, code)
	if err != nil {
		return h.ruleFailure(err), true
	}
	ev := events.New(events.TypePromoApplied, p.BasketID)
	ev.ItemCount = len(b.Items)
	ev.PromoCode = basket.NormalizePromoCode(code)
	h.publish(ctx, ev)
	return result{status: http.StatusOK, body: gin.H{"discountRate": rate}}, true
}

func (h *basketHandler) totals(c *gin.Context) {
	var p validation.BasketURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return
	}
	var q validation.TotalsQuery
	if err := validation.BindQuery(c, &q, h.v); err != nil {
		return
	}
	b, _, err := h.cfg.Baskets.Get(c.Request.Context(), p.BasketID)
	if err != nil {
		h.storeFailure(c, p.BasketID, err).write(c)
		return
	}
	c.JSON(http.StatusOK, basket.CalculateTotals(b, q.PromoCode))
}

func (h *basketHandler) validate(c *gin.Context) {
	var p validation.BasketURI
	if err := validation.BindURI(c, &p, h.v); err != nil {
		return
	}
	b, _, err := h.cfg.Baskets.Get(c.Request.Context(), p.BasketID)
	if err != nil {
		h.storeFailure(c, p.BasketID, err).write(c)
		return
	}
	c.JSON(http.StatusOK, basket.ValidateBeforeCheckout(b))
}

// mutate runs the load-apply-save loop for basketID, retrying on version
// conflicts, and publishes the event apply returns once the save succeeded.
func (h *basketHandler) mutate(c *gin.Context, basketID int64, apply func(*basket.Basket) (events.BasketEvent, error)) result {
	ctx := c.Request.Context()
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		b, version, err := h.cfg.Baskets.Get(ctx, basketID)
		if err != nil {
			return h.storeFailure(c, basketID, err)
		}
		ev, err := apply(&b)
		if err != nil {
			return h.ruleFailure(err)
		}
		if _, err := h.cfg.Baskets.Save(ctx, b, version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				h.log.Debug("basket version conflict, retrying",
					zap.Int64("basket_id", basketID), zap.Int("attempt", attempt))
				continue
			}
			return h.storeFailure(c, basketID, err)
		}
		ev.ItemCount = len(b.Items)
		h.publish(ctx, ev)
		return result{status: http.StatusOK, body: h.document(b)}
	}
	return failure(http.StatusConflict, "version_conflict", store.ErrVersionConflict)
}

func (h *basketHandler) publish(ctx context.Context, ev events.BasketEvent) {
	if err := h.cfg.Publisher.Publish(ctx, ev); err != nil {
		h.log.Warn("basket event not published",
			zap.String("event_id", ev.EventID),
			zap.String("event_type", ev.Type),
			zap.Int64("basket_id", ev.BasketID),
			zap.Error(err))
	}
}

func (h *basketHandler) ruleFailure(err error) result {
	switch {
	case errors.Is(err, basket.ErrItemNotFound):
		return failure(http.StatusNotFound, "item_not_found", err)
	case errors.Is(err, basket.ErrInvalidPromoCode):
		return failure(http.StatusBadRequest, "invalid_promo_code", err)
	case basket.IsValidationError(err):
		return failure(http.StatusBadRequest, "validation_failed", err)
	default:
		return failure(http.StatusUnprocessableEntity, "rule_violation", err)
	}
}

func (h *basketHandler) storeFailure(c *gin.Context, basketID int64, err error) result {
	h.log.Error("basket store failure",
		zap.Int64("basket_id", basketID),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	return failure(http.StatusInternalServerError, "store_unavailable", nil)
}
