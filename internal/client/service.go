package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/basket"
	"github.com/imrishuroy/go-basket-client/internal/logging"
	"github.com/imrishuroy/go-basket-client/internal/wire"
)

// IdempotencyHeader carries a per-call key on POST mutations.
const IdempotencyHeader = "Idempotency-Key"

// invalidPromoCode is the error code the API answers for an unknown promo code.
const invalidPromoCode = "invalid_promo_code"

// Service is the basket facade: it validates input, calls the transport,
// decodes the answer and reports failures without crashing reads.
type Service struct {
	transport Transport
	log       *zap.Logger
	newKey    func() string
}

// NewService returns a facade over t. A nil logger disables logging.
func NewService(t Transport, log *zap.Logger) *Service {
	return &Service{
		transport: t,
		log:       logging.OrNop(log),
		newKey:    uuid.NewString,
	}
}

// GetBasketByUser fetches the basket of userID. It never returns an absent
// basket: on failure the result is an empty basket scoped to userID and the
// cause is returned alongside it.
func (s *Service) GetBasketByUser(ctx context.Context, userID int64) (basket.Basket, error) {
	if userID <= 0 {
		return basket.Empty(0), basket.ErrInvalidUserID
	}
	fallback := basket.Empty(userID)
	fallback.BuyerID = userID

	const op = "get basket"
	resp, err := s.call(ctx, op, Request{Method: http.MethodGet, Path: BuyerBasketPath(userID)})
	if err != nil {
		s.log.Warn("basket fetch failed, returning empty basket", zap.Int64("user_id", userID), zap.Error(err))
		return fallback, err
	}

	res, err := wire.DecodeBasket(resp.Body)
	s.logAnomalies(op, res.Anomalies)
	if err != nil {
		s.log.Warn("basket document unreadable, returning empty basket", zap.Int64("user_id", userID), zap.Error(err))
		return fallback, fmt.Errorf("get basket for user %d: %w", userID, err)
	}

	b := res.Basket
	b.BuyerID = userID
	if b.ID == 0 {
		b.ID = userID
	}
	if !basket.ValidateBeforeCheckout(b) {
		s.log.Debug("basket not ready for checkout",
			zap.Int64("basket_id", b.ID),
			zap.Int("items", len(b.Items)),
			zap.Int64s("invalid_products", basket.InvalidItems(b)))
	}
	return b, nil
}

// AddProduct puts quantity of productID into the basket, replacing any
// existing quantity. Quantities above the maximum are clamped before sending.
func (s *Service) AddProduct(ctx context.Context, basketID, productID int64, quantity int) error {
	if err := validateLine(basketID, productID, quantity); err != nil {
		return err
	}
	_, err := s.call(ctx, "add product", Request{
		Method:  http.MethodPost,
		Path:    ItemPath(basketID, productID),
		Body:    basket.ClampQuantity(quantity),
		Headers: map[string]string{IdempotencyHeader: s.newKey()},
	})
	return err
}

// UpdateQuantity sets the quantity of an existing line; zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, basketID, productID int64, quantity int) error {
	if err := validateLine(basketID, productID, quantity); err != nil {
		return err
	}
	_, err := s.call(ctx, "update quantity", Request{
		Method: http.MethodPut,
		Path:   ItemPath(basketID, productID),
		Body:   basket.ClampQuantity(quantity),
	})
	return err
}

// RemoveProduct deletes a line.
func (s *Service) RemoveProduct(ctx context.Context, basketID, productID int64) error {
	if err := validateIDs(basketID, productID); err != nil {
		return err
	}
	_, err := s.call(ctx, "remove product", Request{Method: http.MethodDelete, Path: ItemPath(basketID, productID)})
	return err
}

// ClearBasket removes every line.
func (s *Service) ClearBasket(ctx context.Context, basketID int64) error {
	if basketID <= 0 {
		return basket.ErrInvalidBasketID
	}
	_, err := s.call(ctx, "clear basket", Request{Method: http.MethodDelete, Path: BasketPath(basketID)})
	return err
}

// IncreaseQuantity adds one unit to a line.
func (s *Service) IncreaseQuantity(ctx context.Context, basketID, productID int64) error {
	if err := validateIDs(basketID, productID); err != nil {
		return err
	}
	_, err := s.call(ctx, "increase quantity", Request{Method: http.MethodPut, Path: ItemPath(basketID, productID) + "/increase"})
	return err
}

// DecreaseQuantity removes one unit from a line; the last unit removes the line.
func (s *Service) DecreaseQuantity(ctx context.Context, basketID, productID int64) error {
	if err := validateIDs(basketID, productID); err != nil {
		return err
	}
	_, err := s.call(ctx, "decrease quantity", Request{Method: http.MethodPut, Path: ItemPath(basketID, productID) + "/decrease"})
	return err
}

// ApplyPromoCode applies code to the basket and returns its discount rate.
// Blank codes fail with basket.ErrEmptyPromoCode whatever the basket; codes
// missing from the promo table fail with basket.ErrInvalidPromoCode, as does
// a 400 carrying the invalid_promo_code error. Other rejections are
// transport failures.
func (s *Service) ApplyPromoCode(ctx context.Context, basketID int64, code string) (decimal.Decimal, error) {
	rate, err := basket.ResolvePromoCode(code)
	if err != nil {
		return decimal.Zero, err
	}
	if basketID <= 0 {
		return decimal.Zero, basket.ErrInvalidBasketID
	}

	const op = "apply promo code"
	req := Request{
		Method:  http.MethodPost,
		Path:    BasketPath(basketID) + "/promo",
		Body:    basket.NormalizePromoCode(code),
		Headers: map[string]string{IdempotencyHeader: s.newKey()},
	}
	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		return decimal.Zero, &TransportError{Op: op, Method: req.Method, Path: req.Path, Err: err}
	}
	if resp.StatusCode == http.StatusBadRequest && wire.DecodeErrorCode(resp.Body) == invalidPromoCode {
		return decimal.Zero, basket.ErrInvalidPromoCode
	}
	if !resp.OK() {
		return decimal.Zero, statusError(op, req, resp)
	}

	got, anomalies, err := wire.DecodeDiscountRate(resp.Body)
	s.logAnomalies(op, anomalies)
	if err != nil {
		s.log.Warn("discount rate unreadable, using promo table", zap.Int64("basket_id", basketID), zap.Error(err))
		return rate, nil
	}
	return got, nil
}

// CalculateTotals asks the server for the basket totals. An unknown promo
// code is ignored. On failure zero totals are returned with the cause.
func (s *Service) CalculateTotals(ctx context.Context, basketID int64, promoCode string) (basket.Totals, error) {
	if basketID <= 0 {
		return basket.ZeroTotals(), basket.ErrInvalidBasketID
	}
	const op = "calculate totals"
	req := Request{Method: http.MethodGet, Path: BasketPath(basketID) + "/totals"}
	if code := basket.NormalizePromoCode(promoCode); code != "" {
		req.Query = url.Values{"promoCode": []string{code}}
	}
	resp, err := s.call(ctx, op, req)
	if err != nil {
		s.log.Warn("totals unavailable, returning zero", zap.Int64("basket_id", basketID), zap.Error(err))
		return basket.ZeroTotals(), err
	}
	totals, anomalies, err := wire.DecodeTotals(resp.Body)
	s.logAnomalies(op, anomalies)
	if err != nil {
		s.log.Warn("totals unreadable, returning zero", zap.Int64("basket_id", basketID), zap.Error(err))
		return basket.ZeroTotals(), fmt.Errorf("calculate totals for basket %d: %w", basketID, err)
	}
	return totals, nil
}

// ValidateBeforeCheckout asks the server whether the basket may be checked
// out. Failures answer false with the cause.
func (s *Service) ValidateBeforeCheckout(ctx context.Context, basketID int64) (bool, error) {
	if basketID <= 0 {
		return false, basket.ErrInvalidBasketID
	}
	resp, err := s.call(ctx, "validate basket", Request{Method: http.MethodGet, Path: BasketPath(basketID) + "/validate"})
	if err != nil {
		s.log.Warn("checkout validation unavailable", zap.Int64("basket_id", basketID), zap.Error(err))
		return false, err
	}
	ok, err := wire.DecodeBool(resp.Body)
	if err != nil {
		return false, fmt.Errorf("validate basket %d: %w", basketID, err)
	}
	return ok, nil
}

// LocalTotals computes totals for an already fetched basket without a call.
func (s *Service) LocalTotals(b basket.Basket, promoCode string) basket.Totals {
	return basket.CalculateTotals(b, promoCode)
}

// call performs req and turns transport errors and non-2xx statuses into a
// *TransportError.
func (s *Service) call(ctx context.Context, op string, req Request) (*Response, error) {
	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		return nil, &TransportError{Op: op, Method: req.Method, Path: req.Path, Err: err}
	}
	if !resp.OK() {
		return nil, statusError(op, req, resp)
	}
	return resp, nil
}

func (s *Service) logAnomalies(op string, anomalies []wire.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	msgs := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		msgs = append(msgs, a.String())
	}
	s.log.Debug("recovered decode anomalies", zap.String("op", op), zap.Strings("anomalies", msgs))
}

func statusError(op string, req Request, resp *Response) *TransportError {
	body := strings.TrimSpace(string(resp.Body))
	if len(body) > 256 {
		body = body[:256]
	}
	return &TransportError{
		Op:         op,
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("status %d: %s", resp.StatusCode, body),
	}
}

func validateIDs(basketID, productID int64) error {
	if basketID <= 0 {
		return basket.ErrInvalidBasketID
	}
	if productID <= 0 {
		return basket.ErrInvalidProductID
	}
	return nil
}

func validateLine(basketID, productID int64, quantity int) error {
	if err := validateIDs(basketID, productID); err != nil {
		return err
	}
	if quantity < 0 {
		return basket.ErrNegativeQuantity
	}
	return nil
}
