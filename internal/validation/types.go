package validation

// BuyerURI is the path of GET /api/buyers/:userId/basket.
type BuyerURI struct {
	UserID int64 `uri:"userId" validate:"gt=0"`
}

// BasketURI is the path of basket-level routes.
type BasketURI struct {
	BasketID int64 `uri:"basketId" validate:"gt=0"`
}

// ItemURI is the path of line-level routes.
type ItemURI struct {
	BasketID  int64 `uri:"basketId" validate:"gt=0"`
	ProductID int64 `uri:"productId" validate:"gt=0"`
}

// QuantityRequest wraps the bare integer body of add and set.
type QuantityRequest struct {
	Quantity int `validate:"min=0"`
}

// PromoRequest wraps the bare string body of POST .../promo.
type PromoRequest struct {
	Code string `validate:"notblank,max=64"`
}

// TotalsQuery is the query of GET .../totals.
type TotalsQuery struct {
	PromoCode string `form:"promoCode" validate:"max=64"`
}
