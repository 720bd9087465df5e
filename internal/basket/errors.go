package basket

import "errors"

// Validation and business-rule failures. The messages are shown to users
// verbatim and must stay stable.
var (
	ErrInvalidUserID    = errors.New("Invalid user ID")
	ErrInvalidBasketID  = errors.New("Invalid basket ID")
	ErrInvalidProductID = errors.New("Invalid product ID")
	ErrNegativeQuantity = errors.New("Quantity cannot be negative")
	ErrEmptyPromoCode   = errors.New("Promo code cannot be empty")
	ErrInvalidPromoCode = errors.New("Invalid promo code")
	ErrItemNotFound     = errors.New("Item not found in basket")
)

// IsValidationError reports whether err was rejected before reaching any transport.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrInvalidBasketID),
		errors.Is(err, ErrInvalidProductID),
		errors.Is(err, ErrNegativeQuantity),
		errors.Is(err, ErrEmptyPromoCode):
		return true
	}
	return false
}

// IsBusinessRuleError reports whether err is a rule violation such as an unknown promo code.
func IsBusinessRuleError(err error) bool {
	return errors.Is(err, ErrInvalidPromoCode) || errors.Is(err, ErrItemNotFound)
}
