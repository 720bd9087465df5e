package basket

import (
	"strings"

	"github.com/shopspring/decimal"
)

var promoRates = map[string]decimal.Decimal{
	"DISCOUNT10": decimal.RequireFromString("0.10"),
	"WELCOME20":  decimal.RequireFromString("0.20"),
	"FLASH30":    decimal.RequireFromString("0.30"),
}

// NormalizePromoCode trims and upper-cases a code.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ResolvePromoCode returns the discount rate for code.
// Blank codes fail with ErrEmptyPromoCode, unknown ones with ErrInvalidPromoCode.
func ResolvePromoCode(code string) (decimal.Decimal, error) {
	norm := NormalizePromoCode(code)
	if norm == "" {
		return decimal.Zero, ErrEmptyPromoCode
	}
	rate, ok := promoRates[norm]
	if !ok {
		return decimal.Zero, ErrInvalidPromoCode
	}
	return rate, nil
}
