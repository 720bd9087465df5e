package wire

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// DecodeTotals reads {subtotal, discount, totalAmount}. The returned totals
// always satisfy TotalAmount = Subtotal - Discount; a disagreeing server
// value is recorded as an anomaly and replaced.
func DecodeTotals(data []byte) (basket.Totals, []Anomaly, error) {
	d := newDecoder(data)
	t := basket.ZeroTotals()
	var total decimal.Decimal
	var haveTotal bool
	ok := d.eachField("totals", func(key, at string) fieldResult {
		switch key {
		case "subtotal":
			v, res := d.readDecimal(at)
			return assign(&t.Subtotal, v, res)
		case "discount":
			v, res := d.readDecimal(at)
			return assign(&t.Discount, v, res)
		case "totalamount":
			v, res := d.readDecimal(at)
			haveTotal = res == fieldOK
			return assign(&total, v, res)
		default:
			return d.ignore()
		}
	})
	if !ok {
		return basket.ZeroTotals(), d.anomalies, fmt.Errorf("decode totals: %w", ErrUnreadableDocument)
	}
	if t.Subtotal.IsNegative() {
		d.note("totals.subtotal", "negative subtotal")
		t.Subtotal = decimal.Zero
	}
	if t.Discount.IsNegative() {
		d.note("totals.discount", "negative discount")
		t.Discount = decimal.Zero
	}
	t.TotalAmount = t.Subtotal.Sub(t.Discount)
	if haveTotal && !total.Equal(t.TotalAmount) {
		d.note("totals.totalAmount", fmt.Sprintf("server total %s replaced by %s", total, t.TotalAmount))
	}
	return t, d.anomalies, nil
}

// DecodeDiscountRate reads {discountRate} or a bare number.
func DecodeDiscountRate(data []byte) (decimal.Decimal, []Anomaly, error) {
	d := newDecoder(data)
	if d.resolveShape() != ShapeEnvelope {
		v, res := d.readDecimal("discountRate")
		if res != fieldOK {
			return decimal.Zero, d.anomalies, fmt.Errorf("decode discount rate: %w", ErrUnreadableDocument)
		}
		return v, d.anomalies, nil
	}
	rate := decimal.Zero
	found := false
	d.eachField("promo", func(key, at string) fieldResult {
		if key == "discountrate" {
			v, res := d.readDecimal(at)
			found = res == fieldOK
			return assign(&rate, v, res)
		}
		return d.ignore()
	})
	if !found {
		return decimal.Zero, d.anomalies, fmt.Errorf("decode discount rate: %w", ErrUnreadableDocument)
	}
	return rate, d.anomalies, nil
}

// DecodeBool reads a boolean document (true, "true", 1, ...).
func DecodeBool(data []byte) (bool, error) {
	d := newDecoder(data)
	v, res := d.readBool("value")
	if res != fieldOK {
		return false, fmt.Errorf("decode boolean: %w", ErrUnreadableDocument)
	}
	return v, nil
}

// DecodeErrorCode reads the "error" member of an API error body. It returns
// "" when the body carries no readable code.
func DecodeErrorCode(data []byte) string {
	d := newDecoder(data)
	var code string
	d.eachField("error", func(key, at string) fieldResult {
		if key == "error" {
			v, res := d.readString(at)
			return assign(&code, v, res)
		}
		return d.ignore()
	})
	return code
}
