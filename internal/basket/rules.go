package basket

import "github.com/shopspring/decimal"

// ClampQuantity constrains q into [0, MaxQuantityPerItem].
func ClampQuantity(q int) int {
	return clamp(q, 0, MaxQuantityPerItem)
}

func clamp(q, lo, hi int) int {
	if q < lo {
		return lo
	}
	if q > hi {
		return hi
	}
	return q
}

// AddItem sets the quantity of productID, creating the line when it does not
// exist yet. The quantity is clamped into [0, MaxQuantityPerItem]. price is
// captured only when a new line is created.
//
// The returned pointer aliases b.Items and is valid until the next mutation.
func AddItem(b *Basket, productID int64, quantity int, price decimal.Decimal) (*BasketItem, error) {
	if productID <= 0 {
		return nil, ErrInvalidProductID
	}
	q := ClampQuantity(quantity)
	if it, ok := b.Item(productID); ok {
		it.Quantity = q
		return it, nil
	}
	b.Items = append(b.Items, BasketItem{
		ID:        nextItemID(b),
		BasketID:  b.ID,
		ProductID: productID,
		Quantity:  q,
		Price:     price,
	})
	return &b.Items[len(b.Items)-1], nil
}

// UpdateQuantity replaces the quantity of an existing line. Zero removes the
// line, values above the maximum are clamped, negative values are rejected.
func UpdateQuantity(b *Basket, productID int64, quantity int) error {
	if productID <= 0 {
		return ErrInvalidProductID
	}
	if quantity < 0 {
		return ErrNegativeQuantity
	}
	i := b.Find(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity == 0 {
		b.removeAt(i)
		return nil
	}
	b.Items[i].Quantity = ClampQuantity(quantity)
	return nil
}

// IncreaseQuantity adds one to a line, staying within [1, MaxQuantityPerItem].
func IncreaseQuantity(b *Basket, productID int64) error {
	it, ok := b.Item(productID)
	if !ok {
		return ErrItemNotFound
	}
	it.Quantity = clamp(it.Quantity+1, 1, MaxQuantityPerItem)
	return nil
}

// DecreaseQuantity subtracts one from a line. A line at quantity 1 is removed
// instead of reaching zero.
func DecreaseQuantity(b *Basket, productID int64) error {
	i := b.Find(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if b.Items[i].Quantity <= 1 {
		b.removeAt(i)
		return nil
	}
	b.Items[i].Quantity = clamp(b.Items[i].Quantity-1, 1, MaxQuantityPerItem)
	return nil
}

// RemoveItem deletes the line for productID and reports whether it existed.
func RemoveItem(b *Basket, productID int64) bool {
	i := b.Find(productID)
	if i < 0 {
		return false
	}
	b.removeAt(i)
	return true
}

// Clear removes every line.
func Clear(b *Basket) {
	b.Items = []BasketItem{}
}

// ValidateBeforeCheckout reports whether b may proceed to order placement:
// at least one item, and every item with a positive quantity and price.
func ValidateBeforeCheckout(b Basket) bool {
	if len(b.Items) == 0 {
		return false
	}
	for _, it := range b.Items {
		if it.Quantity <= 0 || !it.Price.IsPositive() {
			return false
		}
	}
	return true
}

// InvalidItems returns the product ids of lines that block checkout.
func InvalidItems(b Basket) []int64 {
	var out []int64
	for _, it := range b.Items {
		if it.Quantity <= 0 || !it.Price.IsPositive() {
			out = append(out, it.ProductID)
		}
	}
	return out
}

// ApplyPromoCode validates code for b and returns its discount rate.
func ApplyPromoCode(_ Basket, code string) (decimal.Decimal, error) {
	return ResolvePromoCode(code)
}

// CalculateTotals sums Price x Quantity over b. A negative sum, which only
// lines with negative prices can produce, is clamped to zero, the same rule
// applied to server totals. An unknown or blank promoCode is ignored and
// yields no discount.
func CalculateTotals(b Basket, promoCode string) Totals {
	subtotal := decimal.Zero
	for _, it := range b.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	discount := decimal.Zero
	if rate, err := ResolvePromoCode(promoCode); err == nil {
		discount = subtotal.Mul(rate)
	}
	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		TotalAmount: subtotal.Sub(discount),
	}
}

func (b *Basket) removeAt(i int) {
	b.Items = append(b.Items[:i], b.Items[i+1:]...)
}

func nextItemID(b *Basket) int64 {
	var highest int64
	for _, it := range b.Items {
		if it.ID > highest {
			highest = it.ID
		}
	}
	return highest + 1
}
