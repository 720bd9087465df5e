package basket

import "github.com/shopspring/decimal"

// MaxQuantityPerItem is the hard upper bound for a single basket line.
const MaxQuantityPerItem = 10

// Basket is the per-buyer aggregate of items pending checkout.
// At most one item exists per ProductID.
type Basket struct {
	ID      int64        `json:"id"`
	BuyerID int64        `json:"buyerId,omitempty"` // set by the caller, the wire value is ignored
	Items   []BasketItem `json:"items"`
}

// BasketItem is one product line with its quantity and captured unit price.
type BasketItem struct {
	ID        int64                     `json:"id"`
	BasketID  int64                     `json:"basketId"`
	ProductID int64                     `json:"productId"`
	Quantity  int                       `json:"quantity"`
	Price     decimal.Decimal           `json:"price"`
	Product   Optional[ProductSnapshot] `json:"product"`
}

// ProductSnapshot is the product as it looked when the basket was read.
type ProductSnapshot struct {
	ID          int64                  `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Price       decimal.Decimal        `json:"price"`
	SellerID    int64                  `json:"sellerId"`
	Seller      Optional[UserRef]      `json:"seller"`
	ConditionID int64                  `json:"conditionId"`
	Condition   Optional[ConditionRef] `json:"condition"`
	CategoryID  int64                  `json:"categoryId"`
	Category    Optional[CategoryRef]  `json:"category"`
	Tags        []TagRef               `json:"tags"`
	Images      []ImageRef             `json:"images"`
}

// UserRef identifies the seller of a product.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ConditionRef describes the condition of a listed product (new, used, ...).
type ConditionRef struct {
	ID           int64  `json:"id"`
	DisplayTitle string `json:"displayTitle"`
	Description  string `json:"description"`
}

// CategoryRef is the catalog category of a product.
type CategoryRef struct {
	ID           int64  `json:"id"`
	DisplayTitle string `json:"displayTitle"`
	Description  string `json:"description"`
}

// TagRef is a free-form label attached to a product.
type TagRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ImageRef points at a product image.
type ImageRef struct {
	URL string `json:"url"`
}

// Totals is derived on demand and never stored.
// TotalAmount always equals Subtotal - Discount.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// MaxAmountScale bounds the exponent and the integer digits of prices and
// rates. Comparing or adding decimals rescales them, which costs 10^|exponent|.
const MaxAmountScale = 28

// Magnitude returns the number of integer digits of v, zero or less when
// |v| < 1. It does not rescale v.
func Magnitude(v decimal.Decimal) int64 {
	if v.IsZero() {
		return 0
	}
	return int64(v.NumDigits()) + int64(v.Exponent())
}

// AmountInRange reports whether v is small enough to take part in totals.
func AmountInRange(v decimal.Decimal) bool {
	exp := v.Exponent()
	return exp <= MaxAmountScale && exp >= -MaxAmountScale && Magnitude(v) <= MaxAmountScale
}

// ZeroTotals returns the totals of an empty basket.
func ZeroTotals() Totals {
	return Totals{Subtotal: decimal.Zero, Discount: decimal.Zero, TotalAmount: decimal.Zero}
}

// Empty returns a basket with no items.
func Empty(id int64) Basket {
	return Basket{ID: id, Items: []BasketItem{}}
}

// Find returns the index of the item for productID, or -1.
func (b *Basket) Find(productID int64) int {
	for i := range b.Items {
		if b.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Item returns a pointer to the item for productID.
func (b *Basket) Item(productID int64) (*BasketItem, bool) {
	i := b.Find(productID)
	if i < 0 {
		return nil, false
	}
	return &b.Items[i], true
}

// LineTotal is Price x Quantity for one item.
func (it BasketItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}
