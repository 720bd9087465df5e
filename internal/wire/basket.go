package wire

import (
	"fmt"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// Result is a decoded basket with the anomalies recovered on the way.
type Result struct {
	Basket    basket.Basket
	Anomalies []Anomaly
}

// DecodeBasket rebuilds a basket from data. It returns ErrUnreadableDocument
// only when the root is not an object; the basket in the result is then empty.
// Decoding the same bytes always yields the same graph.
func DecodeBasket(data []byte) (Result, error) {
	d := newDecoder(data)
	b := basket.Empty(0)
	if !d.eachField("basket", func(key, at string) fieldResult {
		return d.basketField(&b, key, at)
	}) {
		return Result{Basket: basket.Empty(0), Anomalies: d.anomalies}, fmt.Errorf("decode basket: %w", ErrUnreadableDocument)
	}
	return Result{Basket: b, Anomalies: d.anomalies}, nil
}

// DecodeBasketItem rebuilds a single basket line.
func DecodeBasketItem(data []byte) (basket.BasketItem, []Anomaly, error) {
	d := newDecoder(data)
	var it basket.BasketItem
	if !d.eachField("item", func(key, at string) fieldResult {
		return d.itemField(&it, key, at)
	}) {
		return basket.BasketItem{}, d.anomalies, fmt.Errorf("decode basket item: %w", ErrUnreadableDocument)
	}
	d.normalizeItem(&it, "item")
	return it, d.anomalies, nil
}

func (d *decoder) basketField(b *basket.Basket, key, at string) fieldResult {
	switch key {
	case "id":
		v, res := d.readInt64(at)
		return assign(&b.ID, v, res)
	case "items":
		b.Items = d.uniqueItems(decodeCollection(d, at, d.item), at)
		return fieldOK
	default:
		// buyerId, $id and unknown properties
		return d.ignore()
	}
}

// uniqueItems keeps the first line of each product and drops later lines for
// the same product id. Lines without a product id are malformed and kept.
func (d *decoder) uniqueItems(items []basket.BasketItem, at string) []basket.BasketItem {
	seen := make(map[int64]bool, len(items))
	out := items[:0]
	for i, it := range items {
		if it.ProductID > 0 {
			if seen[it.ProductID] {
				d.note(fmt.Sprintf("%s[%d]", at, i), fmt.Sprintf("duplicate line for product %d dropped", it.ProductID))
				continue
			}
			seen[it.ProductID] = true
		}
		out = append(out, it)
	}
	return out
}

// item decodes one collection element. Non-object elements become a
// default-filled item.
func (d *decoder) item(at string) basket.BasketItem {
	var it basket.BasketItem
	d.eachField(at, func(key, fieldAt string) fieldResult {
		return d.itemField(&it, key, fieldAt)
	})
	d.normalizeItem(&it, at)
	return it
}

func (d *decoder) itemField(it *basket.BasketItem, key, at string) fieldResult {
	switch key {
	case "id":
		v, res := d.readInt64(at)
		return assign(&it.ID, v, res)
	case "basketid":
		v, res := d.readInt64(at)
		return assign(&it.BasketID, v, res)
	case "productid":
		v, res := d.readInt64(at)
		return assign(&it.ProductID, v, res)
	case "quantity":
		v, res := d.readInt(at)
		return assign(&it.Quantity, v, res)
	case "price":
		v, res := d.readDecimal(at)
		return assign(&it.Price, v, res)
	case "product":
		p, ok := d.product(at)
		if ok {
			it.Product = basket.Some(p)
			return fieldOK
		}
		return fieldSkipped
	default:
		return d.ignore()
	}
}

// normalizeItem keeps the quantity within the basket bounds.
func (d *decoder) normalizeItem(it *basket.BasketItem, at string) {
	if q := basket.ClampQuantity(it.Quantity); q != it.Quantity {
		d.note(at+".quantity", fmt.Sprintf("quantity %d clamped to %d", it.Quantity, q))
		it.Quantity = q
	}
}
