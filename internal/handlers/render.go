package handlers

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// document renders b with catalog snapshots attached, either as plain JSON
// or in the reference-preserving $id/$values shape.
func (h *basketHandler) document(b basket.Basket) any {
	for i := range b.Items {
		if p, ok := h.cfg.Catalog.Lookup(b.Items[i].ProductID); ok {
			b.Items[i].Product = basket.Some(p)
		}
	}
	if !h.cfg.PreserveReferences {
		return b
	}
	var refs refCounter
	return refs.basket(b)
}

type envelope[T any] struct {
	RefID  string `json:"$id"`
	Values []T    `json:"$values"`
}

type basketDoc struct {
	RefID   string            `json:"$id"`
	ID      int64             `json:"id"`
	BuyerID int64             `json:"buyerId"`
	Items   envelope[itemDoc] `json:"items"`
}

type itemDoc struct {
	RefID     string          `json:"$id"`
	ID        int64           `json:"id"`
	BasketID  int64           `json:"basketId"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *productDoc     `json:"product"`
}

type productDoc struct {
	RefID       string                    `json:"$id"`
	ID          int64                     `json:"id"`
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	Price       decimal.Decimal           `json:"price"`
	SellerID    int64                     `json:"sellerId"`
	Seller      *basket.UserRef           `json:"seller"`
	ConditionID int64                     `json:"conditionId"`
	Condition   *basket.ConditionRef      `json:"condition"`
	CategoryID  int64                     `json:"categoryId"`
	Category    *basket.CategoryRef       `json:"category"`
	Tags        envelope[basket.TagRef]   `json:"tags"`
	Images      envelope[basket.ImageRef] `json:"images"`
}

// refCounter hands out $id values in document order.
type refCounter int

func (r *refCounter) next() string {
	*r++
	return strconv.Itoa(int(*r))
}

func (r *refCounter) basket(b basket.Basket) basketDoc {
	doc := basketDoc{RefID: r.next(), ID: b.ID, BuyerID: b.BuyerID}
	doc.Items = envelope[itemDoc]{RefID: r.next(), Values: make([]itemDoc, 0, len(b.Items))}
	for _, it := range b.Items {
		item := itemDoc{
			RefID:     r.next(),
			ID:        it.ID,
			BasketID:  it.BasketID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
		if p, ok := it.Product.Get(); ok {
			item.Product = r.product(p)
		}
		doc.Items.Values = append(doc.Items.Values, item)
	}
	return doc
}

func (r *refCounter) product(p basket.ProductSnapshot) *productDoc {
	doc := &productDoc{
		RefID:       r.next(),
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		SellerID:    p.SellerID,
		ConditionID: p.ConditionID,
		CategoryID:  p.CategoryID,
	}
	if s, ok := p.Seller.Get(); ok {
		doc.Seller = &s
	}
	if c, ok := p.Condition.Get(); ok {
		doc.Condition = &c
	}
	if c, ok := p.Category.Get(); ok {
		doc.Category = &c
	}
	doc.Tags = envelope[basket.TagRef]{RefID: r.next(), Values: nonNil(p.Tags)}
	doc.Images = envelope[basket.ImageRef]{RefID: r.next(), Values: nonNil(p.Images)}
	return doc
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
