package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// CatalogProduct is one product entry of the YAML catalog.
type CatalogProduct struct {
	ID          int64        `yaml:"id"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Price       string       `yaml:"price"` // decimal string
	Seller      *CatalogUser `yaml:"seller"`
	Condition   *CatalogRef  `yaml:"condition"`
	Category    *CatalogRef  `yaml:"category"`
	Tags        []CatalogTag `yaml:"tags"`
	Images      []string     `yaml:"images"`
}

type CatalogUser struct {
	ID       int64  `yaml:"id"`
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
}

type CatalogRef struct {
	ID           int64  `yaml:"id"`
	DisplayTitle string `yaml:"display_title"`
	Description  string `yaml:"description"`
}

type CatalogTag struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Catalog indexes product snapshots by id.
type Catalog map[int64]basket.ProductSnapshot

// Lookup returns the snapshot of productID.
func (c Catalog) Lookup(productID int64) (basket.ProductSnapshot, bool) {
	p, ok := c[productID]
	return p, ok
}

// ProductCatalog converts the YAML catalog. Ids must be positive and unique
// and prices non-negative decimals.
func (c *Config) ProductCatalog() (Catalog, error) {
	out := make(Catalog, len(c.Catalog))
	for i, p := range c.Catalog {
		if p.ID <= 0 {
			return nil, fmt.Errorf("catalog[%d]: product id must be positive", i)
		}
		if _, dup := out[p.ID]; dup {
			return nil, fmt.Errorf("catalog[%d]: duplicate product id %d", i, p.ID)
		}
		snap, err := p.snapshot()
		if err != nil {
			return nil, fmt.Errorf("catalog[%d]: %w", i, err)
		}
		out[p.ID] = snap
	}
	return out, nil
}

func (p CatalogProduct) snapshot() (basket.ProductSnapshot, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return basket.ProductSnapshot{}, fmt.Errorf("product %d: bad price %q: %w", p.ID, p.Price, err)
	}
	if !basket.AmountInRange(price) {
		return basket.ProductSnapshot{}, fmt.Errorf("product %d: price %q out of range", p.ID, p.Price)
	}
	if price.IsNegative() {
		return basket.ProductSnapshot{}, fmt.Errorf("product %d: negative price", p.ID)
	}

	s := basket.ProductSnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       price,
		Tags:        make([]basket.TagRef, 0, len(p.Tags)),
		Images:      make([]basket.ImageRef, 0, len(p.Images)),
	}
	if p.Seller != nil {
		s.SellerID = p.Seller.ID
		s.Seller = basket.Some(basket.UserRef{ID: p.Seller.ID, Username: p.Seller.Username, Email: p.Seller.Email})
	}
	if p.Condition != nil {
		s.ConditionID = p.Condition.ID
		s.Condition = basket.Some(basket.ConditionRef{ID: p.Condition.ID, DisplayTitle: p.Condition.DisplayTitle, Description: p.Condition.Description})
	}
	if p.Category != nil {
		s.CategoryID = p.Category.ID
		s.Category = basket.Some(basket.CategoryRef{ID: p.Category.ID, DisplayTitle: p.Category.DisplayTitle, Description: p.Category.Description})
	}
	for _, t := range p.Tags {
		s.Tags = append(s.Tags, basket.TagRef{ID: t.ID, Name: t.Name})
	}
	for _, u := range p.Images {
		s.Images = append(s.Images, basket.ImageRef{URL: u})
	}
	return s, nil
}
