package wire

import (
	"fmt"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// Display-name aliases in priority order (1 wins).
var (
	refNameAliases = map[string]int{"displaytitle": 1, "name": 2}
	tagNameAliases = map[string]int{"name": 1, "title": 2, "displaytitle": 3}
)

// DecodeProduct rebuilds a product snapshot.
func DecodeProduct(data []byte) (basket.ProductSnapshot, []Anomaly, error) {
	d := newDecoder(data)
	p, ok := d.product("product")
	if !ok {
		return basket.ProductSnapshot{}, d.anomalies, fmt.Errorf("decode product: %w", ErrUnreadableDocument)
	}
	return p, d.anomalies, nil
}

// product decodes the object at the cursor. ok is false when the value is
// null or not an object; the value is consumed either way.
func (d *decoder) product(at string) (basket.ProductSnapshot, bool) {
	p := basket.ProductSnapshot{Tags: []basket.TagRef{}, Images: []basket.ImageRef{}}
	ok := d.eachField(at, func(key, fieldAt string) fieldResult {
		switch key {
		case "id":
			v, res := d.readInt64(fieldAt)
			return assign(&p.ID, v, res)
		case "title":
			v, res := d.readString(fieldAt)
			return assign(&p.Title, v, res)
		case "description":
			v, res := d.readString(fieldAt)
			return assign(&p.Description, v, res)
		case "price":
			v, res := d.readDecimal(fieldAt)
			return assign(&p.Price, v, res)
		case "sellerid":
			v, res := d.readInt64(fieldAt)
			return assign(&p.SellerID, v, res)
		case "seller":
			if u, ok := d.user(fieldAt); ok {
				p.Seller = basket.Some(u)
				return fieldOK
			}
			return fieldSkipped
		case "conditionid":
			v, res := d.readInt64(fieldAt)
			return assign(&p.ConditionID, v, res)
		case "condition":
			id, name, desc, ok := d.namedRef(fieldAt)
			if ok {
				p.Condition = basket.Some(basket.ConditionRef{ID: id, DisplayTitle: name, Description: desc})
				return fieldOK
			}
			return fieldSkipped
		case "categoryid":
			v, res := d.readInt64(fieldAt)
			return assign(&p.CategoryID, v, res)
		case "category":
			id, name, desc, ok := d.namedRef(fieldAt)
			if ok {
				p.Category = basket.Some(basket.CategoryRef{ID: id, DisplayTitle: name, Description: desc})
				return fieldOK
			}
			return fieldSkipped
		case "tags":
			p.Tags = uniqueTags(decodeCollection(d, fieldAt, d.tag))
			return fieldOK
		case "images":
			p.Images = decodeCollection(d, fieldAt, d.image)
			return fieldOK
		default:
			return d.ignore()
		}
	})
	if !ok {
		return basket.ProductSnapshot{}, false
	}
	// A nested object supplies the id when the flat foreign key is missing.
	if u, ok := p.Seller.Get(); ok && p.SellerID == 0 {
		p.SellerID = u.ID
	}
	if c, ok := p.Condition.Get(); ok && p.ConditionID == 0 {
		p.ConditionID = c.ID
	}
	if c, ok := p.Category.Get(); ok && p.CategoryID == 0 {
		p.CategoryID = c.ID
	}
	return p, true
}

func (d *decoder) user(at string) (basket.UserRef, bool) {
	var u basket.UserRef
	ok := d.eachField(at, func(key, fieldAt string) fieldResult {
		switch key {
		case "id":
			v, res := d.readInt64(fieldAt)
			return assign(&u.ID, v, res)
		case "username":
			v, res := d.readString(fieldAt)
			return assign(&u.Username, v, res)
		case "email":
			v, res := d.readString(fieldAt)
			return assign(&u.Email, v, res)
		default:
			return d.ignore()
		}
	})
	return u, ok
}

// namedRef decodes the shared shape of condition and category objects.
func (d *decoder) namedRef(at string) (id int64, name, desc string, ok bool) {
	var title aliasSlot
	ok = d.eachField(at, func(key, fieldAt string) fieldResult {
		if rank, alias := refNameAliases[key]; alias {
			v, res := d.readString(fieldAt)
			if res == fieldOK {
				title.offer(rank, v)
			}
			return res
		}
		switch key {
		case "id":
			v, res := d.readInt64(fieldAt)
			return assign(&id, v, res)
		case "description":
			v, res := d.readString(fieldAt)
			return assign(&desc, v, res)
		default:
			return d.ignore()
		}
	})
	return id, title.value, desc, ok
}

func (d *decoder) tag(at string) basket.TagRef {
	var t basket.TagRef
	var name aliasSlot
	d.eachField(at, func(key, fieldAt string) fieldResult {
		if rank, alias := tagNameAliases[key]; alias {
			v, res := d.readString(fieldAt)
			if res == fieldOK {
				name.offer(rank, v)
			}
			return res
		}
		if key == "id" {
			v, res := d.readInt64(fieldAt)
			return assign(&t.ID, v, res)
		}
		return d.ignore()
	})
	t.Name = name.value
	return t
}

func (d *decoder) image(at string) basket.ImageRef {
	var img basket.ImageRef
	d.eachField(at, func(key, fieldAt string) fieldResult {
		if key == "url" {
			v, res := d.readString(fieldAt)
			return assign(&img.URL, v, res)
		}
		// id is not kept
		return d.ignore()
	})
	return img
}

// uniqueTags drops repeated tag ids, keeping the first occurrence. Tags
// without an id are kept as they are.
func uniqueTags(tags []basket.TagRef) []basket.TagRef {
	seen := make(map[int64]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if t.ID != 0 {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
		}
		out = append(out, t)
	}
	return out
}
