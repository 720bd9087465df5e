package wire

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// valuesKey holds the real array inside a reference-preserving envelope.
const valuesKey = "$values"

// Shape is the wire pattern used for a collection.
type Shape int

const (
	ShapeNone     Shape = iota // null, missing or an unexpected token
	ShapeArray                 // [ ... ]
	ShapeEnvelope              // { "$id": "1", "$values": [ ... ] }
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeEnvelope:
		return "envelope"
	default:
		return "none"
	}
}

// resolveShape inspects the cursor without consuming anything.
func (d *decoder) resolveShape() Shape {
	switch d.next() {
	case jsoniter.ArrayValue:
		return ShapeArray
	case jsoniter.ObjectValue:
		return ShapeEnvelope
	default:
		return ShapeNone
	}
}

// decodeCollection reads the collection at the cursor in either shape and
// decodes each element with one. The result is never nil. one must consume
// its element and return a default-filled value when the element is bad, so
// the length of the result matches the wire array.
func decodeCollection[T any](d *decoder, path string, one func(at string) T) []T {
	out := []T{}
	switch d.resolveShape() {
	case ShapeArray:
		d.eachElement(path, func(at string) { out = append(out, one(at)) })
	case ShapeEnvelope:
		found := false
		d.iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			if it.Error != nil {
				return false
			}
			if !found && strings.EqualFold(key, valuesKey) {
				if d.next() == jsoniter.ArrayValue {
					found = true
					d.eachElement(path+"."+valuesKey, func(at string) { out = append(out, one(at)) })
				} else {
					d.skip(path+"."+valuesKey, "expected array")
				}
				return it.Error == nil
			}
			it.Skip()
			return it.Error == nil
		})
		if !found {
			d.note(path, "envelope without "+valuesKey)
		}
	default:
		switch d.next() {
		case jsoniter.NilValue:
			d.iter.ReadNil()
		case jsoniter.InvalidValue:
			d.note(path, "missing collection")
		default:
			d.skip(path, "expected array or envelope")
		}
	}
	return out
}

// eachElement walks a bare array. A truncated array keeps the elements read
// so far.
func (d *decoder) eachElement(path string, fn func(at string)) {
	i := 0
	d.iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		if it.Error != nil {
			return false
		}
		fn(path + "[" + strconv.Itoa(i) + "]")
		i++
		return it.Error == nil
	})
	if d.failed() {
		d.note(path, "truncated array")
	}
}
