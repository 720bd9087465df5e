// Package wire rebuilds basket graphs from server JSON whose shape is not
// guaranteed. Every read is best effort: a bad field or element is skipped
// and left at its default, and only a document that cannot be entered at all
// is reported as an error.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// ErrUnreadableDocument is returned when the root value is not the expected
// JSON container. The accompanying result is still usable (empty).
var ErrUnreadableDocument = errors.New("unreadable basket document")

// Anomaly describes a value that was skipped or corrected during a decode.
// Anomalies are diagnostics, never errors.
type Anomaly struct {
	Path   string
	Reason string
}

func (a Anomaly) String() string {
	return a.Path + ": " + a.Reason
}

// fieldResult is the outcome of reading one property value.
type fieldResult int

const (
	fieldOK      fieldResult = iota
	fieldSkipped             // value present but unusable, default kept
	fieldIgnored             // unknown or sentinel property
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)


// decoder walks one document. The iterator is always advanced past the value
// that was inspected, whatever its type.
type decoder struct {
	iter      *jsoniter.Iterator
	anomalies []Anomaly
}

func newDecoder(data []byte) *decoder {
	return &decoder{iter: jsoniter.ParseBytes(jsoniter.ConfigDefault, data)}
}

func (d *decoder) note(path, reason string) {
	d.anomalies = append(d.anomalies, Anomaly{Path: path, Reason: reason})
}

func (d *decoder) failed() bool {
	return d.iter.Error != nil
}

// brokenNumber reports a failed scalar read. Reaching the end of input right
// after a number is not a failure: a bare number document ends that way.
func (d *decoder) brokenNumber() bool {
	return d.iter.Error != nil && !errors.Is(d.iter.Error, io.EOF)
}

func (d *decoder) next() jsoniter.ValueType {
	if d.failed() {
		return jsoniter.InvalidValue
	}
	return d.iter.WhatIsNext()
}

// skip discards the value at the cursor and records why.
func (d *decoder) skip(path, reason string) fieldResult {
	d.iter.Skip()
	d.note(path, reason)
	return fieldSkipped
}

// ignore discards the value at the cursor without recording it.
func (d *decoder) ignore() fieldResult {
	d.iter.Skip()
	return fieldIgnored
}

// eachField visits every member of the object at the cursor with a
// lower-cased key. fn must consume the member value. It reports false when
// the cursor does not hold an object, in which case the value is skipped.
// A truncated object ends the walk with whatever fn has populated.
func (d *decoder) eachField(path string, fn func(key, at string) fieldResult) bool {
	switch d.next() {
	case jsoniter.ObjectValue:
	case jsoniter.NilValue:
		d.iter.ReadNil()
		return false
	case jsoniter.InvalidValue:
		d.note(path, "missing value")
		return false
	default:
		d.skip(path, "expected object")
		return false
	}
	d.iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		if it.Error != nil {
			return false
		}
		fn(strings.ToLower(key), path+"."+key)
		return it.Error == nil
	})
	if d.failed() {
		d.note(path, "truncated object")
	}
	return true
}

// readInt64 accepts a JSON number or a numeric string.
func (d *decoder) readInt64(at string) (int64, fieldResult) {
	var raw string
	switch d.next() {
	case jsoniter.NumberValue:
		raw = string(d.iter.ReadNumber())
	case jsoniter.StringValue:
		raw = strings.TrimSpace(d.iter.ReadString())
		if d.failed() {
			return 0, fieldSkipped
		}
	case jsoniter.NilValue:
		d.iter.ReadNil()
		return 0, fieldSkipped
	default:
		return 0, d.skip(at, "expected integer")
	}
	if d.brokenNumber() {
		return 0, fieldSkipped
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, fieldOK
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		d.note(at, fmt.Sprintf("not an integer: %q", raw))
		return 0, fieldSkipped
	}
	switch m := basket.Magnitude(v); {
	case m > 19, v.Exponent() < -basket.MaxAmountScale:
		d.note(at, fmt.Sprintf("integer out of range: %q", raw))
		return 0, fieldSkipped
	case m <= 0:
		// |v| < 1 truncates to zero
		return 0, fieldOK
	}
	if v.Abs().GreaterThan(maxInt64) {
		d.note(at, fmt.Sprintf("integer out of range: %q", raw))
		return 0, fieldSkipped
	}
	return v.IntPart(), fieldOK
}

func (d *decoder) readInt(at string) (int, fieldResult) {
	n, res := d.readInt64(at)
	if res != fieldOK {
		return 0, res
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		d.note(at, "integer out of range")
		return 0, fieldSkipped
	}
	return int(n), fieldOK
}

// readDecimal accepts a JSON number or a numeric string.
func (d *decoder) readDecimal(at string) (decimal.Decimal, fieldResult) {
	var raw string
	switch d.next() {
	case jsoniter.NumberValue:
		raw = string(d.iter.ReadNumber())
	case jsoniter.StringValue:
		raw = strings.TrimSpace(d.iter.ReadString())
		if d.failed() {
			return decimal.Zero, fieldSkipped
		}
	case jsoniter.NilValue:
		d.iter.ReadNil()
		return decimal.Zero, fieldSkipped
	default:
		return decimal.Zero, d.skip(at, "expected number")
	}
	if d.brokenNumber() {
		return decimal.Zero, fieldSkipped
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		d.note(at, fmt.Sprintf("not a number: %q", raw))
		return decimal.Zero, fieldSkipped
	}
	if !basket.AmountInRange(v) {
		d.note(at, fmt.Sprintf("number out of range: %q", raw))
		return decimal.Zero, fieldSkipped
	}
	return v, fieldOK
}

func (d *decoder) readString(at string) (string, fieldResult) {
	switch d.next() {
	case jsoniter.StringValue:
		s := d.iter.ReadString()
		if d.failed() {
			return "", fieldSkipped
		}
		return s, fieldOK
	case jsoniter.NilValue:
		d.iter.ReadNil()
		return "", fieldSkipped
	default:
		return "", d.skip(at, "expected string")
	}
}

// readBool accepts true/false, their string forms, and 0/1.
func (d *decoder) readBool(at string) (bool, fieldResult) {
	switch d.next() {
	case jsoniter.BoolValue:
		return d.iter.ReadBool(), fieldOK
	case jsoniter.StringValue:
		raw := strings.TrimSpace(d.iter.ReadString())
		if b, err := strconv.ParseBool(raw); err == nil {
			return b, fieldOK
		}
		d.note(at, fmt.Sprintf("not a boolean: %q", raw))
		return false, fieldSkipped
	case jsoniter.NumberValue:
		n := d.iter.ReadNumber()
		switch n {
		case json.Number("0"):
			return false, fieldOK
		case json.Number("1"):
			return true, fieldOK
		}
		d.note(at, fmt.Sprintf("not a boolean: %s", n))
		return false, fieldSkipped
	case jsoniter.NilValue:
		d.iter.ReadNil()
		return false, fieldSkipped
	default:
		return false, d.skip(at, "expected boolean")
	}
}

// assign stores v into dst when res is fieldOK.
func assign[T any](dst *T, v T, res fieldResult) fieldResult {
	if res == fieldOK {
		*dst = v
	}
	return res
}

// aliasSlot keeps the value of the highest-priority alias seen so far, so the
// outcome does not depend on property order. Lower rank wins.
type aliasSlot struct {
	value string
	rank  int
}

func (s *aliasSlot) offer(rank int, v string) {
	if strings.TrimSpace(v) == "" {
		return
	}
	if s.rank == 0 || rank < s.rank {
		s.value, s.rank = v, rank
	}
}
