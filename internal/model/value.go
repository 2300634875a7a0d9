package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType discriminates the typed column a dynamic attribute lives in.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldJSON    FieldType = "json"
	FieldDate    FieldType = "date"
)

// FieldTypes lists every supported discriminator in column order.
var FieldTypes = []FieldType{FieldText, FieldNumber, FieldBoolean, FieldJSON, FieldDate}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// Value is a sealed tagged union holding exactly one typed dynamic value.
// Only Text, Number, Boolean, JSON and Date implement it.
type Value interface {
	// Type returns the discriminator matching the populated column.
	Type() FieldType
	// Native returns a plain Go value suitable for map views and JSON output.
	Native() any
	value() // sealed
}

// Text is a text-typed value.
type Text string

func (Text) value() {}
func (Text) Type() FieldType { return FieldText }
func (t Text) Native() any { return string(t) }

// Number is an exact decimal value. Decimal keeps round-trips lossless.
type Number struct {
	Decimal decimal.Decimal
}

func (Number) value() {}
func (Number) Type() FieldType { return FieldNumber }

// Native returns the exact decimal text as a json.Number, which marshals as
// an unquoted JSON number.
func (n Number) Native() any { return json.Number(n.Decimal.String()) }

// Boolean is a boolean-typed value.
type Boolean bool

func (Boolean) value() {}
func (Boolean) Type() FieldType { return FieldBoolean }
func (b Boolean) Native() any { return bool(b) }

// JSON holds compact JSON with map keys in sorted order.
type JSON struct {
	Raw json.RawMessage
}

func (JSON) value() {}
func (JSON) Type() FieldType { return FieldJSON }

// Native decodes the stored document into plain Go values. Numbers decode
// as json.Number so large integers survive the round trip.
func (j JSON) Native() any {
	dec := json.NewDecoder(bytes.NewReader(j.Raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// Date is a date/time value, always held in UTC.
type Date time.Time

func (Date) value() {}
func (Date) Type() FieldType { return FieldDate }
func (d Date) Native() any { return time.Time(d).UTC() }

// NewNumber creates a Number from an int64.
func NewNumber(n int64) Number {
	return Number{Decimal: decimal.NewFromInt(n)}
}

// NewJSON creates a JSON value from any marshalable document.
func NewJSON(v any) (JSON, error) {
	raw, err := canonicalJSON(v)
	if err != nil {
		return JSON{}, err
	}
	return JSON{Raw: raw}, nil
}

// ParseValue converts a loosely typed payload into the Value selected by ft.
// A payload whose Go type does not match the declared field type is rejected
// with a validation error; no coercion between text and number is attempted.
func ParseValue(ft FieldType, raw any) (Value, error) {
	if !ft.Valid() {
		return nil, Validation("field_type", "unknown field_type %q (expected one of %v)", ft, FieldTypes)
	}
	if raw == nil {
		return nil, Validation("value", "%s field requires a value", ft)
	}
	switch ft {
	case FieldText:
		if s, ok := raw.(string); ok {
			return Text(s), nil
		}
	case FieldNumber:
		if d, ok := toDecimal(raw); ok {
			return Number{Decimal: d}, nil
		}
	case FieldBoolean:
		if b, ok := raw.(bool); ok {
			return Boolean(b), nil
		}
	case FieldJSON:
		j, err := NewJSON(raw)
		if err != nil {
			return nil, Validation("value", "json field: %v", err)
		}
		return j, nil
	case FieldDate:
		switch v := raw.(type) {
		case time.Time:
			return Date(v.UTC()), nil
		case string:
			t, err := ParseDate(v)
			if err != nil {
				return nil, Validation("value", "date field: %v", err)
			}
			return Date(t), nil
		}
	}
	return nil, Validation("value", "field_type %q does not accept a %T value", ft, raw)
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
}

func toDecimal(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	}
	return decimal.Decimal{}, false
}

// canonicalJSON marshals v compactly without HTML escaping. encoding/json
// already emits map keys in sorted order.
func canonicalJSON(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
		if dec.More() {
			return nil, fmt.Errorf("trailing data after JSON document")
		}
		v = doc
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ValueColumns is the typed-column projection of a Value. Exactly one
// pointer is non-nil for a valid value.
type ValueColumns struct {
	Text    *string
	Number  *string
	Boolean *bool
	JSON    *string
	Date    *string
}

// Columns projects v onto its typed column.
func Columns(v Value) ValueColumns {
	var c ValueColumns
	switch val := v.(type) {
	case Text:
		s := string(val)
		c.Text = &s
	case Number:
		s := val.Decimal.String()
		c.Number = &s
	case Boolean:
		b := bool(val)
		c.Boolean = &b
	case JSON:
		s := string(val.Raw)
		c.JSON = &s
	case Date:
		s := FormatTime(time.Time(val))
		c.Date = &s
	}
	return c
}

// populated counts the non-nil columns.
func (c ValueColumns) populated() int {
	n := 0
	if c.Text != nil {
		n++
	}
	if c.Number != nil {
		n++
	}
	if c.Boolean != nil {
		n++
	}
	if c.JSON != nil {
		n++
	}
	if c.Date != nil {
		n++
	}
	return n
}

// ValueFromColumns rebuilds a Value from stored columns, checking that
// exactly the column selected by ft is populated.
func ValueFromColumns(ft FieldType, c ValueColumns) (Value, error) {
	if c.populated() != 1 {
		return nil, fmt.Errorf("expected exactly one populated value column, found %d", c.populated())
	}
	switch ft {
	case FieldText:
		if c.Text != nil {
			return Text(*c.Text), nil
		}
	case FieldNumber:
		if c.Number != nil {
			d, err := decimal.NewFromString(*c.Number)
			if err != nil {
				return nil, fmt.Errorf("number column: %w", err)
			}
			return Number{Decimal: d}, nil
		}
	case FieldBoolean:
		if c.Boolean != nil {
			return Boolean(*c.Boolean), nil
		}
	case FieldJSON:
		if c.JSON != nil {
			return JSON{Raw: json.RawMessage(*c.JSON)}, nil
		}
	case FieldDate:
		if c.Date != nil {
			t, err := ParseTime(*c.Date)
			if err != nil {
				return nil, fmt.Errorf("date column: %w", err)
			}
			return Date(t), nil
		}
	default:
		return nil, fmt.Errorf("unknown field type %q", ft)
	}
	return nil, fmt.Errorf("populated column does not match field type %q", ft)
}
