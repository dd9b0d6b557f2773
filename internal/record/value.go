package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the fixed ISO-8601 rendering used for timestamps in payloads and exports.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Kind enumerates the closed set of value shapes a record field can hold.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a single field value inside a record.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
	m    *Map
	list []Value
}

func Null() Value               { return Value{} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Number(n float64) Value    { return Value{kind: KindNumber, num: n} }
func Int(n int) Value           { return Value{kind: KindNumber, num: float64(n)} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value    { return Value{kind: KindTime, t: t.UTC()} }
func MapValue(m *Map) Value     { return Value{kind: KindMap, m: m} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Kind reports the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindTime }
func (v Value) AsMap() (*Map, bool)       { return v.m, v.kind == KindMap }
func (v Value) AsList() ([]Value, bool)   { return v.list, v.kind == KindList }

// Equal compares two values structurally. Map comparison respects key order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindTime:
		return v.t.Equal(other.t)
	case KindMap:
		return v.m.Equal(other.m)
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Text renders the value as display text: null is empty, lists are joined
// with ", " and maps are rendered as JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.UTC().Format(TimeLayout)
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			parts = append(parts, item.Text())
		}
		return strings.Join(parts, ", ")
	case KindMap:
		data, err := v.m.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return ""
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FromAny converts plain Go values into a Value. Unknown types fall back to
// their fmt rendering as a string.
func FromAny(in any) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Map:
		if t == nil {
			return Null()
		}
		return MapValue(t)
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case time.Time:
		return Time(t)
	case []Value:
		return List(t...)
	case []string:
		items := make([]Value, 0, len(t))
		for _, s := range t {
			items = append(items, String(s))
		}
		return List(items...)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, FromAny(item))
		}
		return List(items...)
	default:
		return String(fmt.Sprint(t))
	}
}

// MarshalJSON encodes the value. Non-finite numbers encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindTime:
		return json.Marshal(v.t.UTC().Format(TimeLayout))
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return v.m.MarshalJSON()
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON document, keeping object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("record: unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	*v = decoded
	return nil
}

// DecodeValue reads one JSON value from the decoder. The decoder should have
// UseNumber enabled so numbers keep their precision until conversion.
func DecodeValue(dec *json.Decoder) (Value, error) {
	return decodeValue(dec)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return MapValue(m), nil
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}
