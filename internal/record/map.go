package record

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Map is a string keyed map that remembers insertion order.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: map[string]Value{}}
}

// Set stores the value. Existing keys keep their original position.
func (m *Map) Set(key string, v Value) {
	if m.values == nil {
		m.values = map[string]Value{}
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// SetAny converts and stores a plain Go value.
func (m *Map) SetAny(key string, v any) {
	m.Set(key, FromAny(v))
}

func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key, preserving the order of the remaining keys.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy that can be modified independently.
func (m *Map) Clone() *Map {
	out := NewMap()
	m.Range(func(k string, v Value) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Merge copies every entry of other into m, overwriting existing keys.
func (m *Map) Merge(other *Map) {
	other.Range(func(k string, v Value) bool {
		m.Set(k, v)
		return true
	})
}

func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		if !m.values[k].Equal(other.values[k]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes keys in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, k := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			val, err := m.values[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	decoded, ok := v.AsMap()
	if !ok {
		return errors.New("record: expected a JSON object")
	}
	*m = *decoded
	return nil
}

// ParseList decodes a JSON array of objects into ordered maps.
func ParseList(data []byte) ([]*Map, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	items, ok := v.AsList()
	if !ok {
		return nil, errors.New("record: expected a JSON array")
	}
	out := make([]*Map, 0, len(items))
	for _, item := range items {
		m, ok := item.AsMap()
		if !ok {
			return nil, errors.New("record: expected array of objects")
		}
		out = append(out, m)
	}
	return out, nil
}
