package record

// Flatten turns nested maps into dotted keys. Lists become ", " joined text and
// times become fixed ISO-8601 strings. Other scalars are kept as they are.
func Flatten(m *Map) *Map {
	out := NewMap()
	flattenInto(out, "", m)
	return out
}

func flattenInto(out *Map, prefix string, m *Map) {
	m.Range(func(key string, v Value) bool {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch v.Kind() {
		case KindMap:
			nested, _ := v.AsMap()
			if nested.Len() == 0 {
				out.Set(fullKey, Null())
				return true
			}
			flattenInto(out, fullKey, nested)
		case KindList, KindTime:
			out.Set(fullKey, String(v.Text()))
		default:
			out.Set(fullKey, v)
		}
		return true
	})
}

// Columns returns the union of keys across maps in first-seen order.
func Columns(maps []*Map) []string {
	seen := map[string]struct{}{}
	columns := []string{}
	for _, m := range maps {
		m.Range(func(key string, _ Value) bool {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				columns = append(columns, key)
			}
			return true
		})
	}
	return columns
}
