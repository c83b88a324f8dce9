package action

import "encoding/json"

// Payload is the per-action key/value body. Handlers read it through the
// typed accessors below instead of asserting on the raw map.
type Payload map[string]any

// String returns the string value for key, or "" when absent or not a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Number returns the numeric value for key and whether one was present.
// JSON decoding yields float64; integer Go values are accepted too.
func (p Payload) Number(key string) (float64, bool) {
	return toNumber(p[key])
}

// Bool returns the boolean value for key, or false when absent or not a bool.
func (p Payload) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Has reports whether key is present, regardless of value.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
