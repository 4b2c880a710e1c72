package plugins

import (
	"math"
	"time"
)

// now is replaced in tests.
var now = time.Now

func nowMillis() int64 {
	return now().UnixMilli()
}

// number reads a decoded CBOR or JSON number.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// integer reads a decoded whole number.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// present reports whether a cached value is worth sending: not nil and,
// for maps, slices and strings, not empty.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case map[string]any:
		return len(x) > 0
	case map[any]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case string:
		return x != ""
	default:
		return true
	}
}

// targeted returns request as a map when its "target" field is target.
func targeted(request any, target string) (map[string]any, bool) {
	m, ok := request.(map[string]any)
	if !ok {
		return nil, false
	}
	if t, _ := m["target"].(string); t != target {
		return nil, false
	}
	return m, true
}
