package params

import "fmt"

// Coerce casts incoming to the type of existing, matching spec.md §4.8's
// "coerce the incoming value to the existing type" rule. Strings and bools
// must match exactly; any numeric existing value accepts a numeric incoming
// value, returned as float64 (the type every number has after a JSON
// reload). A nil existing value (new key), or an existing value of any other
// type, accepts the incoming value verbatim.
func Coerce(key string, existing, incoming any) (any, error) {
	if existing == nil {
		return incoming, nil
	}
	switch existing.(type) {
	case string:
		if s, ok := incoming.(string); ok {
			return s, nil
		}
	case bool:
		if b, ok := incoming.(bool); ok {
			return b, nil
		}
	case float64, int, int32, float32:
		switch n := incoming.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		}
	default:
		return incoming, nil
	}
	return nil, ErrCoerce{Key: key, Want: fmt.Sprintf("%T", existing), Got: incoming}
}
