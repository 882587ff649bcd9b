package domain

import (
	"time"

	"github.com/slategraph/slate/internal/identifier"
)

// Runtime values are dynamically typed: nil (null), bool, int64, float64,
// string, time.Time, time.Duration, []any, map[string]any, or an
// identifier.Identifier for entity ids.

// IsNull reports whether a runtime value is the null value.
func IsNull(v any) bool {
	return v == nil
}

// AsFloat coerces a numeric runtime value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ValueKind reports the type kind of a runtime value.
func ValueKind(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBoolean
	case int64:
		return KindInteger
	case float64:
		return KindFloat
	case string:
		return KindString
	case time.Time:
		return KindTemporal
	case time.Duration:
		return KindDuration
	case []any:
		return KindList
	case map[string]any:
		return KindMap
	case identifier.Identifier:
		return KindIdentifier
	}
	return KindNothing
}

// KindAccepts reports whether a runtime value of kind have can populate a
// column declared with kind want, allowing the numeric widening the type
// lattice allows.
func KindAccepts(want, have Kind) bool {
	if have == KindNull {
		return true
	}
	if want == have {
		return true
	}
	return want == KindFloat && have == KindInteger
}
