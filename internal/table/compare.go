package table

import (
	"time"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/identifier"
)

// Equal compares two runtime values under three-valued logic: the result is
// true, false, or nil (unknown). Null on either side yields nil; values of
// cross-incompatible types yield nil rather than false, matching the engine's
// native comparison contract.
func Equal(a, b any) any {
	if a == nil || b == nil {
		return nil
	}

	if af, ok := domain.AsFloat(a); ok {
		if bf, ok := domain.AsFloat(b); ok {
			return af == bf
		}
		return nil
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Equal(bv)
		}
	case time.Duration:
		if bv, ok := b.(time.Duration); ok {
			return av == bv
		}
	case identifier.Identifier:
		if bv, ok := b.(identifier.Identifier); ok {
			return identifier.Equal(av, bv)
		}
	case []any:
		if bv, ok := b.([]any); ok {
			return equalLists(av, bv)
		}
	case map[string]any:
		if bv, ok := b.(map[string]any); ok {
			return equalMaps(av, bv)
		}
	}
	return nil
}

func equalLists(a, b []any) any {
	if len(a) != len(b) {
		return false
	}
	sawUnknown := false
	for i := range a {
		switch eq := Equal(a[i], b[i]).(type) {
		case bool:
			if !eq {
				return false
			}
		default:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return nil
	}
	return true
}

func equalMaps(a, b map[string]any) any {
	if len(a) != len(b) {
		return false
	}
	sawUnknown := false
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		switch eq := Equal(av, bv).(type) {
		case bool:
			if !eq {
				return false
			}
		default:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return nil
	}
	return true
}

// Order compares two runtime values, returning (-1|0|1, true) when they are
// comparable and (0, false) when either is null or the types are
// cross-incompatible.
func Order(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	if af, ok := domain.AsFloat(a); ok {
		if bf, ok := domain.AsFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			}
			return 0, true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			}
			return 1, true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1, true
			case av.After(bv):
				return 1, true
			}
			return 0, true
		}
	case time.Duration:
		if bv, ok := b.(time.Duration); ok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			}
			return 0, true
		}
	case identifier.Identifier:
		if bv, ok := b.(identifier.Identifier); ok {
			return identifier.Compare(av, bv), true
		}
	}
	return 0, false
}
