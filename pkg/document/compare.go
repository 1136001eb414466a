package document

import (
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/collate"
)

// toNumber converts any Go numeric kind to float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toTime accepts time.Time values and RFC3339 strings.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func isTime(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time:
		return true
	default:
		return false
	}
}

// toSlice converts any non-byte slice or array to []any.
func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Equal reports structural equality: numbers by value, temporal values by
// instant, documents key by key and sequences element by element.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isTime(a) || isTime(b) {
		ta, okA := toTime(a)
		tb, okB := toTime(b)
		return okA && okB && ta.Equal(tb)
	}
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		return ok && na == nb
	}
	if ma, ok := asMap(a); ok {
		mb, ok := asMap(b)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, exists := mb[k]
			if !exists || !Equal(va, vb) {
				return false
			}
		}
		return true
	}
	if sa, ok := toSlice(a); ok {
		sb, ok := toSlice(b)
		if !ok || len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !Equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	if ra, ok := a.(interface{ String() string }); ok && reflect.TypeOf(a) == reflect.TypeOf(b) {
		return ra.String() == b.(interface{ String() string }).String()
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered compares two values of the same ordered family (number,
// string, time). ok is false when the values cannot be ordered.
func compareOrdered(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if isTime(a) || isTime(b) {
		ta, okA := toTime(a)
		tb, okB := toTime(b)
		if !okA || !okB {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		if !ok {
			return 0, false
		}
		return compareFloat(na, nb), true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Cross-type ordering used by sort.
const (
	rankNull = iota
	rankNumber
	rankString
	rankDocument
	rankArray
	rankBool
	rankTime
	rankOther
)

func typeRank(v any) int {
	if v == nil {
		return rankNull
	}
	if isTime(v) {
		return rankTime
	}
	if _, ok := toNumber(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	}
	if _, ok := asMap(v); ok {
		return rankDocument
	}
	if _, ok := toSlice(v); ok {
		return rankArray
	}
	return rankOther
}

// compareForSort orders any two values; undefined and null sort first.
func compareForSort(a, b any, col *collate.Collator) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		na, _ := toNumber(a)
		nb, _ := toNumber(b)
		return compareFloat(na, nb)
	case rankString:
		if col != nil {
			return col.CompareString(a.(string), b.(string))
		}
		return strings.Compare(a.(string), b.(string))
	case rankTime:
		ta, _ := toTime(a)
		tb, _ := toTime(b)
		return ta.Compare(tb)
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case rankArray:
		sa, _ := toSlice(a)
		sb, _ := toSlice(b)
		for i := 0; i < len(sa) && i < len(sb); i++ {
			if c := compareForSort(sa[i], sb[i], col); c != 0 {
				return c
			}
		}
		return len(sa) - len(sb)
	default:
		return 0
	}
}
