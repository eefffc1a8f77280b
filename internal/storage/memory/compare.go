package memory

import (
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/furfield/procurement/internal/storage"
)

// columnar is implemented by every entity kept in a table.
type columnar interface {
	Column(name string) (any, bool)
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, int64, float64, bool, time.Time, decimal.Decimal:
		return t
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

// compare orders two column values. It reports false when the values are
// not comparable.
func compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case float64:
			return cmpOrdered(float64(x), y), true
		case decimal.Decimal:
			return decimal.NewFromInt(x).Cmp(y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmpOrdered(x, y), true
		case int64:
			return cmpOrdered(x, float64(y)), true
		}
	case decimal.Decimal:
		switch y := b.(type) {
		case decimal.Decimal:
			return x.Cmp(y), true
		case int64:
			return x.Cmp(decimal.NewFromInt(y)), true
		case float64:
			return x.Cmp(decimal.NewFromFloat(y)), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func cmpOrdered[N int64 | float64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func matches(row columnar, filters []storage.Filter) (bool, error) {
	for _, f := range filters {
		got, ok := row.Column(f.Field)
		if !ok {
			return false, fmt.Errorf("%w: %s", storage.ErrUnknownField, f.Field)
		}
		hit, err := evaluate(got, f)
		if err != nil {
			return false, err
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

func evaluate(got any, f storage.Filter) (bool, error) {
	if f.Op == storage.OpIn {
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice {
			return false, fmt.Errorf("storage: %s filter on %s needs a slice", f.Op, f.Field)
		}
		for i := 0; i < rv.Len(); i++ {
			if c, ok := compare(got, rv.Index(i).Interface()); ok && c == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	c, ok := compare(got, f.Value)
	if !ok {
		return false, fmt.Errorf("storage: cannot compare %s with %T", f.Field, f.Value)
	}
	switch f.Op {
	case storage.OpEq, "":
		return c == 0, nil
	case storage.OpNeq:
		return c != 0, nil
	case storage.OpLt:
		return c < 0, nil
	case storage.OpLte:
		return c <= 0, nil
	case storage.OpGt:
		return c > 0, nil
	case storage.OpGte:
		return c >= 0, nil
	}
	return false, fmt.Errorf("storage: unsupported operator %q", f.Op)
}
