package types

import (
	"fmt"
	"math"
)

// Coerce converts a Go value (as produced by expression evaluation or passed
// by callers) into a Field of the declared type. nil becomes a typed NULL.
// Character values longer than the declared length are rejected rather than
// truncated.
func Coerce(v any, dt DataType) (Field, error) {
	if v == nil {
		return NewNull(dt.Base), nil
	}
	if f, ok := v.(Field); ok {
		if f.IsNull() {
			return NewNull(dt.Base), nil
		}
		v = f.Native()
	}

	switch dt.Base {
	case IntType, BigIntType:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if dt.Base == IntType && (n > math.MaxInt32 || n < math.MinInt32) {
			return nil, fmt.Errorf("value %d out of range for INTEGER", n)
		}
		return &IntField{Value: n, Wide: dt.Base == BigIntType}, nil
	case DoubleType:
		switch x := v.(type) {
		case float64:
			return NewFloatField(x), nil
		case float32:
			return NewFloatField(float64(x)), nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return NewFloatField(float64(n)), nil
	case VarcharType, ClobType:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cannot assign %T to %s", v, dt.Base)
		}
		if dt.Length > 0 && len(s) > dt.Length {
			return nil, fmt.Errorf("value of length %d too long for %s", len(s), dt)
		}
		return &StringField{Value: s, Clob: dt.Base == ClobType}, nil
	case BooleanType:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot assign %T to BOOLEAN", v)
		}
		return NewBoolField(b), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", dt.Base)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil // #nosec G115
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows BIGINT", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("value %v is not an integer", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot assign %T to an integer column", v)
	}
}
