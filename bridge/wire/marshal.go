package wire

import (
	"fmt"
	"reflect"
)

// ToWire converts a native value into its wire representation. Scalars pass
// through; sequences and mappings are converted explicitly and recursively
// into []any and map[string]any, since composite containers do not survive the
// channel's automatic encoding reliably. Values with no wire form (functions,
// channels, arbitrary structs) are rejected.
func ToWire(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, nil
	case []byte:
		return val, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			converted, err := ToWire(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = converted
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := stringifyKey(iter.Key().Interface())
			converted, err := ToWire(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = converted
		}
		return out, nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return ToWire(rv.Elem().Interface())
	}

	return nil, fmt.Errorf("value of type %T has no wire form", v)
}

// ToWireArgs converts each argument of a proxy invocation.
func ToWireArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		converted, err := ToWire(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}

func stringifyKey(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", k)
}
