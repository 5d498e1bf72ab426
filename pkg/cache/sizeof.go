package cache

import (
	"reflect"
	"unicode/utf8"
)

// Size estimation cost model. These are deliberately coarse: the engine
// budgets approximate memory, not exact allocations.
const (
	// scalarCost is charged for booleans, integers, floats, complex
	// numbers, and nil pointers.
	scalarCost = 8

	// unknownCost is charged for values the walk cannot inspect
	// (channels, functions, unsafe pointers).
	unknownCost = 8

	// bytesPerChar is the cost per character of string data and of
	// map keys / struct field names.
	bytesPerChar = 2
)

// EstimateSize returns an approximate byte size for v.
//
// Values implementing Sized report their own estimate and are never walked.
// Everything else is costed by a depth-first reflective traversal: scalars
// cost a fixed constant, strings cost 2 bytes per character, slices and
// arrays cost the sum of their elements, and maps and structs cost the sum
// of (key length x 2 + value size) over their members.
//
// The walk performs no cycle detection: a cyclic object graph recurses until
// the stack overflows. This is a known, documented limitation; types holding
// cyclic references must implement Sized to opt out of the traversal.
func EstimateSize(v any) int64 {
	if v == nil {
		return 0
	}
	if s, ok := v.(Sized); ok {
		return s.SizeBytes()
	}
	return sizeOfValue(reflect.ValueOf(v))
}

func sizeOfValue(rv reflect.Value) int64 {
	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return scalarCost

	case reflect.String:
		return stringCost(rv.String())

	case reflect.Slice, reflect.Array:
		var total int64
		for i := 0; i < rv.Len(); i++ {
			total += sizeOfValue(rv.Index(i))
		}
		return total

	case reflect.Map:
		var total int64
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key()
			if key.Kind() == reflect.String {
				total += stringCost(key.String())
			} else {
				total += sizeOfValue(key)
			}
			total += sizeOfValue(iter.Value())
		}
		return total

	case reflect.Struct:
		var total int64
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			total += stringCost(t.Field(i).Name)
			total += sizeOfValue(rv.Field(i))
		}
		return total

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return scalarCost
		}
		// Honor Sized on nested values where the interface is reachable.
		if rv.CanInterface() {
			if s, ok := rv.Interface().(Sized); ok {
				return s.SizeBytes()
			}
		}
		return sizeOfValue(rv.Elem())

	default:
		// Chan, Func, UnsafePointer, Invalid
		return unknownCost
	}
}

func stringCost(s string) int64 {
	return int64(utf8.RuneCountInString(s)) * bytesPerChar
}
