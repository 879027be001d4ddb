package object_sanitizer

import (
	"math/big"
	"reflect"
	"regexp"
	"time"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	bigIntType = reflect.TypeOf(big.Int{})
)

// classify maps a runtime value onto the closed ValueKind set. Pointers and
// interfaces classify as their pointee; nil pointers and untyped nil are
// primitives. The fast type switch covers the common shapes, the reflect
// fallback everything else.
func classify(value interface{}) ValueKind {
	if value == nil {
		return KindPrimitive
	}
	switch v := value.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128:
		return KindPrimitive
	case time.Time:
		return KindDate
	case *time.Time:
		return KindDate
	case *regexp.Regexp:
		return KindRegex
	case []byte:
		return KindBinaryBlob
	case big.Int:
		return KindBigInteger
	case *big.Int:
		if v == nil {
			return KindPrimitive
		}
		return KindBigInteger
	}
	return classifyValue(reflect.ValueOf(value))
}

func classifyValue(rv reflect.Value) ValueKind {
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return KindPrimitive
	case reflect.Map:
		return KindPlainObject
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return KindBinaryBlob
		}
		return KindArray
	case reflect.Func:
		return KindFunction
	case reflect.Chan, reflect.UnsafePointer:
		return KindSymbol
	case reflect.Struct:
		switch rv.Type() {
		case timeType:
			return KindDate
		case bigIntType:
			return KindBigInteger
		}
		return KindClassInstance
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return KindPrimitive
		}
		return classifyValue(rv.Elem())
	default:
		return KindPrimitive
	}
}

// identity is the call-scoped cycle key. Maps and pointers key by address;
// slices additionally carry their length so re-slices of one backing array
// are not misread as the same node.
type identity struct {
	ptr    uintptr
	length int
}

// identityOf returns the cycle key for values that can participate in a
// reference cycle. Everything else reports false and is never tracked.
func identityOf(rv reflect.Value) (identity, bool) {
	switch rv.Kind() {
	case reflect.Map, reflect.Ptr:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{ptr: rv.Pointer(), length: -1}, true
	case reflect.Slice:
		if rv.IsNil() || rv.Len() == 0 {
			return identity{}, false
		}
		return identity{ptr: rv.Pointer(), length: rv.Len()}, true
	}
	return identity{}, false
}

// concrete unwraps pointers and interfaces down to the underlying value.
// The zero reflect.Value marks a nil chain.
func concrete(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}
