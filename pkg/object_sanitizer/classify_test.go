package object_sanitizer

import (
	"math/big"
	"reflect"
	"regexp"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	now := time.Now()
	type user struct{ Name string }

	tests := []struct {
		name   string
		value  interface{}
		expect ValueKind
	}{
		{"nil", nil, KindPrimitive},
		{"bool", true, KindPrimitive},
		{"string", "hello", KindPrimitive},
		{"int", 42, KindPrimitive},
		{"float", 3.14, KindPrimitive},
		{"complex", complex(1, 2), KindPrimitive},
		{"named int", time.Duration(5), KindPrimitive},
		{"time", now, KindDate},
		{"time pointer", &now, KindDate},
		{"regexp", regexp.MustCompile(`\d+`), KindRegex},
		{"byte slice", []byte("abc"), KindBinaryBlob},
		{"byte array", [3]byte{1, 2, 3}, KindBinaryBlob},
		{"big int", big.NewInt(7), KindBigInteger},
		{"big int value", *big.NewInt(7), KindBigInteger},
		{"nil big int pointer", (*big.Int)(nil), KindPrimitive},
		{"map", map[string]interface{}{}, KindPlainObject},
		{"typed map", map[int]string{}, KindPlainObject},
		{"slice", []interface{}{1}, KindArray},
		{"typed slice", []string{"a"}, KindArray},
		{"func", func() {}, KindFunction},
		{"chan", make(chan int), KindSymbol},
		{"struct", user{Name: "a"}, KindClassInstance},
		{"struct pointer", &user{Name: "a"}, KindClassInstance},
		{"nil struct pointer", (*user)(nil), KindPrimitive},
		{"unsafe pointer", unsafe.Pointer(&now), KindSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, classify(tt.value))
		})
	}
}

func TestValueKindIsValid(t *testing.T) {
	for _, k := range []ValueKind{
		KindPrimitive, KindPlainObject, KindArray, KindDate, KindRegex,
		KindBinaryBlob, KindFunction, KindSymbol, KindBigInteger,
		KindClassInstance, KindCircular,
	} {
		assert.True(t, k.IsValid())
	}
	assert.False(t, ValueKind("blob").IsValid())
	assert.False(t, ValueKind("").IsValid())
}

func TestIdentityOf(t *testing.T) {
	m := map[string]interface{}{"a": 1}
	idA, ok := identityOf(reflect.ValueOf(m))
	require.True(t, ok)
	idB, ok := identityOf(reflect.ValueOf(m))
	require.True(t, ok)
	assert.Equal(t, idA, idB, "same map must key identically")

	other := map[string]interface{}{"a": 1}
	idC, ok := identityOf(reflect.ValueOf(other))
	require.True(t, ok)
	assert.NotEqual(t, idA, idC, "distinct maps with equal content are different nodes")
}

func TestIdentityOf_SliceLength(t *testing.T) {
	backing := []interface{}{1, 2, 3, 4}
	full, ok := identityOf(reflect.ValueOf(backing))
	require.True(t, ok)
	part, ok := identityOf(reflect.ValueOf(backing[:2]))
	require.True(t, ok)
	assert.NotEqual(t, full, part, "a re-slice is not the same node")

	_, ok = identityOf(reflect.ValueOf([]interface{}{}))
	assert.False(t, ok, "empty slices cannot cycle")
}

func TestIdentityOf_Untracked(t *testing.T) {
	for _, value := range []interface{}{"str", 42, true, struct{}{}} {
		_, ok := identityOf(reflect.ValueOf(value))
		assert.False(t, ok, "%T must not be tracked", value)
	}

	var nilMap map[string]interface{}
	_, ok := identityOf(reflect.ValueOf(nilMap))
	assert.False(t, ok)
}

func TestPresetStrategies(t *testing.T) {
	minimal := PresetStrategies(LevelMinimal)
	assert.Equal(t, StrategyPreserve, minimal[KindBinaryBlob])
	assert.Equal(t, StrategyRedact, minimal[KindFunction])

	standard := PresetStrategies(LevelStandard)
	assert.Equal(t, StrategyFlatten, standard[KindRegex])
	assert.Equal(t, StrategyFlatten, standard[KindBinaryBlob])
	assert.Equal(t, StrategyPreserve, standard[KindDate])

	strict := PresetStrategies(LevelStrict)
	assert.Equal(t, StrategyRemove, strict[KindFunction])
	assert.Equal(t, StrategyFlatten, strict[KindDate])

	paranoid := PresetStrategies(LevelParanoid)
	assert.Equal(t, StrategyRemove, paranoid[KindClassInstance])
	assert.Equal(t, StrategyRemove, paranoid[KindBinaryBlob])
	assert.Equal(t, StrategyFlatten, paranoid[KindBigInteger])

	// unknown level falls back to standard; the map is always a fresh copy
	fallback := PresetStrategies(Level("bogus"))
	assert.Equal(t, standard, fallback)
	standard[KindRegex] = StrategyPreserve
	assert.Equal(t, StrategyFlatten, PresetStrategies(LevelStandard)[KindRegex])
}
