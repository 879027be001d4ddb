package result_cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Scalars(t *testing.T) {
	for _, value := range []interface{}{
		nil, true, false, "hello", 0, 42, int64(-7), uint8(255), 3.14,
	} {
		fp, ok := Fingerprint(value)
		assert.True(t, ok, "%v should be fingerprintable", value)
		assert.Len(t, fp, 64)
	}
}

func TestFingerprint_StableAcrossKeyOrder(t *testing.T) {
	a := map[string]interface{}{"user": "alice", "count": 3, "ok": true}
	b := map[string]interface{}{"ok": true, "count": 3, "user": "alice"}

	fpA, ok := Fingerprint(a)
	require.True(t, ok)
	fpB, ok := Fingerprint(b)
	require.True(t, ok)
	assert.Equal(t, fpA, fpB)
}

func TestFingerprint_DiffersOnTopLevelContent(t *testing.T) {
	base := map[string]interface{}{"user": "alice"}
	cases := []map[string]interface{}{
		{"user": "bob"},
		{"user": "alice", "extra": 1},
		{"usr": "alice"},
		{"user": 42},
	}

	fpBase, _ := Fingerprint(base)
	for _, c := range cases {
		fp, ok := Fingerprint(c)
		require.True(t, ok)
		assert.NotEqual(t, fpBase, fp, "%v must not collide with %v", c, base)
	}
}

// The fingerprint is shallow on purpose: nested container content beyond
// size and key shape does not participate, so these collide.
func TestFingerprint_ShallowByDesign(t *testing.T) {
	a := map[string]interface{}{"nested": map[string]interface{}{"x": 1}}
	b := map[string]interface{}{"nested": map[string]interface{}{"x": 2}}

	fpA, _ := Fingerprint(a)
	fpB, _ := Fingerprint(b)
	assert.Equal(t, fpA, fpB)

	// differing nested keys do participate
	c := map[string]interface{}{"nested": map[string]interface{}{"y": 1}}
	fpC, _ := Fingerprint(c)
	assert.NotEqual(t, fpA, fpC)
}

func TestFingerprint_StringPreviewBounds(t *testing.T) {
	prefix := strings.Repeat("a", 32)
	a, _ := Fingerprint(prefix + "tail-one")
	b, _ := Fingerprint(prefix + "tail-two")
	assert.Equal(t, a, b, "same length and 32-byte prefix collide by design")

	c, _ := Fingerprint(prefix + "different-length")
	assert.NotEqual(t, a, c, "length always participates")
}

func TestFingerprint_SlicePreviewBounds(t *testing.T) {
	a := make([]interface{}, 20)
	b := make([]interface{}, 20)
	for i := range a {
		a[i] = i
		b[i] = i
	}
	b[19] = "changed"

	fpA, ok := Fingerprint(a)
	require.True(t, ok)
	fpB, _ := Fingerprint(b)
	assert.Equal(t, fpA, fpB, "elements beyond the preview do not participate")

	b[0] = "changed"
	fpB, _ = Fingerprint(b)
	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprint_RejectsOpaqueShapes(t *testing.T) {
	type custom struct{ A int }

	for _, value := range []interface{}{
		custom{A: 1},
		&custom{A: 1},
		func() {},
		make(chan int),
		map[int]string{1: "x"},
		[]string{"typed", "slice"},
	} {
		_, ok := Fingerprint(value)
		assert.False(t, ok, "%T must bypass the cache", value)
	}
}
