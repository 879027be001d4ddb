package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		input1 string
		input2 string
		expect int
	}{
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"gumbo", "gambol", 2},
		{"test", "test", 0},
		{"", "hello", 5},
		{"hello", "", 5},
		{"Password", "password", 0},
	}

	for _, tt := range tests {
		result := LevenshteinDistance(tt.input1, tt.input2)
		assert.Equal(t, tt.expect, result, "distance mismatch for %q vs %q", tt.input1, tt.input2)
	}
}

func TestSimilarityRatio(t *testing.T) {
	assert.InDelta(t, 1.0, SimilarityRatio("test", "test"), 0.001)
	assert.InDelta(t, 0.75, SimilarityRatio("test", "tent"), 0.001)
	assert.InDelta(t, 0.2, SimilarityRatio("hello", "world"), 0.001)
	assert.InDelta(t, 1.0, SimilarityRatio("", ""), 0.001)
	assert.InDelta(t, 0.875, SimilarityRatio("password", "passw0rd"), 0.001)
	assert.InDelta(t, 0.0, SimilarityRatio("", "abcd"), 0.001)
}

func TestSafeExcerpt(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		max    int
		expect string
	}{
		{"short passes through", "hello", 10, "hello"},
		{"truncated with ellipsis", "hello world", 5, "hello..."},
		{"control bytes replaced", "a\x1b[31mb", 20, "a?[31mb"},
		{"null byte replaced", "a\x00b", 20, "a?b"},
		{"zero max", "hello", 0, ""},
		{"exact fit", "abcde", 5, "abcde"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, SafeExcerpt(tt.input, tt.max))
		})
	}
}

func TestSafeExcerpt_RuneBoundary(t *testing.T) {
	// 3-byte runes; a cut at byte 4 must back up to the rune start
	input := "日本語"
	out := SafeExcerpt(input, 4)
	assert.Equal(t, "日...", out)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestSafeExcerpt_LongInput(t *testing.T) {
	out := SafeExcerpt(strings.Repeat("x", 500), 100)
	assert.Len(t, out, 103)
}
