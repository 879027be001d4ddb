package security_analyzer

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrustWeave/LogArmor/pkg/content_sanitizer"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

func newTestAnalyzer(t *testing.T, opts content_sanitizer.Options) *Analyzer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	a, err := NewAnalyzer(logger, opts)
	require.NoError(t, err)
	return a
}

func TestAnalyze_CleanText(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	analysis := a.Analyze("request completed in 34ms")

	assert.Equal(t, 0, analysis.RiskScore)
	assert.Equal(t, types.RiskLow, analysis.RiskLevel)
	assert.Equal(t, types.ActionMonitor, analysis.RecommendedAction)
	assert.Empty(t, analysis.Violations)
	assert.Empty(t, analysis.AttackVectors)
	assert.Empty(t, analysis.ThreatCategories)
}

func TestAnalyze_EmptyText(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	analysis := a.Analyze("")

	assert.Equal(t, 0, analysis.RiskScore)
	assert.Equal(t, types.RiskLow, analysis.RiskLevel)
	assert.NotNil(t, analysis.Violations)
	assert.NotNil(t, analysis.AttackVectors)
}

func TestAnalyze_ScoreTable(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	tests := []struct {
		name        string
		text        string
		expectScore int
		expectLevel types.RiskLevel
	}{
		{"hyperlink only", "\x1b]8;;https://evil\x07x\x1b]8;;\x07", 10, types.RiskLow},
		{"unicode only", "a\u200Bb", 15, types.RiskLow},
		{"format string", "%n%n%n%n", 20, types.RiskMedium},
		{"escape sequence", "\x1b[31mred\x1b[0m", 25, types.RiskMedium},
		{"null byte", "a\x00b", 25, types.RiskMedium},
		{"line injection", "a\nb", 35, types.RiskMedium},
		{"command execution", "${HOME} leak", 50, types.RiskHigh},
		{"terminal manipulation", "\x1b]0;evil\x07", 40, types.RiskMedium},
		{"escape plus command", "\x1b[2J${HOME}", 75, types.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := a.Analyze(tt.text)
			assert.Equal(t, tt.expectScore, analysis.RiskScore)
			assert.Equal(t, tt.expectLevel, analysis.RiskLevel)
		})
	}
}

func TestAnalyze_CriticalViolationForcesCriticalLevel(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	// one critical violation outranks a modest score
	analysis := a.Analyze("$(rm -rf /)")

	assert.Equal(t, 50, analysis.RiskScore)
	assert.Equal(t, types.RiskCritical, analysis.RiskLevel)
	assert.Equal(t, types.ActionBlock, analysis.RecommendedAction)
}

func TestAnalyze_ScoreClampedAt100(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	// terminal-manipulation 40 + command 50 + escape 25 + null 25 > 100
	analysis := a.Analyze("\x1bc\x1b[31m$(id)\x00")

	assert.Equal(t, 100, analysis.RiskScore)
	assert.Equal(t, types.RiskCritical, analysis.RiskLevel)
}

func TestAnalyze_CategoryScoredOnce(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	analysis := a.Analyze("$(id) and `whoami`")

	assert.Equal(t, 50, analysis.RiskScore)
	assert.Len(t, analysis.Violations, 2)
	assert.ElementsMatch(t, []string{"cmd-substitution", "cmd-backtick"}, analysis.AttackVectors)
	assert.Equal(t, []string{"command-execution"}, analysis.ThreatCategories)
}

func TestAnalyze_AttackVectorsDeduped(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	analysis := a.Analyze("\x1b[1mbold\x1b[2mdim\x1b[0m")

	assert.Equal(t, []string{"csi"}, analysis.AttackVectors)
	assert.Equal(t, []string{"escape-sequence"}, analysis.ThreatCategories)
	assert.Len(t, analysis.Violations, 1)
}

func TestAnalyze_LengthScoring(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})

	// 50kB of clean text scores by size alone, capped at 30
	analysis := a.Analyze(strings.Repeat("a", 50000))

	assert.Equal(t, 30, analysis.RiskScore)
	assert.Equal(t, types.RiskMedium, analysis.RiskLevel)
	assert.Contains(t, analysis.ThreatCategories, "length")
	require.Len(t, analysis.Warnings, 1)
	assert.Contains(t, analysis.Warnings[0], "exceeds limit")

	// 5kB stays below the medium threshold
	analysis = a.Analyze(strings.Repeat("a", 5000))
	assert.Equal(t, 5, analysis.RiskScore)
	assert.Equal(t, types.RiskLow, analysis.RiskLevel)
}

func TestAnalyze_DoesNotRewriteInput(t *testing.T) {
	a := newTestAnalyzer(t, content_sanitizer.Options{})
	input := "\x1b]0;evil\x07Hello"

	analysis := a.Analyze(input)

	assert.Equal(t, "\x1b]0;evil\x07Hello", input)
	require.Len(t, analysis.Violations, 1)
	assert.NotEmpty(t, analysis.Violations[0].OriginalExcerpt)
}

func TestNewAnalyzer_InvalidOptions(t *testing.T) {
	_, err := NewAnalyzer(nil, content_sanitizer.Options{Level: "bogus"})
	assert.Error(t, err)
}
