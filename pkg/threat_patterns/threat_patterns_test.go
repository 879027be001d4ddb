package threat_patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrustWeave/LogArmor/pkg/common"
)

func TestDetectorsOrder(t *testing.T) {
	ds := Detectors()
	require.Len(t, ds, len(detectionOrder))

	// Specific OSC sequences must run before the generic OSC detector or
	// the generic one would consume a title-set payload first.
	positions := make(map[string]int, len(ds))
	for i, d := range ds {
		positions[d.Name] = i
	}
	assert.Less(t, positions["title-set"], positions["osc-generic"])
	assert.Less(t, positions["hyperlink-osc"], positions["osc-generic"])
	assert.Less(t, positions["term-reset"], positions["osc-generic"])
	assert.Equal(t, "null-byte", ds[len(ds)-1].Name)
}

func TestDetectorsReturnCopy(t *testing.T) {
	ds := Detectors()
	ds[0].Name = "tampered"
	assert.NotEqual(t, "tampered", Detectors()[0].Name)
}

func TestDetectorByName(t *testing.T) {
	d, ok := DetectorByName("title-set")
	require.True(t, ok)
	assert.Equal(t, "[TITLE-SET]", d.Label)
	assert.Equal(t, CategoryTerminalManipulation, d.Category)

	_, ok = DetectorByName("no-such-detector")
	assert.False(t, ok)
}

// Every label and placeholder must be inert against the whole detector
// table, otherwise sanitizing already-sanitized text would not be a no-op.
func TestLabelsAreInert(t *testing.T) {
	labels := []string{
		common.MaskedPlaceholder,
		common.RedactedPlaceholder,
		common.ProtectedPlaceholder,
		common.CircularPlaceholder,
		common.DepthPlaceholder,
		common.TimePlaceholder,
		common.ErrorPlaceholder,
		common.TruncationMarker,
	}
	for _, d := range Detectors() {
		if d.Label != "" {
			labels = append(labels, d.Label)
		}
	}

	for _, label := range labels {
		for _, d := range Detectors() {
			assert.False(t, d.Pattern.MatchString(label),
				"label %q must not re-trigger detector %s", label, d.Name)
		}
	}
}

func TestDetectorPatternsMatch(t *testing.T) {
	tests := []struct {
		detector string
		input    string
		hit      bool
	}{
		{"term-reset", "\x1bc", true},
		{"term-reset", "\x1b[!p", true},
		{"title-set", "\x1b]0;evil\x07", true},
		{"title-set", "\x1b]2;evil\x1b\\", true},
		{"title-set", "\x1b]8;;http://x\x07", false},
		{"hyperlink-osc", "\x1b]8;;http://x\x07", true},
		{"osc-generic", "\x1b]52;c;payload\x07", true},
		{"csi", "\x1b[31m", true},
		{"csi", "\x1b[2J", true},
		{"csi", "plain text", false},
		{"dcs", "\x1bPq payload\x1b\\", true},
		{"apc-pm-sos", "\x1b_hidden\x1b\\", true},
		{"zero-width", "a\u200Bb", true},
		{"bidi-override", "a\u202Eb", true},
		{"cmd-substitution", "$(rm -rf /)", true},
		{"cmd-substitution", "$100 (fee)", false},
		{"cmd-backtick", "`id`", true},
		{"var-expansion", "${HOME}", true},
		{"cmd-eval", "eval(code)", true},
		{"cmd-eval", "evaluation(", false},
		{"fmt-percent-n", "%n", true},
		{"fmt-percent-n", "%2$n", true},
		{"fmt-chain", "%s%s%s%s", true},
		{"fmt-chain", "%s%s", false},
		{"uri-scheme", "javascript:alert(1)", true},
		{"uri-scheme", "https://example.com", false},
		{"null-byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.detector+"/"+tt.input, func(t *testing.T) {
			d, ok := DetectorByName(tt.detector)
			require.True(t, ok)
			assert.Equal(t, tt.hit, d.Pattern.MatchString(tt.input))
		})
	}
}

func TestControlCharsPattern(t *testing.T) {
	preserving := ControlCharsPattern(true)
	assert.False(t, preserving.MatchString("a\tb"))
	assert.True(t, preserving.MatchString("a\x01b"))
	assert.False(t, preserving.MatchString("a\nb"))

	stripping := ControlCharsPattern(false)
	assert.True(t, stripping.MatchString("a\tb"))
	assert.False(t, stripping.MatchString("a\nb"))
	assert.False(t, stripping.MatchString("a\rb"))
}

func TestDefaultCategories(t *testing.T) {
	permissive := DefaultCategories(LevelPermissive)
	assert.True(t, permissive[CategoryEscapeSequence])
	assert.True(t, permissive[CategoryCommandExecution])
	assert.True(t, permissive[CategoryNullByte])
	assert.False(t, permissive[CategoryUnicodeAttack])
	assert.False(t, permissive[CategoryHyperlink])
	assert.False(t, permissive[CategoryLineInjection])

	standard := DefaultCategories(LevelStandard)
	assert.True(t, standard[CategoryUnicodeAttack])
	assert.True(t, standard[CategoryLineInjection])
	assert.True(t, standard[CategoryFormatString])

	strict := DefaultCategories(LevelStrict)
	assert.Equal(t, standard, strict)

	// returned map is a copy
	standard[CategoryEscapeSequence] = false
	assert.True(t, DefaultCategories(LevelStandard)[CategoryEscapeSequence])
}

func TestStrictOnlyDetectors(t *testing.T) {
	for _, name := range []string{"mixed-script", "uri-scheme"} {
		d, ok := DetectorByName(name)
		require.True(t, ok)
		assert.True(t, d.StrictOnly, "%s should be strict-only", name)
	}
}

func TestIsPrototypePollutionKey(t *testing.T) {
	assert.True(t, IsPrototypePollutionKey("__proto__"))
	assert.True(t, IsPrototypePollutionKey("constructor"))
	assert.True(t, IsPrototypePollutionKey("prototype"))
	assert.False(t, IsPrototypePollutionKey("Constructor"))
	assert.False(t, IsPrototypePollutionKey("proto"))
	assert.False(t, IsPrototypePollutionKey("prototypes"))
	assert.False(t, IsPrototypePollutionKey(""))
}

func TestAccessorsReturnCopies(t *testing.T) {
	keys := PrototypePollutionKeys()
	keys[0] = "tampered"
	assert.Equal(t, "__proto__", PrototypePollutionKeys()[0])

	keywords := DefaultMaskKeywords()
	keywords[0] = "tampered"
	assert.Equal(t, "password", DefaultMaskKeywords()[0])
}

func TestLevelAndCategoryValidation(t *testing.T) {
	assert.True(t, LevelStrict.IsValid())
	assert.True(t, LevelStandard.IsValid())
	assert.True(t, LevelPermissive.IsValid())
	assert.False(t, Level("paranoid").IsValid())
	assert.False(t, Level("").IsValid())

	assert.True(t, CategoryCommandExecution.IsValid())
	assert.True(t, CategoryLength.IsValid())
	assert.False(t, Category("sql").IsValid())
}
