// Package threat_patterns provides the predefined detectors for content that
// can attack a terminal or a log pipeline: ANSI/OSC escape sequences,
// terminal manipulation, Unicode spoofing, command substitution, hyperlink
// and line injection, null bytes. The tables are package-private and exposed
// only through accessors returning copies, so callers can never mutate the
// shared detector set.
package threat_patterns

import (
	"regexp"

	"github.com/TrustWeave/LogArmor/pkg/types"
)

// Category identifies one detector family. Protection levels toggle whole
// categories; risk scoring weighs them.
type Category string

const (
	CategoryEscapeSequence       Category = "escape-sequence"
	CategoryTerminalManipulation Category = "terminal-manipulation"
	CategoryControlChars         Category = "control-chars"
	CategoryUnicodeAttack        Category = "unicode-attack"
	CategoryCommandExecution     Category = "command-execution"
	CategoryHyperlink            Category = "hyperlink"
	CategoryLineInjection        Category = "line-injection"
	CategoryNullByte             Category = "null-byte"
	CategoryFormatString         Category = "format-string"
	CategoryCustom               Category = "custom"
	CategoryLength               Category = "length"
)

// IsValid reports whether the category is one of the known families.
func (c Category) IsValid() bool {
	switch c {
	case CategoryEscapeSequence, CategoryTerminalManipulation, CategoryControlChars,
		CategoryUnicodeAttack, CategoryCommandExecution, CategoryHyperlink,
		CategoryLineInjection, CategoryNullByte, CategoryFormatString,
		CategoryCustom, CategoryLength:
		return true
	}
	return false
}

// Level is a named bundle of detector toggles controlling sensitivity.
type Level string

const (
	LevelStrict     Level = "strict"
	LevelStandard   Level = "standard"
	LevelPermissive Level = "permissive"
)

// IsValid reports whether the level is one of the known protection levels.
func (l Level) IsValid() bool {
	switch l {
	case LevelStrict, LevelStandard, LevelPermissive:
		return true
	}
	return false
}

// Detector couples one compiled pattern with the placeholder label and
// severity its matches receive. An empty Label means the detector only flags
// (records a violation) without rewriting the text. StrictOnly detectors run
// under LevelStrict exclusively.
type Detector struct {
	Name        string
	Category    Category
	Type        types.ViolationType
	Severity    types.Severity
	Label       string
	Pattern     *regexp.Regexp
	Description string
	StrictOnly  bool
}

// Detector table. Order matters: specific sequences (terminal reset, title
// set, OSC 8 hyperlinks) must be consumed before the generic OSC and CSI
// detectors, and every label must be inert against the whole table so a
// second pass is a no-op.
var detectors = map[string]Detector{
	"term-reset": {
		Name:        "term-reset",
		Category:    CategoryTerminalManipulation,
		Type:        types.ViolationTerminalManipulation,
		Severity:    types.SeverityCritical,
		Label:       "[TERM-RESET]",
		Pattern:     regexp.MustCompile(`\x1bc|\x1b\[!p`),
		Description: "terminal reset sequence (RIS/DECSTR)",
	},
	"title-set": {
		Name:        "title-set",
		Category:    CategoryTerminalManipulation,
		Type:        types.ViolationTerminalManipulation,
		Severity:    types.SeverityHigh,
		Label:       "[TITLE-SET]",
		Pattern:     regexp.MustCompile(`\x1b\][0-2];[^\x07\x1b]*(?:\x07|\x1b\\)`),
		Description: "terminal/window title manipulation (OSC 0-2)",
	},
	"hyperlink-osc": {
		Name:        "hyperlink-osc",
		Category:    CategoryHyperlink,
		Type:        types.ViolationHyperlinkInjection,
		Severity:    types.SeverityMedium,
		Label:       "[HYPERLINK]",
		Pattern:     regexp.MustCompile(`\x1b\]8;[^\x07\x1b]*(?:\x07|\x1b\\)`),
		Description: "terminal hyperlink escape (OSC 8)",
	},
	"osc-generic": {
		Name:        "osc-generic",
		Category:    CategoryEscapeSequence,
		Type:        types.ViolationANSIEscape,
		Severity:    types.SeverityHigh,
		Label:       "[ANSI-OSC]",
		Pattern:     regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`),
		Description: "operating system command sequence",
	},
	"csi": {
		Name:        "csi",
		Category:    CategoryEscapeSequence,
		Type:        types.ViolationANSIEscape,
		Severity:    types.SeverityMedium,
		Label:       "[ANSI-CSI]",
		Pattern:     regexp.MustCompile(`(?:\x1b\[|\x9b)[0-9:;<=>?]*[ -/]*[@-~]`),
		Description: "control sequence introducer (cursor/color codes)",
	},
	"dcs": {
		Name:        "dcs",
		Category:    CategoryEscapeSequence,
		Type:        types.ViolationANSIEscape,
		Severity:    types.SeverityHigh,
		Label:       "[ANSI-DCS]",
		Pattern:     regexp.MustCompile(`\x1bP[^\x1b]*\x1b\\`),
		Description: "device control string",
	},
	"apc-pm-sos": {
		Name:        "apc-pm-sos",
		Category:    CategoryEscapeSequence,
		Type:        types.ViolationANSIEscape,
		Severity:    types.SeverityHigh,
		Label:       "[ANSI-APC]",
		Pattern:     regexp.MustCompile(`\x1b[_^X][^\x1b]*\x1b\\`),
		Description: "application program command / privacy message",
	},
	"control-chars": {
		Name:        "control-chars",
		Category:    CategoryControlChars,
		Type:        types.ViolationControlChars,
		Severity:    types.SeverityMedium,
		Label:       "[CTRL]",
		Pattern:     controlPreserving,
		Description: "non-printable control characters",
	},
	"zero-width": {
		Name:        "zero-width",
		Category:    CategoryUnicodeAttack,
		Type:        types.ViolationUnicodeAttack,
		Severity:    types.SeverityMedium,
		Label:       "[ZERO-WIDTH]",
		Pattern:     regexp.MustCompile(`[\x{200b}-\x{200d}\x{feff}\x{00ad}\x{2060}\x{180e}]+`),
		Description: "zero-width/invisible characters",
	},
	"bidi-override": {
		Name:        "bidi-override",
		Category:    CategoryUnicodeAttack,
		Type:        types.ViolationUnicodeAttack,
		Severity:    types.SeverityHigh,
		Label:       "[BIDI]",
		Pattern:     regexp.MustCompile(`[\x{202a}-\x{202e}\x{2066}-\x{2069}\x{061c}]+`),
		Description: "bidirectional text override",
	},
	"mixed-script": {
		Name:        "mixed-script",
		Category:    CategoryUnicodeAttack,
		Type:        types.ViolationUnicodeAttack,
		Severity:    types.SeverityLow,
		Label:       "",
		Pattern:     regexp.MustCompile(`(?s)[a-zA-Z].*[\x{0370}-\x{03ff}\x{0400}-\x{04ff}]|[\x{0370}-\x{03ff}\x{0400}-\x{04ff}].*[a-zA-Z]`),
		Description: "Latin mixed with look-alike Cyrillic/Greek script",
		StrictOnly:  true,
	},
	"cmd-substitution": {
		Name:        "cmd-substitution",
		Category:    CategoryCommandExecution,
		Type:        types.ViolationCommandExecution,
		Severity:    types.SeverityCritical,
		Label:       "[CMD-SUB]",
		Pattern:     regexp.MustCompile(`\$\([^)]*\)`),
		Description: "shell command substitution",
	},
	"cmd-backtick": {
		Name:        "cmd-backtick",
		Category:    CategoryCommandExecution,
		Type:        types.ViolationCommandExecution,
		Severity:    types.SeverityCritical,
		Label:       "[CMD-SUB]",
		Pattern:     regexp.MustCompile("`[^`]*`"),
		Description: "backtick command substitution",
	},
	"var-expansion": {
		Name:        "var-expansion",
		Category:    CategoryCommandExecution,
		Type:        types.ViolationCommandExecution,
		Severity:    types.SeverityHigh,
		Label:       "[VAR-EXP]",
		Pattern:     regexp.MustCompile(`\$\{[^}]*\}`),
		Description: "shell parameter expansion",
	},
	"cmd-eval": {
		Name:        "cmd-eval",
		Category:    CategoryCommandExecution,
		Type:        types.ViolationCommandExecution,
		Severity:    types.SeverityCritical,
		Label:       "[CMD-EVAL]",
		Pattern:     regexp.MustCompile(`(?i)\b(?:eval|exec|system|popen|spawn|child_process)\s*\(`),
		Description: "eval-like call pattern",
	},
	"fmt-percent-n": {
		Name:        "fmt-percent-n",
		Category:    CategoryFormatString,
		Type:        types.ViolationInjectionAttempt,
		Severity:    types.SeverityMedium,
		Label:       "[FMT]",
		Pattern:     regexp.MustCompile(`%\d*\$?n\b`),
		Description: "format string write specifier",
	},
	"fmt-chain": {
		Name:        "fmt-chain",
		Category:    CategoryFormatString,
		Type:        types.ViolationInjectionAttempt,
		Severity:    types.SeverityMedium,
		Label:       "[FMT]",
		Pattern:     regexp.MustCompile(`(?:%[-+ #0-9.]*[diouxXeEfgGaAcspn]){4,}`),
		Description: "chained format specifiers",
	},
	"uri-scheme": {
		Name:        "uri-scheme",
		Category:    CategoryHyperlink,
		Type:        types.ViolationHyperlinkInjection,
		Severity:    types.SeverityMedium,
		Label:       "[URI]",
		Pattern:     regexp.MustCompile(`(?i)\b(?:javascript|data|vbscript):[^\s"'<>]{2,}`),
		Description: "executable URI scheme",
		StrictOnly:  true,
	},
	"null-byte": {
		Name:        "null-byte",
		Category:    CategoryNullByte,
		Type:        types.ViolationControlChars,
		Severity:    types.SeverityHigh,
		Label:       "[NULL]",
		Pattern:     regexp.MustCompile(`\x00+`),
		Description: "null byte injection",
	},
}

// detectionOrder fixes the pass order. Later passes operate on text already
// labeled by earlier ones and must never re-trigger them.
var detectionOrder = []string{
	"term-reset",
	"title-set",
	"hyperlink-osc",
	"osc-generic",
	"csi",
	"dcs",
	"apc-pm-sos",
	"control-chars",
	"zero-width",
	"bidi-override",
	"mixed-script",
	"cmd-substitution",
	"cmd-backtick",
	"var-expansion",
	"cmd-eval",
	"fmt-percent-n",
	"fmt-chain",
	"uri-scheme",
	"null-byte",
}

var (
	// Tab, LF and CR are never part of these classes; line endings belong to
	// the line-injection pass and tab handling depends on the formatting
	// option. NUL has its own detector.
	controlPreserving = regexp.MustCompile(`[\x01-\x08\x0b\x0c\x0e-\x1f\x7f\x{0080}-\x{009f}]+`)
	controlAll        = regexp.MustCompile(`[\x01-\x09\x0b\x0c\x0e-\x1f\x7f\x{0080}-\x{009f}]+`)
)

var prototypePollutionKeys = []string{"__proto__", "constructor", "prototype"}

var defaultMaskKeywords = []string{
	"password",
	"passwd",
	"token",
	"secret",
	"key",
	"authorization",
	"credential",
	"session",
	"cookie",
	"bearer",
}

// Detectors returns the full detector list in detection order. The slice is
// a fresh copy on every call.
func Detectors() []Detector {
	out := make([]Detector, 0, len(detectionOrder))
	for _, name := range detectionOrder {
		out = append(out, detectors[name])
	}
	return out
}

// DetectorByName returns one detector by name.
func DetectorByName(name string) (Detector, bool) {
	d, ok := detectors[name]
	return d, ok
}

// ControlCharsPattern returns the control-character class used by the
// control-chars pass. With preserveFormatting the class leaves tab alone;
// without it tab is stripped as well. LF and CR are excluded either way.
func ControlCharsPattern(preserveFormatting bool) *regexp.Regexp {
	if preserveFormatting {
		return controlPreserving
	}
	return controlAll
}

// DefaultCategories returns the category toggles for a protection level.
// The map is a fresh copy on every call.
func DefaultCategories(level Level) map[Category]bool {
	out := map[Category]bool{
		CategoryEscapeSequence:       true,
		CategoryTerminalManipulation: true,
		CategoryControlChars:         true,
		CategoryNullByte:             true,
		CategoryCommandExecution:     true,
		CategoryCustom:               true,
		CategoryLength:               true,
	}
	if level == LevelPermissive {
		return out
	}
	out[CategoryUnicodeAttack] = true
	out[CategoryHyperlink] = true
	out[CategoryLineInjection] = true
	out[CategoryFormatString] = true
	return out
}

// PrototypePollutionKeys returns the property names that are always
// neutralized during object sanitization. Fresh copy on every call.
func PrototypePollutionKeys() []string {
	out := make([]string, len(prototypePollutionKeys))
	copy(out, prototypePollutionKeys)
	return out
}

// IsPrototypePollutionKey reports whether the exact property name can reach
// an object prototype.
func IsPrototypePollutionKey(key string) bool {
	for _, k := range prototypePollutionKeys {
		if key == k {
			return true
		}
	}
	return false
}

// DefaultMaskKeywords returns the built-in sensitive key substrings. Fresh
// copy on every call.
func DefaultMaskKeywords() []string {
	out := make([]string, len(defaultMaskKeywords))
	copy(out, defaultMaskKeywords)
	return out
}
