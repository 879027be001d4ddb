// Package types holds the shared data model produced by the sanitization
// engine: violations, analyses, results and alerts. Everything here is
// plain data; components own the values they return and callers must treat
// them as read-only.
package types

import "time"

// ViolationType identifies the category of a detected attack or policy breach.
type ViolationType string

const (
	ViolationANSIEscape           ViolationType = "ansi-escape"
	ViolationTerminalManipulation ViolationType = "terminal-manipulation"
	ViolationControlChars         ViolationType = "control-chars"
	ViolationUnicodeAttack        ViolationType = "unicode-attack"
	ViolationCommandExecution     ViolationType = "command-execution"
	ViolationHyperlinkInjection   ViolationType = "hyperlink-injection"
	ViolationLineInjection        ViolationType = "line-injection"
	ViolationLengthOverflow       ViolationType = "length-overflow"
	ViolationPrototypePollution   ViolationType = "prototype-pollution"
	ViolationDangerousFunction    ViolationType = "dangerous-function"
	ViolationOversizedProperty    ViolationType = "oversized-property"
	ViolationDeepNesting          ViolationType = "deep-nesting"
	ViolationInjectionAttempt     ViolationType = "injection-attempt"
	ViolationCustomPattern        ViolationType = "custom-pattern"
)

// IsValid reports whether the violation type is one of the known categories.
func (v ViolationType) IsValid() bool {
	switch v {
	case ViolationANSIEscape, ViolationTerminalManipulation, ViolationControlChars,
		ViolationUnicodeAttack, ViolationCommandExecution, ViolationHyperlinkInjection,
		ViolationLineInjection, ViolationLengthOverflow, ViolationPrototypePollution,
		ViolationDangerousFunction, ViolationOversizedProperty, ViolationDeepNesting,
		ViolationInjectionAttempt, ViolationCustomPattern:
		return true
	}
	return false
}

// Severity classifies how dangerous a single violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (0) to critical (3). Unknown severities
// rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// RecommendedAction tells the caller how to react to a violation or analysis.
type RecommendedAction string

const (
	ActionBlock   RecommendedAction = "block"
	ActionWarn    RecommendedAction = "warn"
	ActionAudit   RecommendedAction = "audit"
	ActionMonitor RecommendedAction = "monitor"
)

// ActionForSeverity maps a violation severity to the action the engine
// recommends for it. The mapping is fixed.
func ActionForSeverity(s Severity) RecommendedAction {
	switch s {
	case SeverityCritical:
		return ActionBlock
	case SeverityHigh:
		return ActionWarn
	case SeverityMedium:
		return ActionAudit
	default:
		return ActionMonitor
	}
}

// Violation records one detected attack or policy breach found during a
// sanitization pass. Violations are immutable once recorded and are owned by
// the result that carries them.
type Violation struct {
	Type              ViolationType     `json:"type"`
	Severity          Severity          `json:"severity"`
	Description       string            `json:"description"`
	OriginalExcerpt   string            `json:"original_excerpt,omitempty"` // truncated to 100 chars
	Position          int               `json:"position,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
}

// HasCritical reports whether any violation in the slice is critical.
func HasCritical(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// MaxSeverity returns the highest severity present, or SeverityLow for an
// empty slice.
func MaxSeverity(violations []Violation) Severity {
	max := SeverityLow
	for _, v := range violations {
		if v.Severity.Rank() > max.Rank() {
			max = v.Severity
		}
	}
	return max
}
