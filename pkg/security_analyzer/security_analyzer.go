// Package security_analyzer scores untrusted text for terminal and log
// injection risk without rewriting it. Each detected threat category adds a
// fixed weight to a 0-100 risk score; the score plus the worst violation
// severity determine the risk level and the recommended action.
package security_analyzer

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TrustWeave/LogArmor/pkg/content_sanitizer"
	"github.com/TrustWeave/LogArmor/pkg/metrics"
	"github.com/TrustWeave/LogArmor/pkg/threat_patterns"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

const component = "security_analyzer"

// categoryScores holds the fixed weight each threat category contributes to
// the risk score. A category scores once no matter how many detectors in it
// fire. Length is scored separately from the content size; control-chars and
// custom detections carry violations but no weight.
var categoryScores = map[threat_patterns.Category]int{
	threat_patterns.CategoryCommandExecution:     50,
	threat_patterns.CategoryTerminalManipulation: 40,
	threat_patterns.CategoryLineInjection:        35,
	threat_patterns.CategoryEscapeSequence:       25,
	threat_patterns.CategoryNullByte:             25,
	threat_patterns.CategoryFormatString:         20,
	threat_patterns.CategoryUnicodeAttack:        15,
	threat_patterns.CategoryHyperlink:            10,
}

const maxLengthScore = 30

// Analyzer runs the detection passes of a content sanitizer and folds the
// detections into a SecurityAnalysis. Safe for concurrent use.
type Analyzer struct {
	logger    *logrus.Logger
	sanitizer *content_sanitizer.Sanitizer
}

// NewAnalyzer builds an analyzer around a sanitizer compiled from opts. The
// sanitizer's violation hook is not used here; analysis returns the full
// violation list instead.
func NewAnalyzer(logger *logrus.Logger, opts content_sanitizer.Options) (*Analyzer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts.OnViolation = nil
	sanitizer, err := content_sanitizer.NewSanitizer(logger, opts)
	if err != nil {
		return nil, err
	}
	return &Analyzer{logger: logger, sanitizer: sanitizer}, nil
}

// Analyze scores text and returns the analysis. The input is never modified
// and empty input yields a zero-score low-risk analysis.
func (a *Analyzer) Analyze(text string) types.SecurityAnalysis {
	start := time.Now()
	analysis := types.SecurityAnalysis{
		RiskLevel:        types.RiskLow,
		ThreatCategories: []string{},
		AttackVectors:    []string{},
		Violations:       []types.Violation{},
		Warnings:         []string{},
	}
	if text == "" {
		analysis.RecommendedAction = types.ActionForRiskLevel(analysis.RiskLevel)
		return analysis
	}

	detections := a.sanitizer.Detect(text)
	score := 0
	seenCategories := make(map[threat_patterns.Category]bool, len(detections))
	seenVectors := make(map[string]bool, len(detections))
	for _, d := range detections {
		analysis.Violations = append(analysis.Violations, d.Violation())
		if !seenVectors[d.Name] {
			seenVectors[d.Name] = true
			analysis.AttackVectors = append(analysis.AttackVectors, d.Name)
		}
		if seenCategories[d.Category] {
			continue
		}
		seenCategories[d.Category] = true
		analysis.ThreatCategories = append(analysis.ThreatCategories, string(d.Category))
		if d.Category == threat_patterns.CategoryLength {
			score += lengthScore(len(text))
			analysis.Warnings = append(analysis.Warnings, d.Description)
			continue
		}
		score += categoryScores[d.Category]
	}
	if score > 100 {
		score = 100
	}

	analysis.RiskScore = score
	analysis.RiskLevel = riskLevelFor(score, analysis.Violations)
	analysis.RecommendedAction = types.ActionForRiskLevel(analysis.RiskLevel)

	if analysis.RiskLevel == types.RiskHigh || analysis.RiskLevel == types.RiskCritical {
		a.logger.WithFields(logrus.Fields{
			"risk_score":        analysis.RiskScore,
			"risk_level":        string(analysis.RiskLevel),
			"threat_categories": analysis.ThreatCategories,
		}).Warn("High risk content detected")
	}
	metrics.RecordScanDuration(component, float64(time.Since(start).Microseconds())/1000.0)
	return analysis
}

// lengthScore grows with content size, one point per 1000 bytes, capped at
// maxLengthScore.
func lengthScore(n int) int {
	score := n / 1000
	if score > maxLengthScore {
		return maxLengthScore
	}
	return score
}

// riskLevelFor applies the fixed thresholds. Any critical violation forces
// the critical level regardless of score.
func riskLevelFor(score int, violations []types.Violation) types.RiskLevel {
	switch {
	case score >= 80 || types.HasCritical(violations):
		return types.RiskCritical
	case score >= 50:
		return types.RiskHigh
	case score >= 20:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}
