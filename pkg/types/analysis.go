package types

// RiskLevel classifies the overall danger of an analyzed message.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ActionForRiskLevel maps a risk level to its deterministic recommended
// action.
func ActionForRiskLevel(level RiskLevel) RecommendedAction {
	switch level {
	case RiskCritical:
		return ActionBlock
	case RiskHigh:
		return ActionWarn
	case RiskMedium:
		return ActionAudit
	default:
		return ActionMonitor
	}
}

// SecurityAnalysis is the read-only outcome of analyzing a message without
// mutating it. RiskScore is a weighted sum over detected threat categories,
// clamped to [0, 100].
type SecurityAnalysis struct {
	RiskScore         int               `json:"risk_score"`
	RiskLevel         RiskLevel         `json:"risk_level"`
	ThreatCategories  []string          `json:"threat_categories"`
	AttackVectors     []string          `json:"attack_vectors"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	Violations        []Violation       `json:"violations"`
	Warnings          []string          `json:"warnings"`
}
