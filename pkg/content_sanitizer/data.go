package content_sanitizer

import (
	"time"

	"github.com/TrustWeave/LogArmor/pkg/threat_patterns"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

// Detection records one detector hit during a pass. Count is the number of
// occurrences the detector neutralized; Excerpt and Position describe the
// first one.
type Detection struct {
	Name        string                   `json:"name"`        // e.g. "title-set"
	Category    threat_patterns.Category `json:"category"`    // e.g. "terminal-manipulation"
	Type        types.ViolationType      `json:"type"`        // violation type recorded
	Severity    types.Severity           `json:"severity"`    // fixed per detector
	Description string                   `json:"description"` // human readable
	Excerpt     string                   `json:"excerpt"`     // first match, truncated
	Position    int                      `json:"position"`    // byte offset of first match
	Count       int                      `json:"count"`       // occurrences neutralized
}

// Violation converts the detection into the violation recorded on results.
func (d Detection) Violation() types.Violation {
	return types.Violation{
		Type:              d.Type,
		Severity:          d.Severity,
		Description:       d.Description,
		OriginalExcerpt:   d.Excerpt,
		Position:          d.Position,
		Timestamp:         time.Now(),
		RecommendedAction: types.ActionForSeverity(d.Severity),
	}
}
