package metrics

import (
	"sync"

	"github.com/TrustWeave/LogArmor/pkg/types"
)

// ViolationCollector accumulates violations across calls. Its Observe method
// matches the violation-observer hook signature, so callers attach one
// collector to several sanitizers and read the combined list afterwards.
type ViolationCollector struct {
	mu         sync.Mutex
	violations []types.Violation
}

func NewViolationCollector() *ViolationCollector {
	return &ViolationCollector{}
}

func (c *ViolationCollector) Observe(v types.Violation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.violations = append(c.violations, v)
}

// Violations returns a copy of everything observed so far.
func (c *ViolationCollector) Violations() []types.Violation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Violation, len(c.violations))
	copy(out, c.violations)
	return out
}

// Count returns the number of observed violations.
func (c *ViolationCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.violations)
}

func (c *ViolationCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.violations = nil
}
