package types

// SanitizationMetrics carries coarse resource accounting for one
// sanitization call.
type SanitizationMetrics struct {
	MemoryEstimateBytes int64   `json:"memory_estimate_bytes"`
	ProcessingTimeMs    float64 `json:"processing_time_ms"`
}

// SanitizationResult is the outcome of sanitizing an object graph.
// Sanitized is nil only when the root itself was judged entirely unsafe;
// every other failure mode yields a best-effort partial value plus warnings.
type SanitizationResult struct {
	Sanitized    interface{}         `json:"sanitized"`
	IsValid      bool                `json:"is_valid"`
	Violations   []Violation         `json:"violations"`
	Warnings     []string            `json:"warnings"`
	OriginalType string              `json:"original_type"`
	Strategy     string              `json:"strategy"`
	Metrics      SanitizationMetrics `json:"metrics"`
	Report       string              `json:"report,omitempty"`
}
