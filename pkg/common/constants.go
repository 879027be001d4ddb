package common

import "time"

const (
	// Default budgets applied when an option is zero or out of range.
	DefaultMaxLineLength     = 2000
	DefaultMaxStringLength   = 2000
	DefaultMaxDepth          = 10
	DefaultMaxObjectSize     = 10 << 20 // bytes
	DefaultMaxProperties     = 100
	DefaultMaxProcessingTime = 5 * time.Second

	// DefaultSimilarityThreshold is the Levenshtein ratio above which a key
	// counts as a near-miss of a mask keyword.
	DefaultSimilarityThreshold = 0.8

	DefaultCacheSize     = 1024
	DefaultCacheTTL      = 5 * time.Minute
	DefaultSweepInterval = time.Minute

	DefaultWindowSize     = time.Minute
	DefaultAlertThreshold = 5
	DefaultBlockDuration  = 5 * time.Minute
	DefaultRecentKept     = 20

	DefaultBatchConcurrency = 4

	// ExcerptLimit bounds the slice of original input kept on a violation.
	ExcerptLimit = 100

	// Placeholders written into sanitized output. Sanitization must be
	// idempotent, so none of these may match any detector.
	MaskedPlaceholder    = "[MASKED]"
	RedactedPlaceholder  = "[REDACTED]"
	ProtectedPlaceholder = "[PROTECTED]"
	CircularPlaceholder  = "[Circular]"
	DepthPlaceholder     = "[DEPTH-LIMIT]"
	TimePlaceholder      = "[TIME-LIMIT]"
	ErrorPlaceholder     = "[ERROR]"
	TruncationMarker     = "...[TRUNCATED]"
)
