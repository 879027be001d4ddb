package types

import "time"

// Alert is raised by the security monitor when a source crosses its
// violation threshold inside one sliding window.
type Alert struct {
	ID               string      `json:"id"`
	Source           string      `json:"source"`
	ViolationCount   int         `json:"violation_count"`
	WindowStart      time.Time   `json:"window_start"`
	RaisedAt         time.Time   `json:"raised_at"`
	RecentViolations []Violation `json:"recent_violations"`
}
