// Package security_monitor tracks analysis violations per source inside a
// sliding window and raises an alert when a source crosses its threshold.
// Sources are fully independent: each one carries its own counter, window
// and recent-violation ring, and concurrent observations of different
// sources never contend on the same lock.
package security_monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/TrustWeave/LogArmor/pkg/common"
	"github.com/TrustWeave/LogArmor/pkg/metrics"
	"github.com/TrustWeave/LogArmor/pkg/security_analyzer"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

// fallbackSource buckets observations that arrive without a source id.
const fallbackSource = "unknown"

// Options configures the monitor. Zero values fall back to the documented
// defaults at construction.
type Options struct {
	// WindowSize is the sliding window per source. Counters reset when the
	// window expires.
	WindowSize time.Duration `mapstructure:"window_size"`

	// AlertThreshold is the violation count inside one window that raises
	// an alert and resets the source.
	AlertThreshold int `mapstructure:"alert_threshold"`

	// MaxRecent bounds the recent-violation ring carried on alerts.
	MaxRecent int `mapstructure:"max_recent"`

	// EnableBlocking trips a per-source circuit breaker when an alert is
	// raised; Allow reports false for that source until BlockDuration has
	// passed and probe observations succeed again.
	EnableBlocking bool `mapstructure:"enable_blocking"`

	// BlockDuration is how long a tripped source stays blocked.
	BlockDuration time.Duration `mapstructure:"block_duration"`

	// OnAlert, when set, is invoked synchronously for every raised alert.
	OnAlert func(types.Alert) `mapstructure:"-" json:"-"`
}

func (o *Options) normalize() {
	if o.WindowSize <= 0 {
		o.WindowSize = common.DefaultWindowSize
	}
	if o.AlertThreshold < 1 {
		o.AlertThreshold = common.DefaultAlertThreshold
	}
	if o.MaxRecent < 1 {
		o.MaxRecent = common.DefaultRecentKept
	}
	if o.BlockDuration <= 0 {
		o.BlockDuration = common.DefaultBlockDuration
	}
}

// ProviderOpts injects clock and id generation, mainly for tests. Nil
// fields fall back to time.Now and uuid.New.
type ProviderOpts struct {
	TimeProvider func() time.Time
	UuidProvider func() uuid.UUID
}

// sourceState is the per-source counting window. Guarded by its own mutex
// so different sources never serialize on each other.
type sourceState struct {
	mu             sync.Mutex
	violationCount int
	windowStart    time.Time
	recent         []types.Violation
}

// Monitor observes analyzed text per source and raises alerts. Safe for
// concurrent use.
type Monitor struct {
	logger       *logrus.Logger
	analyzer     *security_analyzer.Analyzer
	opts         Options
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID

	mu       sync.RWMutex
	sources  map[string]*sourceState
	blockers map[string]*sourceBlocker
}

// NewMonitor builds a monitor around an analyzer.
func NewMonitor(logger *logrus.Logger, analyzer *security_analyzer.Analyzer, opts Options, providers *ProviderOpts) *Monitor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts.normalize()

	timeProvider := time.Now
	uuidProvider := uuid.New
	if providers != nil && providers.TimeProvider != nil {
		timeProvider = providers.TimeProvider
	}
	if providers != nil && providers.UuidProvider != nil {
		uuidProvider = providers.UuidProvider
	}

	return &Monitor{
		logger:       logger,
		analyzer:     analyzer,
		opts:         opts,
		timeProvider: timeProvider,
		uuidProvider: uuidProvider,
		sources:      make(map[string]*sourceState),
		blockers:     make(map[string]*sourceBlocker),
	}
}

// Observe analyzes text, folds its violations into the source window and
// returns the analysis plus the alert raised by this observation, if any.
// Clean observations never advance a counter.
func (m *Monitor) Observe(text, source string) (types.SecurityAnalysis, *types.Alert) {
	analysis := m.analyzer.Analyze(text)
	return analysis, m.Record(source, analysis.Violations)
}

// Record folds already-detected violations into the source window, for
// callers that ran their own detection pass (the object sanitizer).
// Reaching the threshold raises an alert and resets the source.
func (m *Monitor) Record(source string, violations []types.Violation) *types.Alert {
	if len(violations) == 0 {
		return nil
	}
	if source == "" {
		source = fallbackSource
	}

	state := m.stateFor(source)
	now := m.timeProvider()

	state.mu.Lock()
	if state.windowStart.IsZero() || now.Sub(state.windowStart) > m.opts.WindowSize {
		state.violationCount = 0
		state.windowStart = now
		state.recent = state.recent[:0]
	}
	state.violationCount += len(violations)
	state.recent = append(state.recent, violations...)
	if len(state.recent) > m.opts.MaxRecent {
		state.recent = state.recent[len(state.recent)-m.opts.MaxRecent:]
	}

	var alert *types.Alert
	if state.violationCount >= m.opts.AlertThreshold {
		recent := make([]types.Violation, len(state.recent))
		copy(recent, state.recent)
		alert = &types.Alert{
			ID:               m.uuidProvider().String(),
			Source:           source,
			ViolationCount:   state.violationCount,
			WindowStart:      state.windowStart,
			RaisedAt:         now,
			RecentViolations: recent,
		}
		state.violationCount = 0
		state.windowStart = now
		state.recent = state.recent[:0]
	}
	state.mu.Unlock()

	if alert != nil {
		m.logger.WithFields(logrus.Fields{
			"alert_id":        alert.ID,
			"source":          alert.Source,
			"violation_count": alert.ViolationCount,
		}).Warn("Security alert raised")
		metrics.RecordAlert()
		if m.opts.EnableBlocking {
			m.blockerFor(source).trip()
		}
		if m.opts.OnAlert != nil {
			m.opts.OnAlert(*alert)
		}
	}
	return alert
}

// Allow reports whether a source is currently accepted. Without blocking
// enabled (or for sources that never alerted) it is always true. A blocked
// source flips back to true after BlockDuration once its probe
// observations pass.
func (m *Monitor) Allow(source string) bool {
	if !m.opts.EnableBlocking {
		return true
	}
	if source == "" {
		source = fallbackSource
	}
	m.mu.RLock()
	blocker, ok := m.blockers[source]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	if blocker.allow() {
		return true
	}
	metrics.RecordBlockedObservation()
	return false
}

// ViolationCount returns the source's count inside its current window.
// Expired windows read as zero.
func (m *Monitor) ViolationCount(source string) int {
	if source == "" {
		source = fallbackSource
	}
	m.mu.RLock()
	state, ok := m.sources[source]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.windowStart.IsZero() || m.timeProvider().Sub(state.windowStart) > m.opts.WindowSize {
		return 0
	}
	return state.violationCount
}

// Reset drops all window and blocking state for a source.
func (m *Monitor) Reset(source string) {
	if source == "" {
		source = fallbackSource
	}
	m.mu.Lock()
	delete(m.sources, source)
	delete(m.blockers, source)
	m.mu.Unlock()
}

func (m *Monitor) stateFor(source string) *sourceState {
	m.mu.RLock()
	state, ok := m.sources[source]
	m.mu.RUnlock()
	if ok {
		return state
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sources[source]; ok {
		return state
	}
	state = &sourceState{}
	m.sources[source] = state
	return state
}

func (m *Monitor) blockerFor(source string) *sourceBlocker {
	m.mu.RLock()
	blocker, ok := m.blockers[source]
	m.mu.RUnlock()
	if ok {
		return blocker
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if blocker, ok := m.blockers[source]; ok {
		return blocker
	}
	blocker = newSourceBlocker(source, m.opts.BlockDuration)
	m.blockers[source] = blocker
	return blocker
}
