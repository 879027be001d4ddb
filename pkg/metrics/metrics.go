// Package metrics exposes the engine's Prometheus instrumentation on a
// private registry. Disabled by default; call Initialize to turn it on and
// mount Registry() wherever the host process serves its metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TrustWeave/LogArmor/pkg/types"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	componentLabels = []string{"component"}

	// Scan durations in milliseconds. Sanitization is in-memory work, so the
	// buckets skew far lower than request-latency buckets would.
	durationBuckets = []float64{
		0.01, 0.05, 0.1, 0.25, 0.5,
		1, 2.5, 5, 10, 25,
		50, 100, 250, 500, 1000,
	}

	SanitizationsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "logarmor_sanitizations_total",
			Help: "Total number of sanitization operations",
		},
		append(componentLabels, "outcome"), // outcome is "clean", "violations", "critical" or "cancelled"
	)

	ViolationsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "logarmor_violations_total",
			Help: "Total number of detected violations",
		},
		[]string{"type", "severity"},
	)

	ScanDuration = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logarmor_scan_duration_ms",
			Help:    "Sanitization and analysis durations in milliseconds",
			Buckets: durationBuckets,
		},
		componentLabels,
	)

	CacheEventsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "logarmor_cache_events_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"event"}, // "hit", "miss", "evict", "expire"
	)

	AlertsTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "logarmor_alerts_total",
			Help: "Alerts raised by the security monitor",
		},
	)

	BlockedObservationsTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "logarmor_blocked_observations_total",
			Help: "Observations rejected while a source cooldown was open",
		},
	)
)

type MetricsConfig struct {
	Enabled         bool // master switch; all recorders no-op when false
	EnableScanTimes bool // duration histogram (adds a timer per operation)
	EnableCacheHits bool // cache hit/miss counters
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:         false,
		EnableScanTimes: true,
		EnableCacheHits: true,
	}
}

var Config MetricsConfig

var registerProcessOnce sync.Once

// Initialize stores the metrics configuration and registers the process and
// Go runtime collectors on the private registry. Safe to call more than
// once; collectors register a single time.
func Initialize(cfg MetricsConfig) {
	Config = cfg
	if !cfg.Enabled {
		return
	}
	registerProcessOnce.Do(func() {
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	})
}

// Registry returns the private registry so the host process can mount it on
// its own exposition endpoint. The engine never starts an HTTP listener.
func Registry() *prometheus.Registry {
	return registry
}

func RecordSanitization(component, outcome string) {
	if !Config.Enabled {
		return
	}
	SanitizationsTotal.WithLabelValues(component, outcome).Inc()
}

func RecordViolation(v types.Violation) {
	if !Config.Enabled {
		return
	}
	ViolationsTotal.WithLabelValues(string(v.Type), string(v.Severity)).Inc()
}

func RecordScanDuration(component string, ms float64) {
	if !Config.Enabled || !Config.EnableScanTimes {
		return
	}
	ScanDuration.WithLabelValues(component).Observe(ms)
}

func RecordCacheEvent(event string) {
	if !Config.Enabled || !Config.EnableCacheHits {
		return
	}
	CacheEventsTotal.WithLabelValues(event).Inc()
}

func RecordAlert() {
	if !Config.Enabled {
		return
	}
	AlertsTotal.Inc()
}

func RecordBlockedObservation() {
	if !Config.Enabled {
		return
	}
	BlockedObservationsTotal.Inc()
}
