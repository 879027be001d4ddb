// Package logarmor assembles the sanitization components into a single
// engine for host applications that want one wired entry point instead of
// composing the pkg/ components by hand. The engine owns the shared result
// cache and the per-source monitor; everything else is stateless per call.
package logarmor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TrustWeave/LogArmor/internal/logger"
	"github.com/TrustWeave/LogArmor/pkg/common"
	"github.com/TrustWeave/LogArmor/pkg/config"
	"github.com/TrustWeave/LogArmor/pkg/content_sanitizer"
	"github.com/TrustWeave/LogArmor/pkg/metrics"
	"github.com/TrustWeave/LogArmor/pkg/object_sanitizer"
	"github.com/TrustWeave/LogArmor/pkg/result_cache"
	"github.com/TrustWeave/LogArmor/pkg/security_analyzer"
	"github.com/TrustWeave/LogArmor/pkg/security_monitor"
	"github.com/TrustWeave/LogArmor/pkg/threat_patterns"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

// Engine bundles the content sanitizer, security analyzer, security
// monitor, object sanitizer and result cache behind one surface.
type Engine struct {
	logger   *logrus.Logger
	content  *content_sanitizer.Sanitizer
	analyzer *security_analyzer.Analyzer
	monitor  *security_monitor.Monitor
	objects  *object_sanitizer.Sanitizer
	cache    *result_cache.Cache
}

// NewEngine builds an engine from the process configuration loaded by
// config.Load (or its defaults when Load was never called). A nil logger
// selects the environment-driven default.
func NewEngine(log *logrus.Logger) (*Engine, error) {
	return NewEngineWithConfig(log, config.GetConfig())
}

// NewEngineWithConfig builds an engine from an explicit configuration,
// bypassing the global one. Used by hosts that manage their own config
// lifecycle and by tests.
func NewEngineWithConfig(log *logrus.Logger, cfg *config.Config) (*Engine, error) {
	if log == nil {
		log = logger.NewLogger()
	}
	if cfg == nil {
		cfg = config.GetConfig()
	}

	metrics.Initialize(metrics.MetricsConfig{
		Enabled:         cfg.Metrics.Enabled,
		EnableScanTimes: cfg.Metrics.EnableScanTimes,
		EnableCacheHits: cfg.Metrics.EnableCacheHits,
	})

	contentOpts := content_sanitizer.Options{
		Level:              threat_patterns.Level(cfg.Sanitizer.Level),
		MaxLength:          cfg.Sanitizer.MaxLineLength,
		PreserveFormatting: cfg.Sanitizer.PreserveFormatting,
		NormalizeUnicode:   cfg.Sanitizer.NormalizeUnicode,
	}
	content, err := content_sanitizer.NewSanitizer(log, contentOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create content sanitizer: %w", err)
	}

	analyzer, err := security_analyzer.NewAnalyzer(log, contentOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create security analyzer: %w", err)
	}

	monitor := security_monitor.NewMonitor(log, analyzer, security_monitor.Options{
		WindowSize:     cfg.Monitor.WindowSize,
		AlertThreshold: cfg.Monitor.AlertThreshold,
		EnableBlocking: cfg.Monitor.EnableBlocking,
		BlockDuration:  cfg.Monitor.BlockDuration,
	}, nil)

	var cache *result_cache.Cache
	if cfg.Cache.Enabled {
		cache, err = result_cache.NewCache(log, result_cache.Options{
			MaxEntries:    cfg.Cache.MaxEntries,
			TTL:           cfg.Cache.TTL,
			SweepInterval: cfg.Cache.SweepInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
	}

	objects, err := object_sanitizer.NewSanitizer(log, object_sanitizer.Options{
		Level:             object_sanitizer.Level(cfg.Objects.Level),
		MaxDepth:          cfg.Objects.MaxDepth,
		MaxObjectSize:     cfg.Objects.MaxObjectSize,
		MaxProperties:     cfg.Objects.MaxProperties,
		MaxStringLength:   cfg.Objects.MaxStringLength,
		MaxProcessingTime: cfg.Objects.MaxProcessingTime,
		MaskKeywords:      cfg.Objects.MaskKeywords,
		BatchConcurrency:  cfg.Objects.BatchConcurrency,
	}, cache)
	if err != nil {
		if cache != nil {
			cache.Stop()
		}
		return nil, fmt.Errorf("failed to create object sanitizer: %w", err)
	}

	return &Engine{
		logger:   log,
		content:  content,
		analyzer: analyzer,
		monitor:  monitor,
		objects:  objects,
		cache:    cache,
	}, nil
}

// Sanitize rewrites a free-text log message, labeling or stripping every
// detected threat.
func (e *Engine) Sanitize(message string) (string, []types.Violation) {
	return e.content.Sanitize(message)
}

// Analyze scores a message without rewriting it.
func (e *Engine) Analyze(message string) types.SecurityAnalysis {
	return e.analyzer.Analyze(message)
}

// Observe analyzes a message and charges its violations against the source
// window, returning the alert raised by this observation, if any.
func (e *Engine) Observe(message, source string) (types.SecurityAnalysis, *types.Alert) {
	return e.monitor.Observe(message, source)
}

// Allow reports whether the monitor currently accepts input from source.
// Always true unless blocking is enabled.
func (e *Engine) Allow(source string) bool {
	return e.monitor.Allow(source)
}

// SanitizeObject walks a structured value attached to a log entry. When the
// context carries a source id (common.WithSourceID) the violations also
// count toward that source's monitor window.
func (e *Engine) SanitizeObject(ctx context.Context, value interface{}) types.SanitizationResult {
	result := e.objects.SanitizeObject(ctx, value)
	if source, ok := common.SourceIDFromContext(ctx); ok {
		if alert := e.monitor.Record(source, result.Violations); alert != nil {
			e.logger.WithFields(logrus.Fields{
				"source":   source,
				"alert_id": alert.ID,
			}).Warn("Object sanitization triggered security alert")
		}
	}
	return result
}

// SanitizeBatch walks several values concurrently, preserving input order.
func (e *Engine) SanitizeBatch(ctx context.Context, values []interface{}) []types.SanitizationResult {
	return e.objects.SanitizeBatch(ctx, values)
}

// Monitor exposes the per-source monitor for window inspection and resets.
func (e *Engine) Monitor() *security_monitor.Monitor {
	return e.monitor
}

// CacheStats snapshots the result cache counters. Zero values when the
// cache is disabled.
func (e *Engine) CacheStats() result_cache.Stats {
	if e.cache == nil {
		return result_cache.Stats{}
	}
	return e.cache.Stats()
}

// Close releases background resources. The engine must not be used after
// Close.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Stop()
	}
}
