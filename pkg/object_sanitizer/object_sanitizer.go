// Package object_sanitizer makes loosely-typed object graphs safe to log.
// Every node is classified into a closed shape set and transformed by a
// per-shape strategy: strings run the content passes, containers recurse
// under depth/size/property/time budgets, risky shapes are labeled,
// flattened or removed per preset. Prototype-pollution property names are
// always neutralized and sensitive property names are masked. The call
// never panics on adversarial input and never mutates the caller's value.
package object_sanitizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TrustWeave/LogArmor/pkg/content_sanitizer"
	"github.com/TrustWeave/LogArmor/pkg/metrics"
	"github.com/TrustWeave/LogArmor/pkg/result_cache"
	"github.com/TrustWeave/LogArmor/pkg/threat_patterns"
	"github.com/TrustWeave/LogArmor/pkg/types"
	"github.com/TrustWeave/LogArmor/pkg/utils"
)

const component = "object_sanitizer"

type compiledRule struct {
	name     string
	re       *regexp.Regexp
	maskWith string
}

// Sanitizer transforms object graphs according to compiled Options. A
// Sanitizer is immutable after construction and safe for concurrent use.
type Sanitizer struct {
	logger       *logrus.Logger
	opts         Options
	content      *content_sanitizer.Sanitizer
	cache        *result_cache.Cache
	strategies   map[ValueKind]Strategy
	maskKeywords []string
	keyRules     []compiledRule
	valueRules   []compiledRule
	optionsTag   string
	reportText   string
	now          func() time.Time
}

// NewSanitizer validates and normalizes opts, compiles the redaction rules
// and the inner content sanitizer, and binds the optional result cache. A
// nil cache disables memoization; a nil logger falls back to the logrus
// standard logger.
func NewSanitizer(logger *logrus.Logger, opts Options, cache *result_cache.Cache) (*Sanitizer, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// The option slices are copied so later caller mutations cannot reach
	// the compiled sanitizer.
	opts.MaskKeywords = append([]string(nil), opts.MaskKeywords...)
	opts.CustomRules = append([]RedactionRule(nil), opts.CustomRules...)
	report := opts.normalize()

	content, err := content_sanitizer.NewSanitizer(logger, content_sanitizer.Options{
		Level:     contentLevelFor(opts.Level),
		MaxLength: opts.MaxStringLength,
	})
	if err != nil {
		return nil, err
	}

	s := &Sanitizer{
		logger:     logger,
		opts:       opts,
		content:    content,
		cache:      cache,
		strategies: PresetStrategies(opts.Level),
		optionsTag: optionsTag(opts),
		reportText: strings.Join(report, "; "),
		now:        time.Now,
	}
	for kind, strategy := range opts.Strategies {
		// circular nodes always become placeholders; the override table
		// cannot reach them
		if kind == KindCircular {
			continue
		}
		s.strategies[kind] = strategy
	}

	keywords := opts.MaskKeywords
	if len(keywords) == 0 {
		keywords = threat_patterns.DefaultMaskKeywords()
	}
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		s.maskKeywords = append(s.maskKeywords, strings.ToLower(keyword))
	}

	for _, rule := range opts.CustomRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", rule.Pattern, err)
		}
		compiled := compiledRule{name: rule.Name, re: re, maskWith: rule.MaskWith}
		if rule.AppliesToKeys {
			s.keyRules = append(s.keyRules, compiled)
		} else {
			s.valueRules = append(s.valueRules, compiled)
		}
	}

	if len(report) > 0 {
		logger.WithFields(logrus.Fields{
			"adjustments": report,
		}).Debug("Object sanitizer options normalized")
	}
	return s, nil
}

// SanitizeObject processes one value and returns a best-effort result. The
// input is never mutated; Sanitized is nil only for a root removed by
// policy or a call that was already cancelled on entry.
func (s *Sanitizer) SanitizeObject(ctx context.Context, value interface{}) types.SanitizationResult {
	start := s.now()
	if ctx == nil {
		ctx = context.Background()
	}

	kind := classify(value)
	result := types.SanitizationResult{
		IsValid:      true,
		Violations:   []types.Violation{},
		Warnings:     []string{},
		OriginalType: string(kind),
		Strategy:     string(s.strategyFor(kind)),
		Report:       s.reportText,
	}

	if err := ctx.Err(); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("not processed: %v", err))
		metrics.RecordSanitization(component, "cancelled")
		return result
	}

	var cacheKey string
	if s.cache != nil {
		if fp, ok := result_cache.Fingerprint(value); ok {
			cacheKey = s.optionsTag + ":" + fp
			if hit, ok := s.cache.Get(cacheKey); ok {
				return *hit
			}
		}
	}

	w := &walker{
		s:         s,
		ctx:       ctx,
		deadline:  start.Add(s.opts.MaxProcessingTime),
		ancestors: make(map[identity]bool),
	}
	sanitized, keep := w.walk(value, 0)
	if !keep {
		sanitized = nil
	}

	result.Sanitized = sanitized
	if len(w.violations) > 0 {
		result.Violations = w.violations
	}
	if len(w.warnings) > 0 {
		result.Warnings = w.warnings
	}
	if w.rootCycle {
		result.OriginalType = string(KindCircular)
	}
	result.IsValid = s.resultValid(result.Violations)
	result.Metrics = types.SanitizationMetrics{
		MemoryEstimateBytes: w.byteEstimate,
		ProcessingTimeMs:    float64(s.now().Sub(start).Microseconds()) / 1000.0,
	}

	outcome := "clean"
	switch {
	case !result.IsValid:
		outcome = "critical"
	case len(result.Violations) > 0:
		outcome = "violations"
	}
	metrics.RecordSanitization(component, outcome)
	metrics.RecordScanDuration(component, result.Metrics.ProcessingTimeMs)

	if len(result.Violations) > 0 {
		s.logger.WithFields(logrus.Fields{
			"violations":   len(result.Violations),
			"warnings":     len(result.Warnings),
			"max_severity": string(types.MaxSeverity(result.Violations)),
			"level":        string(s.opts.Level),
		}).Warn("Object sanitized with violations")
	}
	if cacheKey != "" {
		s.cache.Put(cacheKey, &result)
	}
	return result
}

// SanitizeBatch processes items independently and concurrently. Result
// order matches input order and one item can never abort another.
func (s *Sanitizer) SanitizeBatch(ctx context.Context, values []interface{}) []types.SanitizationResult {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]types.SanitizationResult, len(values))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)
	for i, value := range values {
		i, value := i, value
		g.Go(func() error {
			results[i] = s.SanitizeObject(gctx, value)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// NormalizationReport lists the option adjustments applied during
// construction, empty when nothing was clamped.
func (s *Sanitizer) NormalizationReport() string {
	return s.reportText
}

func (s *Sanitizer) strategyFor(kind ValueKind) Strategy {
	if strategy, ok := s.strategies[kind]; ok {
		return strategy
	}
	return StrategySanitize
}

// resultValid applies the invalidation policy: critical violations always
// invalidate, and under paranoid high-severity ones do too.
func (s *Sanitizer) resultValid(violations []types.Violation) bool {
	threshold := types.SeverityCritical
	if s.opts.Level == LevelParanoid {
		threshold = types.SeverityHigh
	}
	return types.MaxSeverity(violations).Rank() < threshold.Rank()
}

// maskFor matches a property name against the keyword list, the optional
// similarity supplement and the key-scoped redaction rules.
func (s *Sanitizer) maskFor(key string) (string, bool) {
	lower := strings.ToLower(key)
	for _, keyword := range s.maskKeywords {
		if strings.Contains(lower, keyword) {
			return s.opts.MaskWith, true
		}
	}
	if s.opts.EnableSimilarity {
		for _, keyword := range s.maskKeywords {
			if utils.SimilarityRatio(lower, keyword) >= s.opts.SimilarityThreshold {
				return s.opts.MaskWith, true
			}
		}
	}
	for _, rule := range s.keyRules {
		if rule.re.MatchString(key) {
			return rule.maskWith, true
		}
	}
	return "", false
}

func (s *Sanitizer) violation(t types.ViolationType, severity types.Severity, description, excerpt string) types.Violation {
	return types.Violation{
		Type:              t,
		Severity:          severity,
		Description:       description,
		OriginalExcerpt:   excerpt,
		Timestamp:         s.now(),
		RecommendedAction: types.ActionForSeverity(severity),
	}
}

// contentLevelFor maps the object preset onto the content protection level
// used for string values and property names.
func contentLevelFor(level Level) threat_patterns.Level {
	switch level {
	case LevelMinimal:
		return threat_patterns.LevelPermissive
	case LevelStrict, LevelParanoid:
		return threat_patterns.LevelStrict
	default:
		return threat_patterns.LevelStandard
	}
}

// optionsTag fingerprints options for cache key prefixes. The violation
// hook stays outside the tag: it is per-call state, not compile input.
func optionsTag(opts Options) string {
	opts.OnViolation = nil
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Sprintf("%+v", opts)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
