package object_sanitizer

import (
	"fmt"
	"regexp"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/TrustWeave/LogArmor/pkg/common"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

// Level picks one of the sanitization presets. Presets fix the default
// per-shape strategy table; individual strategies can still be overridden.
type Level string

const (
	LevelMinimal  Level = "minimal"
	LevelStandard Level = "standard"
	LevelStrict   Level = "strict"
	LevelParanoid Level = "paranoid"
)

// IsValid reports whether the level is one of the known presets.
func (l Level) IsValid() bool {
	switch l {
	case LevelMinimal, LevelStandard, LevelStrict, LevelParanoid:
		return true
	}
	return false
}

// Strategy is the per-shape transformation policy applied to a node.
type Strategy string

const (
	StrategySanitize Strategy = "sanitize"
	StrategyRedact   Strategy = "redact"
	StrategyFlatten  Strategy = "flatten"
	StrategyPreserve Strategy = "preserve"
	StrategyRemove   Strategy = "remove"
)

// IsValid reports whether the strategy is one of the known policies.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategySanitize, StrategyRedact, StrategyFlatten, StrategyPreserve, StrategyRemove:
		return true
	}
	return false
}

// ValueKind is the closed classification of a node's runtime shape. Every
// node maps to exactly one kind before strategy dispatch.
type ValueKind string

const (
	KindPrimitive     ValueKind = "primitive"
	KindPlainObject   ValueKind = "plain-object"
	KindArray         ValueKind = "array"
	KindDate          ValueKind = "date"
	KindRegex         ValueKind = "regex"
	KindBinaryBlob    ValueKind = "binary-blob"
	KindFunction      ValueKind = "function"
	KindSymbol        ValueKind = "symbol"
	KindBigInteger    ValueKind = "big-integer"
	KindClassInstance ValueKind = "class-instance"
	KindCircular      ValueKind = "circular"
)

// IsValid reports whether the kind is part of the closed variant set.
func (k ValueKind) IsValid() bool {
	switch k {
	case KindPrimitive, KindPlainObject, KindArray, KindDate, KindRegex,
		KindBinaryBlob, KindFunction, KindSymbol, KindBigInteger,
		KindClassInstance, KindCircular:
		return true
	}
	return false
}

// presetStrategies fixes the default per-shape policy of each level. The
// higher the level, the more aggressively risky shapes are removed instead
// of transformed. Containers and primitives always sanitize; circular nodes
// are handled before dispatch and never consult this table.
var presetStrategies = map[Level]map[ValueKind]Strategy{
	LevelMinimal: {
		KindPrimitive:     StrategySanitize,
		KindPlainObject:   StrategySanitize,
		KindArray:         StrategySanitize,
		KindDate:          StrategyPreserve,
		KindRegex:         StrategyPreserve,
		KindBinaryBlob:    StrategyPreserve,
		KindFunction:      StrategyRedact,
		KindSymbol:        StrategyRedact,
		KindBigInteger:    StrategyPreserve,
		KindClassInstance: StrategySanitize,
	},
	LevelStandard: {
		KindPrimitive:     StrategySanitize,
		KindPlainObject:   StrategySanitize,
		KindArray:         StrategySanitize,
		KindDate:          StrategyPreserve,
		KindRegex:         StrategyFlatten,
		KindBinaryBlob:    StrategyFlatten,
		KindFunction:      StrategyRedact,
		KindSymbol:        StrategyRedact,
		KindBigInteger:    StrategySanitize,
		KindClassInstance: StrategySanitize,
	},
	LevelStrict: {
		KindPrimitive:     StrategySanitize,
		KindPlainObject:   StrategySanitize,
		KindArray:         StrategySanitize,
		KindDate:          StrategyFlatten,
		KindRegex:         StrategyFlatten,
		KindBinaryBlob:    StrategyFlatten,
		KindFunction:      StrategyRemove,
		KindSymbol:        StrategyRemove,
		KindBigInteger:    StrategySanitize,
		KindClassInstance: StrategySanitize,
	},
	LevelParanoid: {
		KindPrimitive:     StrategySanitize,
		KindPlainObject:   StrategySanitize,
		KindArray:         StrategySanitize,
		KindDate:          StrategyFlatten,
		KindRegex:         StrategyRemove,
		KindBinaryBlob:    StrategyRemove,
		KindFunction:      StrategyRemove,
		KindSymbol:        StrategyRemove,
		KindBigInteger:    StrategyFlatten,
		KindClassInstance: StrategyRemove,
	},
}

// PresetStrategies returns the default strategy table for a level. The map
// is a fresh copy on every call; unknown levels get the standard table.
func PresetStrategies(level Level) map[ValueKind]Strategy {
	preset, ok := presetStrategies[level]
	if !ok {
		preset = presetStrategies[LevelStandard]
	}
	out := make(map[ValueKind]Strategy, len(preset))
	for k, v := range preset {
		out[k] = v
	}
	return out
}

// RedactionRule is one caller-supplied redaction pattern. With
// AppliesToKeys the rule masks the whole value of any property whose name
// matches; without it the rule rewrites matching spans inside string
// values.
type RedactionRule struct {
	Name          string `mapstructure:"name" json:"name"`
	Pattern       string `mapstructure:"pattern" json:"pattern"`
	MaskWith      string `mapstructure:"mask_with" json:"mask_with"`
	AppliesToKeys bool   `mapstructure:"applies_to_keys" json:"applies_to_keys"`
}

// Options configures an object sanitizer. The zero value is usable: every
// field falls back to a documented default during construction.
type Options struct {
	// Level picks the preset strategy table. Empty or unknown values
	// normalize to standard.
	Level Level `mapstructure:"level"`

	// MaxDepth halts descent below this nesting depth. Deeper nodes become
	// a depth placeholder and one deep-nesting violation is recorded per
	// call.
	MaxDepth int `mapstructure:"max_depth"`

	// MaxObjectSize caps the running byte estimate (string length x2 plus
	// fixed scalar costs). Exceeding it drops remaining sibling properties.
	MaxObjectSize int64 `mapstructure:"max_object_size"`

	// MaxProperties caps the keys of one object or the elements of one
	// array; the rest are dropped with a warning.
	MaxProperties int `mapstructure:"max_properties"`

	// MaxStringLength truncates string values to this many bytes plus a
	// fixed truncation marker, before any pattern scanning.
	MaxStringLength int `mapstructure:"max_string_length"`

	// MaxProcessingTime is the cooperative wall-clock budget, checked at
	// traversal checkpoints. Exhaustion turns remaining nodes into time
	// placeholders.
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`

	// MaskKeywords are case-insensitive substrings matched against property
	// names; matches replace the value with MaskWith. Empty means the
	// built-in keyword list.
	MaskKeywords []string `mapstructure:"mask_keywords"`

	// MaskWith is the replacement for masked values.
	MaskWith string `mapstructure:"mask_with"`

	// EnableSimilarity also masks near-miss property names by Levenshtein
	// ratio against the keywords ("passwrd" for "password").
	EnableSimilarity bool `mapstructure:"enable_similarity"`

	// SimilarityThreshold is the minimum ratio for a near-miss match,
	// in (0, 1].
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`

	// CustomRules are compiled at construction and applied to property
	// names or string values.
	CustomRules []RedactionRule `mapstructure:"custom_rules"`

	// Strategies overrides individual entries of the preset table.
	Strategies map[ValueKind]Strategy `mapstructure:"strategies"`

	// BatchConcurrency bounds the goroutines used by SanitizeBatch.
	BatchConcurrency int `mapstructure:"batch_concurrency"`

	// OnViolation, when set, is invoked synchronously for every violation
	// as it is recorded. The violation list is always returned on the
	// result as well.
	OnViolation func(types.Violation) `mapstructure:"-" json:"-"`
}

// OptionsFromMap decodes loosely-typed settings into Options and validates
// them. Duration fields accept Go duration strings ("5s").
func OptionsFromMap(settings map[string]interface{}) (Options, error) {
	var opts Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return Options{}, fmt.Errorf("failed to build options decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return Options{}, fmt.Errorf("failed to decode object sanitizer options: %w", err)
	}
	if err := ValidateOptions(opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ValidateOptions rejects options that cannot be normalized away: unknown
// levels, kinds or strategies, and uncompilable redaction patterns.
func ValidateOptions(opts Options) error {
	if opts.Level != "" && !opts.Level.IsValid() {
		return fmt.Errorf("invalid sanitization level: %s", opts.Level)
	}
	for kind, strategy := range opts.Strategies {
		if !kind.IsValid() {
			return fmt.Errorf("invalid value kind in strategy override: %s", kind)
		}
		if !strategy.IsValid() {
			return fmt.Errorf("invalid strategy for %s: %s", kind, strategy)
		}
	}
	for _, rule := range opts.CustomRules {
		if rule.Pattern == "" {
			return fmt.Errorf("redaction rule %q has an empty pattern", rule.Name)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", rule.Pattern, err)
		}
	}
	return nil
}

// normalize clamps out-of-range values to the documented defaults and
// returns one entry per adjusted field.
func (o *Options) normalize() []string {
	var report []string
	if !o.Level.IsValid() {
		if o.Level != "" {
			report = append(report, fmt.Sprintf("level %q replaced with %q", o.Level, LevelStandard))
		}
		o.Level = LevelStandard
	}
	if o.MaxDepth < 1 {
		if o.MaxDepth < 0 {
			report = append(report, fmt.Sprintf("max_depth %d clamped to %d", o.MaxDepth, common.DefaultMaxDepth))
		}
		o.MaxDepth = common.DefaultMaxDepth
	}
	if o.MaxObjectSize < 1 {
		if o.MaxObjectSize < 0 {
			report = append(report, fmt.Sprintf("max_object_size %d clamped to %d", o.MaxObjectSize, int64(common.DefaultMaxObjectSize)))
		}
		o.MaxObjectSize = common.DefaultMaxObjectSize
	}
	if o.MaxProperties < 1 {
		if o.MaxProperties < 0 {
			report = append(report, fmt.Sprintf("max_properties %d clamped to %d", o.MaxProperties, common.DefaultMaxProperties))
		}
		o.MaxProperties = common.DefaultMaxProperties
	}
	if o.MaxStringLength < 1 {
		if o.MaxStringLength < 0 {
			report = append(report, fmt.Sprintf("max_string_length %d clamped to %d", o.MaxStringLength, common.DefaultMaxStringLength))
		}
		o.MaxStringLength = common.DefaultMaxStringLength
	}
	if o.MaxProcessingTime <= 0 {
		if o.MaxProcessingTime < 0 {
			report = append(report, fmt.Sprintf("max_processing_time %s clamped to %s", o.MaxProcessingTime, common.DefaultMaxProcessingTime))
		}
		o.MaxProcessingTime = common.DefaultMaxProcessingTime
	}
	if o.MaskWith == "" {
		o.MaskWith = common.MaskedPlaceholder
	}
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		if o.SimilarityThreshold != 0 {
			report = append(report, fmt.Sprintf("similarity_threshold %v clamped to %v", o.SimilarityThreshold, common.DefaultSimilarityThreshold))
		}
		o.SimilarityThreshold = common.DefaultSimilarityThreshold
	}
	if o.BatchConcurrency < 1 {
		if o.BatchConcurrency < 0 {
			report = append(report, fmt.Sprintf("batch_concurrency %d clamped to %d", o.BatchConcurrency, common.DefaultBatchConcurrency))
		}
		o.BatchConcurrency = common.DefaultBatchConcurrency
	}
	for i, rule := range o.CustomRules {
		if rule.MaskWith == "" {
			o.CustomRules[i].MaskWith = common.RedactedPlaceholder
		}
		if rule.Name == "" {
			o.CustomRules[i].Name = fmt.Sprintf("rule-%d", i)
		}
	}
	return report
}
