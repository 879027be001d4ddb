package content_sanitizer

import (
	"fmt"
	"regexp"

	"github.com/mitchellh/mapstructure"

	"github.com/TrustWeave/LogArmor/pkg/common"
	"github.com/TrustWeave/LogArmor/pkg/threat_patterns"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

// Options configures a Sanitizer. The zero value is usable: every field
// falls back to a documented default during construction.
type Options struct {
	// Level picks the protection level: strict, standard or permissive.
	// Empty or unknown values normalize to standard.
	Level threat_patterns.Level `mapstructure:"level"`

	// MaxLength truncates sanitized text to this many bytes plus a fixed
	// truncation marker. Values < 1 normalize to the default (2000).
	MaxLength int `mapstructure:"max_length"`

	// PreserveFormatting keeps tab, LF and CR in the output and disables
	// line-ending escaping.
	PreserveFormatting bool `mapstructure:"preserve_formatting"`

	// NormalizeUnicode applies NFC normalization before detection.
	NormalizeUnicode bool `mapstructure:"normalize_unicode"`

	// EnabledCategories overrides the level's category set when non-empty.
	EnabledCategories []threat_patterns.Category `mapstructure:"enabled_categories"`

	// DisabledCategories switches individual categories off after the level
	// (or EnabledCategories) has been applied.
	DisabledCategories []threat_patterns.Category `mapstructure:"disabled_categories"`

	// CustomPatterns are caller-supplied detectors applied after the
	// built-in ones.
	CustomPatterns []PatternRule `mapstructure:"custom_patterns"`

	// OnViolation, when set, is invoked synchronously for every violation
	// as it is recorded.
	OnViolation func(types.Violation) `mapstructure:"-" json:"-"`
}

// PatternRule is one caller-supplied detector.
type PatternRule struct {
	Name        string         `mapstructure:"name" json:"name"`
	Pattern     string         `mapstructure:"pattern" json:"pattern"`
	ReplaceWith string         `mapstructure:"replace_with" json:"replace_with"`
	Severity    types.Severity `mapstructure:"severity" json:"severity"`
	Description string         `mapstructure:"description" json:"description"`
}

// OptionsFromMap decodes loosely-typed settings into Options and validates
// them. Malformed settings (wrong types, uncompilable patterns) return an
// error; out-of-range values are left for normalization at construction.
func OptionsFromMap(settings map[string]interface{}) (Options, error) {
	var opts Options
	if err := mapstructure.Decode(settings, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to decode sanitizer options: %w", err)
	}
	if err := ValidateOptions(opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ValidateOptions rejects options that cannot be normalized away: unknown
// categories, empty or uncompilable custom patterns, unknown severities.
func ValidateOptions(opts Options) error {
	if opts.Level != "" && !opts.Level.IsValid() {
		return fmt.Errorf("invalid protection level: %s", opts.Level)
	}
	for _, c := range opts.EnabledCategories {
		if !c.IsValid() {
			return fmt.Errorf("invalid category: %s", c)
		}
	}
	for _, c := range opts.DisabledCategories {
		if !c.IsValid() {
			return fmt.Errorf("invalid category: %s", c)
		}
	}
	for _, rule := range opts.CustomPatterns {
		if rule.Pattern == "" {
			return fmt.Errorf("custom pattern cannot be empty")
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("invalid custom pattern %q: %w", rule.Pattern, err)
		}
		if rule.Severity != "" && rule.Severity.Rank() < 0 {
			return fmt.Errorf("invalid severity for custom pattern %q: %s", rule.Name, rule.Severity)
		}
	}
	return nil
}

// normalize clamps out-of-range values to the documented defaults and
// returns one entry per adjusted field. Clamping is explicit policy, not
// silent repair; construction logs the report and callers can read it via
// NormalizationReport.
func (o *Options) normalize() []string {
	var report []string
	if !o.Level.IsValid() {
		if o.Level != "" {
			report = append(report, fmt.Sprintf("level %q replaced with %q", o.Level, threat_patterns.LevelStandard))
		}
		o.Level = threat_patterns.LevelStandard
	}
	if o.MaxLength < 1 {
		if o.MaxLength < 0 {
			report = append(report, fmt.Sprintf("max_length %d clamped to %d", o.MaxLength, common.DefaultMaxLineLength))
		}
		o.MaxLength = common.DefaultMaxLineLength
	}
	for i, rule := range o.CustomPatterns {
		if rule.Severity.Rank() < 0 {
			if rule.Severity != "" {
				report = append(report, fmt.Sprintf("custom pattern %q severity %q replaced with %q", rule.Name, rule.Severity, types.SeverityMedium))
			}
			o.CustomPatterns[i].Severity = types.SeverityMedium
		}
		if rule.Name == "" {
			o.CustomPatterns[i].Name = fmt.Sprintf("custom-%d", i)
		}
	}
	return report
}

// categorySet resolves the enabled categories from the level and the
// explicit overrides.
func (o Options) categorySet() map[threat_patterns.Category]bool {
	var set map[threat_patterns.Category]bool
	if len(o.EnabledCategories) > 0 {
		set = make(map[threat_patterns.Category]bool, len(o.EnabledCategories))
		for _, c := range o.EnabledCategories {
			set[c] = true
		}
	} else {
		set = threat_patterns.DefaultCategories(o.Level)
	}
	for _, c := range o.DisabledCategories {
		delete(set, c)
	}
	return set
}
