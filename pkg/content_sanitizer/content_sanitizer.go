// Package content_sanitizer rewrites untrusted text so it is safe to print
// on a terminal or append to a log: escape sequences, terminal manipulation,
// command substitution, invisible Unicode and line endings are replaced with
// bracketed labels, and oversized content is truncated. Passes run in a fixed
// order and every label is inert against the whole detector set, so
// sanitizing already-sanitized text changes nothing.
package content_sanitizer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/TrustWeave/LogArmor/pkg/common"
	"github.com/TrustWeave/LogArmor/pkg/metrics"
	"github.com/TrustWeave/LogArmor/pkg/threat_patterns"
	"github.com/TrustWeave/LogArmor/pkg/types"
	"github.com/TrustWeave/LogArmor/pkg/utils"
)

const component = "content_sanitizer"

// suspiciousChars short-circuits the regex passes. Printable ASCII that
// contains none of these bytes (and no control or high-bit bytes, which the
// first scan loop catches) cannot match any standard-level detector.
var suspiciousChars = []byte{'$', '`', '%', '('}

// lineReplacer escapes line endings so injected text cannot forge log
// records. The escaped forms are printable and never re-trigger the pass.
var lineReplacer = strings.NewReplacer(
	"\r\n", "\\r\\n",
	"\r", "\\r",
	"\n", "\\n",
	"\u2028", "\\u2028",
	"\u2029", "\\u2029",
)

// step is one pass of the pipeline. A nil re marks the line-ending pass,
// which runs lineReplacer instead of a pattern.
type step struct {
	name        string
	category    threat_patterns.Category
	vtype       types.ViolationType
	severity    types.Severity
	label       string
	description string
	flagOnly    bool
	re          *regexp.Regexp
}

// Sanitizer runs an ordered set of detection passes compiled from Options.
// A Sanitizer is immutable after construction and safe for concurrent use.
type Sanitizer struct {
	logger     *logrus.Logger
	opts       Options
	categories map[threat_patterns.Category]bool
	steps      []step
	prefilter  bool
	report     []string
}

// NewSanitizer validates and normalizes opts and compiles the pass list.
// A nil logger falls back to the logrus standard logger.
func NewSanitizer(logger *logrus.Logger, opts Options) (*Sanitizer, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// The option slices are copied so later caller mutations cannot reach
	// the compiled sanitizer.
	opts.EnabledCategories = append([]threat_patterns.Category(nil), opts.EnabledCategories...)
	opts.DisabledCategories = append([]threat_patterns.Category(nil), opts.DisabledCategories...)
	opts.CustomPatterns = append([]PatternRule(nil), opts.CustomPatterns...)

	report := opts.normalize()
	categories := opts.categorySet()
	steps, err := buildSteps(opts, categories)
	if err != nil {
		return nil, err
	}

	s := &Sanitizer{
		logger:     logger,
		opts:       opts,
		categories: categories,
		steps:      steps,
		prefilter:  opts.Level != threat_patterns.LevelStrict && len(opts.CustomPatterns) == 0,
		report:     report,
	}
	if len(report) > 0 {
		logger.WithFields(logrus.Fields{
			"adjustments": report,
		}).Debug("Sanitizer options normalized")
	}
	return s, nil
}

// buildSteps assembles the pass list in detection order. The line-ending
// pass has no regex and is slotted in just before the null-byte detector so
// escaped sequences are already out of the way of later passes.
func buildSteps(opts Options, categories map[threat_patterns.Category]bool) ([]step, error) {
	strict := opts.Level == threat_patterns.LevelStrict
	lineWanted := categories[threat_patterns.CategoryLineInjection] && !opts.PreserveFormatting
	linePlaced := false

	steps := make([]step, 0, 24)
	for _, d := range threat_patterns.Detectors() {
		if d.StrictOnly && !strict {
			continue
		}
		if !categories[d.Category] {
			continue
		}
		if lineWanted && !linePlaced && d.Name == "null-byte" {
			steps = append(steps, lineStep())
			linePlaced = true
		}
		re := d.Pattern
		if d.Name == "control-chars" {
			re = threat_patterns.ControlCharsPattern(opts.PreserveFormatting)
		}
		steps = append(steps, step{
			name:        d.Name,
			category:    d.Category,
			vtype:       d.Type,
			severity:    d.Severity,
			label:       d.Label,
			description: d.Description,
			flagOnly:    d.Label == "",
			re:          re,
		})
	}
	if lineWanted && !linePlaced {
		steps = append(steps, lineStep())
	}

	if categories[threat_patterns.CategoryCustom] {
		for _, rule := range opts.CustomPatterns {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid custom pattern %q: %w", rule.Pattern, err)
			}
			label := rule.ReplaceWith
			if label == "" {
				label = common.RedactedPlaceholder
			}
			description := rule.Description
			if description == "" {
				description = fmt.Sprintf("custom pattern %q matched", rule.Name)
			}
			steps = append(steps, step{
				name:        rule.Name,
				category:    threat_patterns.CategoryCustom,
				vtype:       types.ViolationCustomPattern,
				severity:    rule.Severity,
				label:       label,
				description: description,
				re:          re,
			})
		}
	}
	return steps, nil
}

func lineStep() step {
	return step{
		name:        "line-endings",
		category:    threat_patterns.CategoryLineInjection,
		vtype:       types.ViolationLineInjection,
		severity:    types.SeverityMedium,
		description: "line endings escaped to prevent forged log records",
	}
}

// Sanitize runs every enabled pass over text and returns the rewritten text
// plus one violation per triggered detector. The input is never modified;
// clean input comes back unchanged.
func (s *Sanitizer) Sanitize(text string) (string, []types.Violation) {
	return s.sanitize(text, s.opts.OnViolation)
}

// Detect runs the passes and returns the raw detections without the
// rewritten text. The analyzer consumes these for risk scoring.
func (s *Sanitizer) Detect(text string) []Detection {
	_, detections := s.run(text)
	return detections
}

// NormalizationReport lists the option adjustments applied during
// construction, one entry per clamped field. Empty when nothing was clamped.
func (s *Sanitizer) NormalizationReport() []string {
	out := make([]string, len(s.report))
	copy(out, s.report)
	return out
}

func (s *Sanitizer) sanitize(text string, hook func(types.Violation)) (string, []types.Violation) {
	start := time.Now()
	out, detections := s.run(text)
	if len(detections) == 0 {
		metrics.RecordSanitization(component, "clean")
		metrics.RecordScanDuration(component, float64(time.Since(start).Microseconds())/1000.0)
		return out, nil
	}

	violations := make([]types.Violation, 0, len(detections))
	for _, d := range detections {
		v := d.Violation()
		violations = append(violations, v)
		metrics.RecordViolation(v)
		if hook != nil {
			hook(v)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"violations":   len(violations),
		"max_severity": string(types.MaxSeverity(violations)),
		"level":        string(s.opts.Level),
	}).Warn("Content sanitized with violations")

	outcome := "violations"
	if types.HasCritical(violations) {
		outcome = "critical"
	}
	metrics.RecordSanitization(component, outcome)
	metrics.RecordScanDuration(component, float64(time.Since(start).Microseconds())/1000.0)
	return out, violations
}

// run is the shared pipeline core. It never panics on adversarial input and
// never touches the input string in place.
func (s *Sanitizer) run(text string) (string, []Detection) {
	if text == "" {
		return text, nil
	}
	if s.prefilter && !containsSuspiciousChars(text) {
		out, lengthDetection := s.enforceLength(text)
		if lengthDetection != nil {
			return out, []Detection{*lengthDetection}
		}
		return out, nil
	}

	var detections []Detection
	if s.categories[threat_patterns.CategoryControlChars] {
		if repaired := strings.ToValidUTF8(text, "�"); repaired != text {
			detections = append(detections, Detection{
				Name:        "invalid-utf8",
				Category:    threat_patterns.CategoryControlChars,
				Type:        types.ViolationControlChars,
				Severity:    types.SeverityLow,
				Description: "invalid UTF-8 byte sequences replaced",
				Excerpt:     utils.SafeExcerpt(text, common.ExcerptLimit),
				Count:       1,
			})
			text = repaired
		}
	}
	if s.opts.NormalizeUnicode {
		text = norm.NFC.String(text)
	}

	for _, st := range s.steps {
		if st.re == nil {
			text, detections = applyLineStep(st, text, detections)
			continue
		}
		locations := st.re.FindAllStringIndex(text, -1)
		if len(locations) == 0 {
			continue
		}
		first := locations[0]
		detections = append(detections, Detection{
			Name:        st.name,
			Category:    st.category,
			Type:        st.vtype,
			Severity:    st.severity,
			Description: st.description,
			Excerpt:     utils.SafeExcerpt(text[first[0]:first[1]], common.ExcerptLimit),
			Position:    first[0],
			Count:       len(locations),
		})
		if !st.flagOnly {
			text = st.re.ReplaceAllLiteralString(text, st.label)
		}
	}

	out, lengthDetection := s.enforceLength(text)
	if lengthDetection != nil {
		detections = append(detections, *lengthDetection)
	}
	return out, detections
}

func applyLineStep(st step, text string, detections []Detection) (string, []Detection) {
	pos := strings.IndexAny(text, "\r\n\u2028\u2029")
	if pos < 0 {
		return text, detections
	}
	count := strings.Count(text, "\r\n")
	rest := strings.ReplaceAll(text, "\r\n", "")
	count += strings.Count(rest, "\r") + strings.Count(rest, "\n") +
		strings.Count(rest, "\u2028") + strings.Count(rest, "\u2029")

	detections = append(detections, Detection{
		Name:        st.name,
		Category:    st.category,
		Type:        st.vtype,
		Severity:    st.severity,
		Description: st.description,
		Excerpt:     utils.SafeExcerpt(text[pos:], common.ExcerptLimit),
		Position:    pos,
		Count:       count,
	})
	return lineReplacer.Replace(text), detections
}

// enforceLength truncates text over the configured limit on a rune boundary
// and appends the truncation marker. Text that already carries the marker
// and only exceeds the limit by the marker itself is left alone, so a second
// pass cannot stack markers.
func (s *Sanitizer) enforceLength(text string) (string, *Detection) {
	if !s.categories[threat_patterns.CategoryLength] {
		return text, nil
	}
	max := s.opts.MaxLength
	if len(text) <= max {
		return text, nil
	}
	if strings.HasSuffix(text, common.TruncationMarker) && len(text) <= max+len(common.TruncationMarker) {
		return text, nil
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	detection := &Detection{
		Name:        "max-length",
		Category:    threat_patterns.CategoryLength,
		Type:        types.ViolationLengthOverflow,
		Severity:    types.SeverityLow,
		Description: fmt.Sprintf("content length %d exceeds limit %d", len(text), max),
		Position:    cut,
		Count:       1,
	}
	return text[:cut] + common.TruncationMarker, detection
}

// containsSuspiciousChars reports whether text can possibly trigger a
// detector: any control or high-bit byte, or any byte from suspiciousChars.
func containsSuspiciousChars(text string) bool {
	for i := 0; i < len(text); i++ {
		b := text[i]
		if b < 0x20 || b == 0x7f || b >= 0x80 {
			return true
		}
	}
	for _, c := range suspiciousChars {
		if strings.IndexByte(text, c) >= 0 {
			return true
		}
	}
	return false
}

var (
	compiledMu    sync.RWMutex
	compiledCache = make(map[string]*Sanitizer)
)

// Sanitize is the package-level convenience entry point. Sanitizers are
// cached by an options fingerprint, so repeated calls with equal options
// skip pattern assembly.
func Sanitize(text string, opts Options) (string, []types.Violation, error) {
	s, err := forOptions(opts)
	if err != nil {
		return text, nil, err
	}
	out, violations := s.sanitize(text, opts.OnViolation)
	return out, violations, nil
}

func forOptions(opts Options) (*Sanitizer, error) {
	key := optionsKey(opts)

	compiledMu.RLock()
	s, ok := compiledCache[key]
	compiledMu.RUnlock()
	if ok {
		return s, nil
	}

	compiledMu.Lock()
	defer compiledMu.Unlock()
	if s, ok := compiledCache[key]; ok {
		return s, nil
	}
	base := opts
	base.OnViolation = nil
	s, err := NewSanitizer(logrus.StandardLogger(), base)
	if err != nil {
		return nil, err
	}
	compiledCache[key] = s
	return s, nil
}

// optionsKey fingerprints options for the compile cache. The violation hook
// stays outside the key: it is per-call state, not compile input.
func optionsKey(opts Options) string {
	opts.OnViolation = nil
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Sprintf("%+v", opts)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
