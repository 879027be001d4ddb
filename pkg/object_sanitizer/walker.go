package object_sanitizer

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TrustWeave/LogArmor/pkg/common"
	"github.com/TrustWeave/LogArmor/pkg/metrics"
	"github.com/TrustWeave/LogArmor/pkg/threat_patterns"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

const (
	// checkpointInterval is how many nodes pass between cooperative time
	// and cancellation checks.
	checkpointInterval = 64

	// scalarCost is the byte-estimate charge for one numeric or boolean.
	scalarCost = 8

	// binaryPreviewBytes bounds the hex preview kept for sanitized blobs.
	binaryPreviewBytes = 16
)

type property struct {
	key   string
	value interface{}
}

// walker carries the state of one SanitizeObject call: the ancestor set for
// cycle detection, the budgets, and the outcome being accumulated. A walker
// is used by a single goroutine and discarded after the call.
type walker struct {
	s   *Sanitizer
	ctx context.Context

	deadline  time.Time
	ancestors map[identity]bool
	rootID    identity
	hasRootID bool

	violations []types.Violation
	warnings   []string

	nodeCount    int
	byteEstimate int64

	sizeExceeded  bool
	timeExceeded  bool
	cancelled     bool
	depthReported bool
	propsReported bool
	rootCycle     bool
}

// walk processes one node. keep == false means the node was removed by
// policy and must not appear in the parent. Any panic below this node is
// absorbed here and turns the node into an error placeholder.
func (w *walker) walk(value interface{}, depth int) (out interface{}, keep bool) {
	defer func() {
		if r := recover(); r != nil {
			w.warnings = append(w.warnings, fmt.Sprintf("value processing failed: %v", r))
			out = common.ErrorPlaceholder
			keep = true
		}
	}()

	if value == nil {
		return nil, true
	}
	if !w.checkpoint() {
		return common.TimePlaceholder, true
	}
	if depth > w.s.opts.MaxDepth {
		if !w.depthReported {
			w.depthReported = true
			w.addViolation(w.s.violation(
				types.ViolationDeepNesting,
				types.SeverityMedium,
				fmt.Sprintf("nesting depth exceeded limit %d", w.s.opts.MaxDepth),
				"",
			))
		}
		return common.DepthPlaceholder, true
	}

	rv := reflect.ValueOf(value)
	if id, ok := identityOf(rv); ok {
		if w.ancestors[id] {
			if w.hasRootID && id == w.rootID {
				w.rootCycle = true
			}
			w.warnings = append(w.warnings, "circular reference replaced")
			return common.CircularPlaceholder, true
		}
		if depth == 0 {
			w.rootID = id
			w.hasRootID = true
		}
		w.ancestors[id] = true
		defer delete(w.ancestors, id)
	}

	kind := classify(value)
	return w.apply(kind, w.s.strategyFor(kind), value, depth)
}

func (w *walker) apply(kind ValueKind, strategy Strategy, value interface{}, depth int) (interface{}, bool) {
	if kind == KindFunction && strategy == StrategyRemove {
		w.addViolation(w.s.violation(
			types.ViolationDangerousFunction,
			types.SeverityHigh,
			fmt.Sprintf("function value of type %T removed", value),
			"",
		))
	}
	switch strategy {
	case StrategyPreserve:
		return value, true
	case StrategyRemove:
		return nil, false
	case StrategyRedact:
		if kind == KindFunction {
			return functionLabel(value), true
		}
		if kind == KindSymbol {
			return symbolLabel(value), true
		}
		return common.RedactedPlaceholder, true
	case StrategyFlatten:
		return w.flatten(kind, value), true
	default:
		return w.sanitizeKind(kind, value, depth)
	}
}

// flatten reduces a node to a shallow safe summary without descending.
func (w *walker) flatten(kind ValueKind, value interface{}) interface{} {
	switch kind {
	case KindDate:
		if t, ok := asTime(value); ok {
			return t.Format(time.RFC3339)
		}
		return nil
	case KindRegex:
		if re, ok := value.(*regexp.Regexp); ok && re != nil {
			return w.sanitizeString(re.String())
		}
		return nil
	case KindBinaryBlob:
		b := asBytes(value)
		return map[string]interface{}{"type": fmt.Sprintf("%T", value), "length": len(b)}
	case KindBigInteger:
		return bigIntString(value)
	case KindFunction:
		return functionLabel(value)
	case KindSymbol:
		return symbolLabel(value)
	case KindClassInstance:
		return map[string]interface{}{"type": fmt.Sprintf("%T", value)}
	case KindPlainObject:
		rv := concrete(reflect.ValueOf(value))
		n := 0
		if rv.IsValid() {
			n = rv.Len()
		}
		return map[string]interface{}{"type": "object", "properties": n}
	case KindArray:
		rv := concrete(reflect.ValueOf(value))
		n := 0
		if rv.IsValid() {
			n = rv.Len()
		}
		return map[string]interface{}{"type": "array", "length": n}
	default:
		return value
	}
}

// sanitizeKind is the deep-processing arm of the dispatch: containers
// recurse, strings run the content passes, opaque shapes become labels.
func (w *walker) sanitizeKind(kind ValueKind, value interface{}, depth int) (interface{}, bool) {
	switch kind {
	case KindPrimitive:
		rv := concrete(reflect.ValueOf(value))
		if !rv.IsValid() {
			return nil, true
		}
		if rv.Kind() == reflect.String {
			return w.sanitizeString(rv.String()), true
		}
		w.addBytes(scalarCost)
		return value, true
	case KindPlainObject:
		rv := concrete(reflect.ValueOf(value))
		if !rv.IsValid() {
			return nil, true
		}
		return w.walkMap(rv, depth), true
	case KindArray:
		rv := concrete(reflect.ValueOf(value))
		if !rv.IsValid() {
			return nil, true
		}
		return w.walkSlice(rv, depth), true
	case KindDate:
		if t, ok := asTime(value); ok {
			w.addBytes(scalarCost)
			return t, true
		}
		return nil, true
	case KindRegex:
		if re, ok := value.(*regexp.Regexp); ok && re != nil {
			return w.sanitizeString(re.String()), true
		}
		return nil, true
	case KindBinaryBlob:
		b := asBytes(value)
		w.addBytes(int64(len(b)))
		preview := b
		if len(preview) > binaryPreviewBytes {
			preview = preview[:binaryPreviewBytes]
		}
		return map[string]interface{}{
			"type":    fmt.Sprintf("%T", value),
			"length":  len(b),
			"preview": hex.EncodeToString(preview),
		}, true
	case KindFunction:
		return functionLabel(value), true
	case KindSymbol:
		return symbolLabel(value), true
	case KindBigInteger:
		s := bigIntString(value)
		w.addBytes(int64(2 * len(s)))
		return s, true
	case KindClassInstance:
		rv := concrete(reflect.ValueOf(value))
		if !rv.IsValid() || rv.Kind() != reflect.Struct {
			return nil, true
		}
		return w.walkStruct(rv, depth), true
	default:
		return common.CircularPlaceholder, true
	}
}

func (w *walker) walkMap(rv reflect.Value, depth int) map[string]interface{} {
	keys := rv.MapKeys()
	props := make([]property, 0, len(keys))
	for _, k := range keys {
		props = append(props, property{key: keyString(k), value: rv.MapIndex(k).Interface()})
	}
	sort.Slice(props, func(i, j int) bool { return props[i].key < props[j].key })
	return w.walkProperties(props, depth)
}

func (w *walker) walkStruct(rv reflect.Value, depth int) map[string]interface{} {
	t := rv.Type()
	props := make([]property, 0, rv.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		props = append(props, property{key: f.Name, value: rv.Field(i).Interface()})
	}
	return w.walkProperties(props, depth)
}

func (w *walker) walkProperties(props []property, depth int) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	kept := 0
	for _, p := range props {
		if w.sizeExceeded {
			break
		}
		if kept >= w.s.opts.MaxProperties {
			w.warnEntryLimit()
			break
		}

		outKey := p.key
		if threat_patterns.IsPrototypePollutionKey(p.key) {
			w.addViolation(w.s.violation(
				types.ViolationPrototypePollution,
				types.SeverityCritical,
				fmt.Sprintf("prototype pollution attempt via property %q", p.key),
				p.key,
			))
			outKey = common.ProtectedPlaceholder
		} else {
			outKey = w.sanitizeKey(p.key)
		}
		w.addBytes(int64(2 * len(p.key)))

		var child interface{}
		if masked, ok := w.s.maskFor(p.key); ok {
			child = masked
		} else {
			walked, keep := w.walk(p.value, depth+1)
			if !keep {
				kept++
				continue
			}
			child = walked
		}
		if _, exists := out[outKey]; exists {
			w.warnings = append(w.warnings, fmt.Sprintf("property %q collided after key rewriting; later value kept", p.key))
		}
		out[outKey] = child
		kept++
	}
	return out
}

func (w *walker) walkSlice(rv reflect.Value, depth int) []interface{} {
	n := rv.Len()
	capacity := n
	if capacity > w.s.opts.MaxProperties {
		capacity = w.s.opts.MaxProperties
	}
	out := make([]interface{}, 0, capacity)
	for i := 0; i < n; i++ {
		if w.sizeExceeded {
			break
		}
		if i >= w.s.opts.MaxProperties {
			w.warnEntryLimit()
			break
		}
		child, keep := w.walk(rv.Index(i).Interface(), depth+1)
		if !keep {
			// removed elements stay as nil so indices keep their meaning
			out = append(out, nil)
			continue
		}
		out = append(out, child)
	}
	return out
}

// sanitizeString bounds a string first, then runs the content passes and
// the value-level redaction rules. Length overflows inside the content pass
// surface as warnings here, not violations.
func (w *walker) sanitizeString(s string) string {
	if bounded, truncated := w.boundString(s); truncated {
		w.warnings = append(w.warnings, fmt.Sprintf("string value truncated to %d bytes", w.s.opts.MaxStringLength))
		s = bounded
	}
	w.addBytes(int64(2 * len(s)))

	out, violations := w.s.content.Sanitize(s)
	for _, v := range violations {
		if v.Type == types.ViolationLengthOverflow {
			w.warnings = append(w.warnings, v.Description)
			continue
		}
		w.violations = append(w.violations, v)
		w.fireHook(v)
	}
	for _, rule := range w.s.valueRules {
		if rule.re.MatchString(out) {
			out = rule.re.ReplaceAllLiteralString(out, rule.maskWith)
		}
	}
	return out
}

// sanitizeKey runs the content passes over a property name so hostile key
// text cannot reach the output map either.
func (w *walker) sanitizeKey(key string) string {
	if key == "" {
		return key
	}
	out, violations := w.s.content.Sanitize(key)
	for _, v := range violations {
		if v.Type == types.ViolationLengthOverflow {
			w.warnings = append(w.warnings, "property name truncated")
			continue
		}
		w.violations = append(w.violations, v)
		w.fireHook(v)
	}
	return out
}

// boundString truncates on a rune boundary over MaxStringLength. Strings
// already ending in the truncation marker that only exceed the limit by the
// marker itself pass through, keeping repeated sanitization stable.
func (w *walker) boundString(s string) (string, bool) {
	max := w.s.opts.MaxStringLength
	if len(s) <= max {
		return s, false
	}
	if strings.HasSuffix(s, common.TruncationMarker) && len(s) <= max+len(common.TruncationMarker) {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + common.TruncationMarker, true
}

// checkpoint is the cooperative budget gate. After the time budget or the
// context expires every later node short-circuits into a placeholder.
func (w *walker) checkpoint() bool {
	if w.timeExceeded || w.cancelled {
		return false
	}
	w.nodeCount++
	if w.nodeCount%checkpointInterval != 0 {
		return true
	}
	select {
	case <-w.ctx.Done():
		w.cancelled = true
		w.warnings = append(w.warnings, fmt.Sprintf("cancelled after %d nodes; remaining values replaced", w.nodeCount))
		return false
	default:
	}
	if w.s.now().After(w.deadline) {
		w.timeExceeded = true
		w.warnings = append(w.warnings, fmt.Sprintf("time budget %s exhausted after %d nodes; remaining values replaced", w.s.opts.MaxProcessingTime, w.nodeCount))
		return false
	}
	return true
}

func (w *walker) addBytes(n int64) {
	if w.sizeExceeded {
		return
	}
	w.byteEstimate += n
	if w.byteEstimate > w.s.opts.MaxObjectSize {
		w.sizeExceeded = true
		w.addViolation(w.s.violation(
			types.ViolationOversizedProperty,
			types.SeverityMedium,
			fmt.Sprintf("size estimate %d exceeds limit %d", w.byteEstimate, w.s.opts.MaxObjectSize),
			"",
		))
		w.warnings = append(w.warnings, "size limit reached; remaining sibling properties dropped")
	}
}

func (w *walker) warnEntryLimit() {
	if w.propsReported {
		return
	}
	w.propsReported = true
	w.warnings = append(w.warnings, fmt.Sprintf("entry count exceeds limit %d; remaining entries dropped", w.s.opts.MaxProperties))
}

func (w *walker) addViolation(v types.Violation) {
	w.violations = append(w.violations, v)
	metrics.RecordViolation(v)
	w.fireHook(v)
}

// fireHook isolates observer faults: a panicking hook is dropped, never
// propagated into the traversal.
func (w *walker) fireHook(v types.Violation) {
	hook := w.s.opts.OnViolation
	if hook == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	hook(v)
}

func keyString(rv reflect.Value) string {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "<nil>"
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprint(rv.Interface())
}

func asTime(value interface{}) (time.Time, bool) {
	switch t := value.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	rv := concrete(reflect.ValueOf(value))
	if rv.IsValid() && rv.Type() == timeType {
		return rv.Interface().(time.Time), true
	}
	return time.Time{}, false
}

func asBytes(value interface{}) []byte {
	if b, ok := value.([]byte); ok {
		return b
	}
	rv := concrete(reflect.ValueOf(value))
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			out := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(out), rv)
			return out
		}
	}
	return nil
}

func bigIntString(value interface{}) string {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return "0"
		}
		return v.String()
	case big.Int:
		return v.String()
	}
	return fmt.Sprint(value)
}

func functionLabel(value interface{}) string {
	name := "anonymous"
	rv := concrete(reflect.ValueOf(value))
	if rv.IsValid() && rv.Kind() == reflect.Func && !rv.IsNil() {
		if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
			name = fn.Name()
			if i := strings.LastIndex(name, "/"); i >= 0 {
				name = name[i+1:]
			}
		}
	}
	return fmt.Sprintf("[Function: %s]", name)
}

func symbolLabel(value interface{}) string {
	return fmt.Sprintf("[Symbol: %T]", value)
}
