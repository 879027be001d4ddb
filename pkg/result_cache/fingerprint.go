package result_cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	// stringPreview bounds how much string content enters a fingerprint.
	stringPreview = 32
	// slicePreview bounds how many leading elements of a slice are tagged.
	slicePreview = 16
)

// Fingerprint keys a value by shape plus shallow top-level content. The
// second return is false for values that cannot be fingerprinted safely
// (arbitrary structs, channels, functions); those must bypass the cache.
func Fingerprint(value interface{}) (string, bool) {
	if !fingerprintable(value) {
		return "", false
	}
	h := sha256.New()
	writeFingerprint(h, value)
	return hex.EncodeToString(h.Sum(nil)), true
}

// fingerprintable limits cache keys to the plain data shapes whose shallow
// content the fingerprint actually captures.
func fingerprintable(value interface{}) bool {
	switch value.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		map[string]interface{}, []interface{}:
		return true
	}
	return false
}

func writeFingerprint(w io.Writer, value interface{}) {
	switch v := value.(type) {
	case nil:
		io.WriteString(w, "nil")
	case string:
		fmt.Fprintf(w, "string:%d:%s", len(v), preview(v))
	case map[string]interface{}:
		fmt.Fprintf(w, "map:%d:", len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			io.WriteString(w, k)
			io.WriteString(w, "=")
			io.WriteString(w, shallowTag(v[k]))
			io.WriteString(w, ";")
		}
	case []interface{}:
		fmt.Fprintf(w, "slice:%d:", len(v))
		for i, item := range v {
			if i >= slicePreview {
				break
			}
			io.WriteString(w, shallowTag(item))
			io.WriteString(w, ";")
		}
	default:
		fmt.Fprintf(w, "%T:%v", v, v)
	}
}

// shallowTag describes one nested value without recursing into it: scalars
// by content, containers by size and key shape only.
func shallowTag(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("s%d:%s", len(v), preview(v))
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("m%d{%s}", len(v), strings.Join(keys, ","))
	case []interface{}:
		return fmt.Sprintf("a%d", len(v))
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

func preview(s string) string {
	if len(s) > stringPreview {
		return s[:stringPreview]
	}
	return s
}
