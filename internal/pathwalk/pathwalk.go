// Package pathwalk extracts values from decoded JSON trees by dotted path.
//
// A path is a sequence of keys separated by "." where numeric segments, or
// bracketed indices, address slice elements:
//
//	data.items.0.name
//	data.items[0].name
//
// Lookups never panic. A missing key, an out-of-range index or a type
// mismatch along the way reports ok=false.
package pathwalk

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Segment is one step of a parsed path. Index is -1 for map keys.
type Segment struct {
	Key   string
	Index int
}

// Parse tokenizes path. An empty path yields no segments and addresses the
// root itself.
func Parse(path string) []Segment {
	if path == "" {
		return nil
	}
	var segs []Segment
	for _, part := range strings.Split(path, ".") {
		key, rest, hasBracket := strings.Cut(part, "[")
		if key != "" {
			segs = append(segs, segment(key))
		}
		for hasBracket {
			var idx string
			idx, rest, _ = strings.Cut(rest, "]")
			segs = append(segs, segment(idx))
			_, rest, hasBracket = strings.Cut(rest, "[")
		}
	}
	return segs
}

func segment(s string) Segment {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return Segment{Key: s, Index: n}
	}
	return Segment{Key: s, Index: -1}
}

// Get returns the value at path inside root.
func Get(root any, path string) (any, bool) {
	cur := root
	for _, seg := range Parse(path) {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, seg Segment) (any, bool) {
	switch node := cur.(type) {
	case map[string]any:
		v, ok := node[seg.Key]
		return v, ok
	case map[string]string:
		v, ok := node[seg.Key]
		return v, ok
	case []any:
		if seg.Index < 0 || seg.Index >= len(node) {
			return nil, false
		}
		return node[seg.Index], true
	case []map[string]any:
		if seg.Index < 0 || seg.Index >= len(node) {
			return nil, false
		}
		return node[seg.Index], true
	default:
		return nil, false
	}
}

// Slice returns the slice at path.
func Slice(root any, path string) ([]any, bool) {
	v, ok := Get(root, path)
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}
	return nil, false
}

// Int returns the integer at path. JSON numbers and numeric strings are
// accepted; fractional values are not.
func Int(root any, path string) (int, bool) {
	v, ok := Get(root, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.Trunc(n) != n || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// String returns the string at path.
func String(root any, path string) (string, bool) {
	v, ok := Get(root, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
