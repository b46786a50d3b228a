// Package effects merges an avatar's stacked modifier sources (sect,
// technique, items, persona traits, spirit animal, temporary effects) into a
// single flat map. Merging is a pure function; callers own caching.
package effects

import "sort"

// Source is anything that contributes modifiers. Implementations return a
// flat map; a nil or empty map contributes nothing.
type Source interface {
	Effects() map[string]any
}

// Merge combines modifier maps with additive semantics: numeric values sum,
// string lists union (order of first appearance), booleans OR. Later maps
// never override earlier ones; they accumulate.
func Merge(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			mergeKey(out, k, v)
		}
	}
	return out
}

// MergeSources is Merge over Source values, skipping nils.
func MergeSources(sources ...Source) map[string]any {
	maps := make([]map[string]any, 0, len(sources))
	for _, s := range sources {
		if s == nil {
			continue
		}
		if m := s.Effects(); len(m) > 0 {
			maps = append(maps, m)
		}
	}
	return Merge(maps...)
}

func mergeKey(out map[string]any, key string, val any) {
	prev, ok := out[key]
	if !ok {
		out[key] = normalize(val)
		return
	}
	switch p := prev.(type) {
	case float64:
		if n, ok := asNumber(val); ok {
			out[key] = p + n
		}
	case bool:
		if b, ok := val.(bool); ok {
			out[key] = p || b
		}
	case []string:
		out[key] = unionStrings(p, asStrings(val))
	default:
		out[key] = normalize(val)
	}
}

// normalize maps incoming values to the three canonical shapes so repeated
// merges are associative: numbers → float64, lists → []string, bools as-is.
func normalize(val any) any {
	if n, ok := asNumber(val); ok {
		return n
	}
	switch v := val.(type) {
	case bool:
		return v
	case []string:
		return unionStrings(nil, v)
	case []any:
		return unionStrings(nil, asStrings(v))
	default:
		return val
	}
}

func asNumber(val any) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func asStrings(val any) []string {
	switch v := val.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func unionStrings(base, add []string) []string {
	seen := make(map[string]bool, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Number reads a numeric effect, 0 when absent.
func Number(m map[string]any, key string) float64 {
	n, _ := asNumber(m[key])
	return n
}

// Bool reads a boolean effect, false when absent.
func Bool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// List reads a list effect, nil when absent.
func List(m map[string]any, key string) []string {
	return asStrings(m[key])
}

// Keys returns the sorted key set, for stable serialization and logs.
func Keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
