// Package config holds the value coercion shared by the ConfigStore
// adapters. Stored values arrive typed from TOML or Go callers, and as
// strings from the environment; each helper accepts both.
package config

import (
	"sort"
	"strconv"
	"strings"
)

// String returns v if it is a string, else "".
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Int converts integers, floats (truncated) and numeric strings. Anything
// else is 0.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// Bool converts booleans and strconv.ParseBool strings. Anything else is
// false.
func Bool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	default:
		return false
	}
}

// StringSlice converts string lists, TOML arrays (non-string items are
// dropped) and comma-separated strings. Anything else is nil.
func StringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(list, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

// SortedKeys returns the keys of m in order, or nil when m is empty.
func SortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
