// Package strings provides helpers for space-delimited token lists such as
// OAuth scope parameters.
package strings

import (
	"slices"
	"strings"
)

// Fields splits a space-delimited list, dropping empties and duplicates.
// Order of first occurrence is preserved.
//
// Example:
//
//	Fields("openid  email openid")
//	// Returns: []string{"openid", "email"}
func Fields(s string) []string {
	return DedupeAndTrim(strings.Fields(s))
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// ContainsAll reports whether every element of subset is present in set.
func ContainsAll(set, subset []string) bool {
	for _, v := range subset {
		if !slices.Contains(set, v) {
			return false
		}
	}
	return true
}

// Union returns a followed by the elements of b not already in a.
func Union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	for _, v := range b {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
