// Package strings provides string slice helpers shared by configuration
// and distribution.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  ad ", "ban", "ad", "", "  "})
//	// Returns: []string{"ad", "ban"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// SortedUnion merges several lists into one deduplicated, sorted slice.
// Empty elements are dropped. The result is deterministic for any input order.
//
// Example:
//
//	SortedUnion([]string{"NOSPAM", "LANG"}, []string{"LANG", "BAN"})
//	// Returns: []string{"BAN", "LANG", "NOSPAM"}
func SortedUnion(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	result := DedupeAndTrim(all)
	slices.Sort(result)
	return result
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}

	return result
}
