// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitList splits a separated list (typically an env var), trimming and
// lowercasing each element and dropping empties and duplicates. Order is preserved.
//
// Example:
//
//	SplitList(" 0xAB, 0xab ,,0xcd", ",")
//	// Returns: []string{"0xab", "0xcd"}
func SplitList(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, sep)

	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))
	for _, v := range parts {
		normalized := strings.ToLower(strings.TrimSpace(v))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; !ok {
			seen[normalized] = struct{}{}
			result = append(result, normalized)
		}
	}
	return result
}
