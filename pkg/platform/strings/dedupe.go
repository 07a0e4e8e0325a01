// Package strings holds small slice-of-string helpers shared by config
// parsing and the CLI.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops empties and repeats, keeping the
// first occurrence's position.
//
//	DedupeAndTrim([]string{" a:9092", "b:9092", "a:9092", ""})
//	// []string{"a:9092", "b:9092"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// SplitList splits a comma-separated setting through DedupeAndTrim.
func SplitList(raw string) []string {
	return DedupeAndTrim(strings.Split(raw, ","))
}
