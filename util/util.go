package util

import (
	"strings"
)

func ContainsStringInArray(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

// TrimToLength caps a string at max runes.
func TrimToLength(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// UniqueStrings preserves first-seen order.
func UniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}

// SplitMultiPicklist splits a Salesforce multi-select picklist value into
// its trimmed parts.
func SplitMultiPicklist(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ";")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
