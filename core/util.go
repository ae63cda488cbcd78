package core

import (
	"sort"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStringSet trims every string of ss, drops the empty ones and duplicates, and sorts the result.
func CleanStringSet(ss []string) []string {
	set := make(map[string]struct{}, len(ss))
	cleaned := make([]string, 0, len(ss))
	for _, s := range ss {
		s = CleanString(s)
		if _, ok := set[s]; ok || s == "" {
			continue
		}
		set[s] = struct{}{}
		cleaned = append(cleaned, s)
	}
	sort.Strings(cleaned)
	return cleaned
}

// CleanStringList trims every string of ss and drops the empty ones, keeping order.
func CleanStringList(ss []string) []string {
	cleaned := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = CleanString(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}
