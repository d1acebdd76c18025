package table

import (
	"fmt"
	"strings"
)

var nullTokens = map[string]struct{}{
	"":     {},
	"null": {},
	"nan":  {},
	"na":   {},
	"n/a":  {},
	"none": {},
	"nil":  {},
	"#n/a": {},
}

// IsNull reports whether a cell counts as missing.
func IsNull(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// NormalizeHeader trims names, synthesizes Column_<i> for blanks, and makes
// duplicates unique by appending _<n> (Name, Name_1, Name_2).
func NormalizeHeader(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		if n == "" {
			n = fmt.Sprintf("Column_%d", i+1)
		}
		cand := n
		for k := 1; seen[cand]; k++ {
			cand = fmt.Sprintf("%s_%d", n, k)
		}
		seen[cand] = true
		out[i] = cand
	}
	return out
}
