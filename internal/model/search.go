package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeText NFC-normalizes and trims user-supplied names and codes.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// SearchKey builds the case-folded key used for free-text search. Parts are
// joined with a single space so a pattern never matches across fields.
func SearchKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = NormalizeText(p); p != "" {
			kept = append(kept, p)
		}
	}
	return folder.String(strings.Join(kept, " "))
}

// FoldPattern folds a search term the same way SearchKey folds stored text.
func FoldPattern(term string) string {
	return folder.String(NormalizeText(term))
}
