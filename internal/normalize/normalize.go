// Package normalize maps raw text to canonical search keys. Normalization is
// applied at comparison time only; stored records keep their original casing
// and accents for display.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	gtinPattern   = regexp.MustCompile(`^[0-9]{13}$`)
)

// foldTransformer strips combining diacritical marks after canonical
// decomposition. A fresh transformer per call: chained transformers carry
// buffers and are not safe for concurrent use.
func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize lowercases s, strips diacritics, collapses whitespace runs to a
// single space and trims. Total and idempotent: empty input yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer(), s)
	if err != nil {
		// Only malformed UTF-8 gets here; match on the raw input instead.
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = whitespaceRun.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// IsGTIN reports whether s is a 13-digit all-numeric code. Such codes only
// ever appear in the alias space of the catalog.
func IsGTIN(s string) bool {
	return gtinPattern.MatchString(strings.TrimSpace(s))
}
