package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer prepares opportunity and product text for containment matching
type TextNormalizer struct {
	foldAccents bool
}

// NewTextNormalizer creates a normalizer. With foldAccents, "Jabón" and "jabon" compare equal.
func NewTextNormalizer(foldAccents bool) *TextNormalizer {
	return &TextNormalizer{foldAccents: foldAccents}
}

// Normalize case-folds s and collapses runs of whitespace to a single space.
// Casers and transformers carry state, so new ones are built per call.
func (n *TextNormalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	folded := cases.Fold().String(s)

	if n.foldAccents {
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if stripped, _, err := transform.String(t, folded); err == nil {
			folded = stripped
		}
	}

	return strings.Join(strings.Fields(folded), " ")
}
