package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText prepares text for storage and comparison:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - compresses multiple spaces into one
//
// Diacritics, hyphens, and apostrophes are preserved.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)

	// Compress multiple spaces into one.
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeLemma applies the §3 requirement that a Word's lemma be
// "NFC-normalized": Unicode NFC form, trimmed, with internal whitespace
// collapsed. Case and diacritics are preserved — lemmas are displayed to the
// learner verbatim; case/diacritic folding only applies to search (FoldText).
func NormalizeLemma(lemma string) string {
	lemma = strings.TrimSpace(lemma)
	if lemma == "" {
		return ""
	}
	lemma = norm.NFC.String(lemma)

	var b strings.Builder
	b.Grow(len(lemma))
	prevSpace := false
	for _, r := range lemma {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			r = ' '
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

var diacriticFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// FoldText case-folds and strips diacritics so that "Café" and "cafe" are
// treated the same by Search.suggest's "diacritic-insensitive" prefix match
// (§4.4).
func FoldText(text string) string {
	folded, _, err := transform.String(diacriticFolder, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return folded
}
