package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// articles dropped from normalized text wherever they appear as a whole word.
var articles = map[string]bool{"a": true, "an": true, "the": true}

// NormalizeText folds s into the comparison form used for matching.
//
// Diacritics are removed, case is folded, parenthesised or bracketed
// segments (series info such as "(Discworld, #1)") are dropped, punctuation
// becomes whitespace, the articles a/an/the are removed and whitespace is
// collapsed. The function is idempotent.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	// Casers are stateful; build one per call.
	fold := cases.Fold()
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, fold.String(s))
	if err != nil {
		stripped = s
	}
	stripped = dropBracketed(fold.String(stripped))

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r == '\'' || r == '’':
			// "tolkien's" -> "tolkiens"
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if articles[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// NormalizeKey builds the stable comparison key for a book: "title|author".
//
// The key is empty when the title normalizes to nothing, which callers treat
// as malformed input.
func NormalizeKey(title, author string) string {
	t := NormalizeText(title)
	if t == "" {
		return ""
	}
	return t + "|" + NormalizeText(author)
}

// SplitKey returns the title and author halves of a key built by [NormalizeKey].
func SplitKey(key string) (title, author string) {
	title, author, _ = strings.Cut(key, "|")
	return title, author
}

// dropBracketed removes (...) and [...] segments. Unbalanced openers keep the
// remainder of the string.
func dropBracketed(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
			b.WriteByte(' ')
			continue
		case ')', ']':
			if depth > 0 {
				depth--
				continue
			}
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	if depth > 0 {
		return s
	}
	return b.String()
}
