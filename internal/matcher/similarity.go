package matcher

import (
	"strings"

	"github.com/xrash/smetrics"

	"github.com/desertthunder/libbyreads/internal/shared"
)

// Jaro-Winkler parameters: boost above 0.7 similarity, using up to a 4 character common prefix.
const (
	jwBoostThreshold = 0.7
	jwPrefixSize     = 4
)

// Similarity scores two normalized strings in [0, 1] as the mean of token-set Dice
// overlap and Jaro-Winkler similarity. Equal strings score 1; an empty side scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return (dice(strings.Fields(a), strings.Fields(b)) + smetrics.JaroWinkler(a, b, jwBoostThreshold, jwPrefixSize)) / 2
}

// dice is the Sørensen-Dice coefficient over the distinct tokens of a and b.
func dice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	other := make(map[string]bool, len(b))
	common := 0
	for _, t := range b {
		if other[t] {
			continue
		}
		other[t] = true
		if set[t] {
			common++
		}
	}
	return 2 * float64(common) / float64(len(set)+len(other))
}

// titleVariants returns the normalized full title and, when the raw title has a
// subtitle, the normalized main title before the first colon.
func titleVariants(raw, normalized string) []string {
	out := []string{normalized}
	if main, _, ok := strings.Cut(raw, ":"); ok {
		if m := shared.NormalizeText(main); m != "" && m != normalized {
			out = append(out, m)
		}
	}
	return out
}

// authorVariants returns the normalized full author string and each author when
// the raw value lists several.
func authorVariants(raw, normalized string) []string {
	out := []string{normalized}
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '&' || r == ',' })
	if len(fields) < 2 {
		return out
	}
	for _, f := range fields {
		if n := shared.NormalizeText(f); n != "" && n != normalized {
			out = append(out, n)
		}
	}
	return out
}

// bestOf returns the highest similarity across all variant pairs.
func bestOf(as, bs []string) float64 {
	best := 0.0
	for _, a := range as {
		for _, b := range bs {
			if s := Similarity(a, b); s > best {
				best = s
			}
		}
	}
	return best
}
