// package isbn canonicalises ISBN-10 and ISBN-13 identifiers.
//
// Every identifier is compared in its 13 digit form. Checksums are reported by [Valid] but not
// enforced by [Normalize] for either length, since catalogs routinely carry mistyped check
// digits.
package isbn

import (
	"strings"
)

// Normalize strips separators and returns the 13 digit form of s, or "" when s is neither an
// ISBN-10 nor an ISBN-13 shape. An ISBN-10 check digit is dropped in conversion, so a wrong
// one is tolerated just like a wrong ISBN-13 check digit.
func Normalize(s string) string {
	s = Clean(s)
	switch len(s) {
	case 13:
		if !allDigits(s) {
			return ""
		}
		return s
	case 10:
		if !shaped10(s) {
			return ""
		}
		return To13(s)
	}
	return ""
}

// Clean removes hyphens, spaces, a leading "ISBN" label and spreadsheet quoting (="...").
// A trailing x becomes X.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "=")
	s = strings.Trim(s, `"`)
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "ISBN") {
		s = strings.TrimLeft(s[4:], ":- ")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteByte('X')
		case r == '-' || r == ' ':
		default:
			return ""
		}
	}
	return b.String()
}

// Valid reports whether s (after [Clean]) is an ISBN-10 or ISBN-13 with a correct check digit.
func Valid(s string) bool {
	s = Clean(s)
	switch len(s) {
	case 10:
		return valid10(s)
	case 13:
		return allDigits(s) && check13(s[:12]) == s[12]
	}
	return false
}

// To13 converts an ISBN-10 to ISBN-13 by prepending 978 and computing the check digit.
// Returns an empty string if the input is not ISBN-10 shaped.
func To13(isbn10 string) string {
	if len(isbn10) != 10 || !allDigits(isbn10[:9]) {
		return ""
	}
	base := "978" + isbn10[:9]
	return base + string(check13(base))
}

// To10 converts a 978-prefixed ISBN-13 to ISBN-10.
// Returns an empty string if the input is not a convertible ISBN-13.
func To10(isbn13 string) string {
	if len(isbn13) != 13 || !strings.HasPrefix(isbn13, "978") || !allDigits(isbn13) {
		return ""
	}
	base := isbn13[3:12]
	return base + string(check10(base))
}

// check13 computes the ISBN-13 check digit for 12 digits.
func check13(base string) byte {
	sum := 0
	for i := 0; i < len(base); i++ {
		d := int(base[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10)
}

// check10 computes the ISBN-10 check digit for 9 digits.
func check10(base string) byte {
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * (10 - i)
	}
	c := (11 - sum%11) % 11
	if c == 10 {
		return 'X'
	}
	return byte('0' + c)
}

func valid10(s string) bool {
	return shaped10(s) && check10(s[:9]) == s[9]
}

// shaped10 reports nine digits followed by a digit or X.
func shaped10(s string) bool {
	if len(s) != 10 || !allDigits(s[:9]) {
		return false
	}
	last := s[9]
	return last == 'X' || (last >= '0' && last <= '9')
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
