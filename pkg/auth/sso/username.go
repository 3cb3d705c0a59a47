package sso

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes s and drops combining marks, so "José"
// becomes "Jose".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// alnum keeps only ASCII letters and digits.
func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// clean folds diacritics, strips everything outside [0-9A-Za-z] and
// lower-cases the result.
func clean(s string) string {
	return strings.ToLower(alnum(foldDiacritics(s)))
}

// orgPrefix is the first DNS label of a home organization.
func orgPrefix(homeOrg string) string {
	label, _, _ := strings.Cut(strings.TrimSpace(homeOrg), ".")
	return clean(label)
}

// BaseUsername synthesizes the username proposed for a new federation
// identity: organization prefix, first name and last name, falling back
// to a split of the display name and then to the subject identifier.
// The result holds only [0-9a-z] and at most maxLen characters.
func BaseUsername(homeOrg, first, last, display, subject string, maxLen int) string {
	first, last = clean(first), clean(last)
	if first == "" && last == "" {
		if fields := strings.Fields(display); len(fields) > 0 {
			first = clean(fields[0])
			if len(fields) > 1 {
				last = clean(fields[len(fields)-1])
			}
		}
	}

	name := first + last
	if name == "" {
		name = clean(subject)
	} else {
		name = orgPrefix(homeOrg) + name
	}
	return truncate(name, maxLen)
}

// Candidate returns the n-th username to try for base: base itself for
// n == 0, then base0, base1 and so on. The base is shortened so the
// suffixed name still fits in maxLen.
func Candidate(base string, n, maxLen int) string {
	if n == 0 {
		return truncate(base, maxLen)
	}
	suffix := strconv.Itoa(n - 1)
	keep := len(base)
	if maxLen > 0 && keep+len(suffix) > maxLen {
		keep = maxLen - len(suffix)
		if keep < 0 {
			keep = 0
		}
	}
	return base[:keep] + suffix
}

func truncate(s string, maxLen int) string {
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
