package inference

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Naming patterns understood by BuildAddress.
const (
	PatternFirstDotLast   = "first.last"
	PatternFirstUnderLast = "first_last"
	PatternFirstLast      = "firstlast"
	PatternFirst          = "first"
	PatternLastDotFirst   = "last.first"
	PatternLastUnderFirst = "last_first"
	PatternLastFirst      = "lastfirst"
	PatternLast           = "last"
	PatternFDotLast       = "f.last"
	PatternFirstDotL      = "first.l"
	PatternFLast          = "flast"
	PatternFirstL         = "firstl"
)

// KnownPattern reports whether p is one of the twelve supported templates.
func KnownPattern(p string) bool {
	switch p {
	case PatternFirstDotLast, PatternFirstUnderLast, PatternFirstLast, PatternFirst,
		PatternLastDotFirst, PatternLastUnderFirst, PatternLastFirst, PatternLast,
		PatternFDotLast, PatternFirstDotL, PatternFLast, PatternFirstL:
		return true
	}
	return false
}

// BuildAddress applies pattern to a normalized first and last name.
// Unknown patterns fall back to first.last.
func BuildAddress(pattern, first, last, domain string) string {
	f, l := initial(first), initial(last)
	var local string
	switch pattern {
	case PatternFirstUnderLast:
		local = first + "_" + last
	case PatternFirstLast:
		local = first + last
	case PatternFirst:
		local = first
	case PatternLastDotFirst:
		local = last + "." + first
	case PatternLastUnderFirst:
		local = last + "_" + first
	case PatternLastFirst:
		local = last + first
	case PatternLast:
		local = last
	case PatternFDotLast:
		local = f + "." + last
	case PatternFirstDotL:
		local = first + "." + l
	case PatternFLast:
		local = f + last
	case PatternFirstL:
		local = first + l
	default:
		local = first + "." + last
	}
	return local + "@" + domain
}

func initial(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases a name for use in an address, folding accents
// and dropping anything that is not a letter or digit. "José-Luis O'Neil"
// becomes "joseluisoneil".
func NormalizeName(name string) string {
	folded, _, err := transform.String(foldDiacritics, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
