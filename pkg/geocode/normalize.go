package geocode

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	saintAbbrevRe = regexp.MustCompile(`\bST[\s\-]+`)
	saintSpaceRe  = regexp.MustCompile(`\bSAINT\s+`)
	cedexRe       = regexp.MustCompile(`\s*CEDEX\s*\d*`)
	multiHyphenRe = regexp.MustCompile(`-+`)
	hyphenPadRe   = regexp.MustCompile(`\s*-\s*`)

	// Strips combining marks after NFD decomposition, so "Orléans" and
	// "Orleans" share a cache slot.
	deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeAddress canonicalizes an address for cache keying and
// comparison: diacritics folded, upper-cased, whitespace collapsed,
// ST/SAINT variants unified to SAINT-, CEDEX suffixes dropped.
// Two addresses equal under normalization are the same place for the
// purposes of this pipeline. Returns "" for blank input.
func NormalizeAddress(address string) string {
	s := strings.TrimSpace(address)
	if s == "" {
		return ""
	}

	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}

	s = strings.ToUpper(s)
	s = strings.Join(strings.Fields(s), " ")

	s = saintAbbrevRe.ReplaceAllString(s, "SAINT-")
	s = saintSpaceRe.ReplaceAllString(s, "SAINT-")
	s = cedexRe.ReplaceAllString(s, "")

	s = multiHyphenRe.ReplaceAllString(s, "-")
	s = hyphenPadRe.ReplaceAllString(s, "-")

	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
