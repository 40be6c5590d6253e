package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes characters and removes the combining marks, folding
// accented letters to their ASCII base.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts a page name into a URL-safe path segment. Accents are
// folded, letters lowered, and every run of other characters collapses into
// a single hyphen. Names with no usable characters produce "".
func Slugify(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	pending := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending = false
		default:
			pending = true
		}
	}
	return b.String()
}
