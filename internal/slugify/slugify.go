// Package slugify turns company names into URL slugs: lowercase,
// accent-stripped, hyphen-separated. Slugs are the public identity of an
// empresa and feed the per-tenant workflow naming, so the transform must be
// idempotent.
package slugify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts a display name into a URL slug.
// "Barbearia do João" becomes "barbearia-do-joao".
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))

	if stripped, _, err := transform.String(accentStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '-':
			b.WriteByte('-')
		}
		// everything else is dropped
	}

	// Collapse runs of hyphens and trim the ends
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' })
	return strings.Join(parts, "-")
}
