package experiment

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const unsafeChars = ` /\*?:"<>|`

// Sanitize upper-cases name and replaces whitespace and path or shell unsafe
// characters with underscores. It is deterministic and idempotent.
func Sanitize(name string) string {
	upper := cases.Upper(language.Und).String(name)

	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(unsafeChars, r) {
			return '_'
		}

		return r
	}, upper)
}
