// Package suggest produces "did you mean" hints for unknown names.
package suggest

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

const maxHints = 3

// Hint returns a " (did you mean ...?)" suffix listing the candidates that
// fuzzy-match name, or an empty string when nothing matches.
func Hint(name string, candidates []string) string {
	matches := fuzzy.Find(strings.ToLower(name), candidates)
	if len(matches) == 0 {
		return ""
	}

	hints := make([]string, 0, maxHints)
	for _, m := range matches {
		if len(hints) == maxHints {
			break
		}

		hints = append(hints, fmt.Sprintf("%q", m.Str))
	}

	return fmt.Sprintf(" (did you mean %s?)", strings.Join(hints, " or "))
}
