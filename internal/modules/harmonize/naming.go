package harmonize

import (
	"strings"
	"unicode"
)

// NormalizeName lower-cases name and collapses every run of characters that are
// neither letters nor digits into one underscore. Non-ASCII letters are kept. Leading and trailing underscores are dropped.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
