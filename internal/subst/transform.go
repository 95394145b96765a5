package subst

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Transform maps every rune of text through t. Runes without an entry are
// copied unchanged, and bytes that are not valid UTF-8 are copied as-is.
func Transform(text string, t *Table) string {
	return apply(text, t, false)
}

// Apply runs Transform and, when forceUpper is set, uppercases each mapped
// rune. forceUpper is only set for encodes under a reserved seed.
func Apply(text string, t *Table, forceUpper bool) string {
	return apply(text, t, forceUpper)
}

func apply(text string, t *Table, forceUpper bool) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteByte(text[i])
			i++
			continue
		}
		r = t.Map(r)
		if forceUpper {
			r = unicode.ToUpper(r)
		}
		sb.WriteRune(r)
		i += size
	}
	return sb.String()
}
