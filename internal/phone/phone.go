// Package phone normalises phone numbers into lookup keys.
package phone

import "strings"

// Normalize strips formatting from a phone number so that "021-111 1111" and
// "0211111111" address the same contact. A leading '+' is kept.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')', r == '\t':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
