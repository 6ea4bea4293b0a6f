package g

import "strings"

// CamelToSnake converts "creditsLeft" and "CreditsLeft" to "credits_left".
// Keys that are already snake_case are returned unchanged.
func CamelToSnake(s string) string {
	b := new(strings.Builder)
	b.Grow(len(s) + 5)
	prevUnderscore := true
	for _, c := range s {
		if 'A' <= c && c <= 'Z' {
			if !prevUnderscore {
				b.WriteRune('_')
			}
			b.WriteRune(c + 'a' - 'A')
			prevUnderscore = false
			continue
		}
		b.WriteRune(c)
		prevUnderscore = c == '_'
	}
	return b.String()
}
