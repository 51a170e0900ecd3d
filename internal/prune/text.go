// Package prune cuts text to size limits without splitting UTF-8 sequences.
package prune

import "unicode/utf8"

// Ellipsis is appended by Head when text was cut.
const Ellipsis = "..."

// Head keeps the first maxRunes runes of s and appends marker when anything
// was dropped. The marker does not count towards maxRunes.
func Head(s string, maxRunes int, marker string) string {
	if maxRunes < 0 {
		maxRunes = 0
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + marker
		}
		n++
	}
	return s
}

// Fit keeps s within maxRunes runes including the marker.
func Fit(s string, maxRunes int, marker string) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	keep := maxRunes - utf8.RuneCountInString(marker)
	if keep <= 0 {
		return Head(marker, maxRunes, "")
	}
	return Head(s, keep, marker)
}

// SafePrefix returns the longest prefix of s that is at most maxBytes long
// and ends on a rune boundary.
func SafePrefix(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) == 0 {
		return ""
	}
	if maxBytes >= len(s) {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
