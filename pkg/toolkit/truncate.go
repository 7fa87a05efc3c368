// ABOUTME: UTF-8 safe output clamping for tool results
// ABOUTME: Shell keeps the tail of its output, webfetch the head

package toolkit

import "unicode/utf8"

// clampTail keeps at most maxBytes of the end of s, never splitting a
// rune. Shell output matters most at the end.
func clampTail(s string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false
	}
	start := len(s) - maxBytes
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:], true
}

// clampHead keeps at most maxBytes of the start of s, never splitting a
// rune.
func clampHead(s string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes], true
}
