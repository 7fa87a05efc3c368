// ABOUTME: Display-width helpers for terminal rendering of chat lines
// ABOUTME: Grapheme-aware so emoji and East Asian text never split mid-cluster

package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Width returns the display width of s in terminal cells. s must be plain
// text; escape sequences are counted like any other characters, so measure
// before styling.
func Width(s string) int {
	if isPlainASCII(s) {
		return len(s)
	}
	w := 0
	state := -1
	for len(s) > 0 {
		cluster, rest, _, newState := uniseg.FirstGraphemeClusterInString(s, state)
		w += clusterWidth(cluster)
		s = rest
		state = newState
	}
	return w
}

// Truncate clips s to at most max display columns, ending in an ellipsis
// when anything was cut. Cuts land on grapheme boundaries.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if Width(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}

	var b strings.Builder
	col := 0
	target := max - 1
	for len(s) > 0 {
		cluster, rest, _, _ := uniseg.FirstGraphemeClusterInString(s, -1)
		cw := clusterWidth(cluster)
		if col+cw > target {
			break
		}
		b.WriteString(cluster)
		col += cw
		s = rest
	}
	b.WriteRune('…')
	return b.String()
}

// FirstLine returns s up to the first newline, with surrounding space
// trimmed. Multi-line tool output renders as a one-line summary.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// PadRight extends s with spaces to exactly w display columns, truncating
// first if it is already wider.
func PadRight(s string, w int) string {
	s = Truncate(s, w)
	if gap := w - Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}

func clusterWidth(cluster string) int {
	if cluster == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(cluster)
	return runewidth.RuneWidth(r)
}
