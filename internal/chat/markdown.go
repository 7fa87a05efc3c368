// ABOUTME: Glamour-backed markdown rendering for completed assistant turns
// ABOUTME: Caches rendered output by content hash and width

package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// markdownCache memoizes glamour output. Rendering is pure in content and
// width, so a hash of both is a safe key. Live deltas never hit this path;
// only finished turns are rendered as markdown.
type markdownCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMarkdownCache() *markdownCache {
	return &markdownCache{entries: make(map[string]string)}
}

// Render returns content rendered for the given width. On any glamour
// error the raw content is returned so the transcript never goes blank.
func (c *markdownCache) Render(content string, width int) string {
	if width < 1 {
		width = 80
	}
	sum := sha256.Sum256([]byte(content))
	key := fmt.Sprintf("%s:%d", hex.EncodeToString(sum[:8]), width)

	c.mu.Lock()
	if out, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return out
	}
	c.mu.Unlock()

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	out = strings.TrimRight(out, "\n ")

	c.mu.Lock()
	c.entries[key] = out
	c.mu.Unlock()
	return out
}
