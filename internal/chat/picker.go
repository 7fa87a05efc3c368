// ABOUTME: Overlay for switching the active model mid-conversation
// ABOUTME: Fuzzy-filters the catalog as the user types

package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mauromedda/tandem/pkg/ai"
)

const pickerVisibleRows = 10

// modelPicker lists catalog models and narrows them by a typed query.
type modelPicker struct {
	entries  []ai.Model
	filtered []int
	query    string
	cursor   int
	width    int
}

func newModelPicker(query string, width int) *modelPicker {
	p := &modelPicker{entries: ai.Catalog(), query: query, width: width}
	p.filter()
	return p
}

// modelSource exposes catalog rows to the fuzzy matcher. Matching runs
// over the id, display name and aliases together.
type modelSource []ai.Model

func (s modelSource) Len() int { return len(s) }

func (s modelSource) String(i int) string {
	m := s[i]
	return m.ID + " " + m.Name + " " + strings.Join(m.Aliases, " ")
}

func (p *modelPicker) filter() {
	p.filtered = p.filtered[:0]
	if strings.TrimSpace(p.query) == "" {
		for i := range p.entries {
			p.filtered = append(p.filtered, i)
		}
	} else {
		for _, m := range fuzzy.FindFrom(p.query, modelSource(p.entries)) {
			p.filtered = append(p.filtered, m.Index)
		}
	}
	if p.cursor >= len(p.filtered) {
		p.cursor = 0
	}
}

func (p *modelPicker) Update(msg tea.Msg) (overlay, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}

	switch key.String() {
	case "esc":
		return p, func() tea.Msg { return DismissOverlayMsg{} }
	case "enter":
		if len(p.filtered) == 0 {
			return p, func() tea.Msg { return DismissOverlayMsg{} }
		}
		id := p.entries[p.filtered[p.cursor]].ID
		return p, func() tea.Msg { return ModelPickedMsg{ID: id} }
	case "up", "ctrl+p":
		if p.cursor > 0 {
			p.cursor--
		}
		return p, nil
	case "down", "ctrl+n":
		if p.cursor < len(p.filtered)-1 {
			p.cursor++
		}
		return p, nil
	case "backspace":
		if p.query != "" {
			p.query = p.query[:len(p.query)-1]
			p.filter()
		}
		return p, nil
	}

	if key.Type == tea.KeyRunes {
		p.query += string(key.Runes)
		p.filter()
	}
	return p, nil
}

func (p *modelPicker) View() string {
	width := p.width
	if width < 40 {
		width = 40
	}

	var b strings.Builder
	b.WriteString(styles.OverlayTitle.Render("Switch model") + "  " +
		styles.Muted.Render("type to filter, enter to select, esc to cancel") + "\n")
	b.WriteString(styles.Prompt.Render("❯ ") + p.query + "\n\n")

	if len(p.filtered) == 0 {
		b.WriteString(styles.Muted.Render("no models match"))
	}
	for row, idx := range p.filtered {
		if row >= pickerVisibleRows {
			b.WriteString(styles.Muted.Render(fmt.Sprintf("… %d more", len(p.filtered)-row)))
			break
		}
		m := p.entries[idx]
		line := fmt.Sprintf("%s  %s", m.ID, styles.Muted.Render(string(m.Vendor)))
		if row == p.cursor {
			line = styles.Selection.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("6")).
		Padding(0, 2).
		Width(width - 2)
	return box.Render(strings.TrimRight(b.String(), "\n"))
}
