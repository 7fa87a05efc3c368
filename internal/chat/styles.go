// ABOUTME: Lipgloss palette for the chat TUI
// ABOUTME: One fixed set of styles; no theme indirection

package chat

import "github.com/charmbracelet/lipgloss"

// palette holds every style the chat views use.
type palette struct {
	Prompt    lipgloss.Style
	UserText  lipgloss.Style
	Thinking  lipgloss.Style
	ToolLine  lipgloss.Style
	Notice    lipgloss.Style
	ErrorText lipgloss.Style
	Separator lipgloss.Style
	Status    lipgloss.Style
	StatusKey lipgloss.Style

	OverlayTitle lipgloss.Style
	Selection    lipgloss.Style
	Muted        lipgloss.Style
	Success      lipgloss.Style
	Warning      lipgloss.Style
	Danger       lipgloss.Style
	Bold         lipgloss.Style
}

var styles = palette{
	Prompt:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
	UserText:  lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	Thinking:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
	ToolLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	Notice:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	ErrorText: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	StatusKey: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),

	OverlayTitle: lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
	Selection:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
	Muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Success:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Warning:      lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	Danger:       lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	Bold:         lipgloss.NewStyle().Bold(true),
}
