// ABOUTME: Entry point that wires the app model into a bubbletea program
// ABOUTME: Injects the program handle the bridge goroutines send through

package chat

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive session and blocks until it exits. The UI
// renders on stderr so piped stdout stays clean.
func Run(deps Deps) error {
	m, err := newApp(deps)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	// The model is handed to the program before the program exists, so
	// the shared handle is patched in afterwards. Nothing sends until
	// the first Update, which cannot run earlier than this write.
	m.sh.program = p

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("bubble tea: %w", err)
	}
	return nil
}
