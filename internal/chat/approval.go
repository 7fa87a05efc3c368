// ABOUTME: Overlay dialog that resolves one tool approval request
// ABOUTME: Sends the decision back to the blocked controller goroutine

package chat

import (
	"encoding/json"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/tandem/internal/textutil"
	"github.com/mauromedda/tandem/pkg/client"
)

const approvalArgLines = 6

// approvalDialog presents a single gated tool call. The controller
// goroutine is parked on the reply channel until a decision is sent.
type approvalDialog struct {
	req   client.Request
	reply chan<- client.Decision
	width int
	sent  bool
}

func newApprovalDialog(msg ApprovalRequestMsg, width int) *approvalDialog {
	return &approvalDialog{req: msg.Request, reply: msg.Reply, width: width}
}

// sendReply delivers the decision without blocking. The channel is
// buffered by the prompter, so a full channel means the request was
// already answered or abandoned.
func (d *approvalDialog) sendReply(dec client.Decision) {
	if d.sent {
		return
	}
	d.sent = true
	select {
	case d.reply <- dec:
	default:
	}
}

func (d *approvalDialog) Update(msg tea.Msg) (overlay, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil
	}

	dismiss := func() tea.Msg { return DismissOverlayMsg{} }
	switch key.String() {
	case "y":
		d.sendReply(client.Decision{Approve: true, Remember: client.RememberOnce})
		return d, dismiss
	case "s":
		d.sendReply(client.Decision{Approve: true, Remember: client.RememberSession})
		return d, dismiss
	case "a":
		d.sendReply(client.Decision{Approve: true, Remember: client.RememberAlways})
		return d, dismiss
	case "n", "esc":
		d.sendReply(client.Decision{Approve: false, Remember: client.RememberOnce})
		return d, dismiss
	case "N":
		d.sendReply(client.Decision{Approve: false, Remember: client.RememberAlways})
		return d, dismiss
	}
	return d, nil
}

func (d *approvalDialog) View() string {
	width := d.width
	if width < 40 {
		width = 40
	}
	inner := width - 6

	var b strings.Builder
	b.WriteString(styles.OverlayTitle.Render("Tool approval") + "\n\n")
	b.WriteString(textutil.Truncate(d.req.Message, inner) + "\n")
	b.WriteString(styles.Bold.Render(d.req.ToolName) + " " +
		styles.Muted.Render(formatArgs(d.req.Args, inner)) + "\n\n")
	b.WriteString(styles.Success.Render("[y]") + " once  " +
		styles.Success.Render("[s]") + " session  " +
		styles.Success.Render("[a]") + " always  " +
		styles.Danger.Render("[n]") + " deny  " +
		styles.Danger.Render("[N]") + " never")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("3")).
		Padding(0, 2).
		Width(width - 2)
	return box.Render(b.String())
}

// formatArgs pretty-prints tool arguments capped to a few lines so a
// giant payload cannot push the legend off screen.
func formatArgs(raw json.RawMessage, width int) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf map[string]any
	pretty := string(raw)
	if err := json.Unmarshal(raw, &buf); err == nil {
		if out, err := json.MarshalIndent(buf, "", "  "); err == nil {
			pretty = string(out)
		}
	}
	lines := strings.Split(pretty, "\n")
	if len(lines) > approvalArgLines {
		lines = append(lines[:approvalArgLines], "…")
	}
	for i, ln := range lines {
		lines[i] = textutil.Truncate(ln, width)
	}
	return strings.Join(lines, "\n")
}
