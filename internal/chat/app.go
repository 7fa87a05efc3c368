// ABOUTME: Bubbletea model for the interactive chat session
// ABOUTME: Bridges runtime streams, tool approvals and model switching into Update

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/mauromedda/tandem/internal/textutil"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/client"
	"github.com/mauromedda/tandem/pkg/client/consent"
	"github.com/mauromedda/tandem/pkg/runtime"
)

// Deps wires a chat session. The caller resolves the model, opens the
// consent store and decides the tool split; the UI owns everything that
// needs the running program, including the approval prompter.
type Deps struct {
	Registry *ai.Registry
	Handle   *ai.ModelHandle

	// Tools is the full set advertised to the model. ClientTools is the
	// subset executed in-process through the consent controller and must
	// also appear in Tools.
	Tools       []*runtime.ToolDefinition
	ClientTools []*runtime.ToolDefinition
	Store       consent.Store

	System        string
	MaxIterations int
	BatchPolicy   runtime.BatchPolicy
	Request       ai.RequestOptions

	// AutoApprove answers every approval prompt with a one-time yes.
	AutoApprove bool
	// ConsentLabel names the store backend for the status line.
	ConsentLabel string
	Version      string
}

// shared survives bubbletea's value copies of the model. Everything the
// bridge goroutines touch lives here.
type shared struct {
	program *tea.Program
	rt      *runtime.Runtime
	cancel  context.CancelFunc
}

// overlay is a modal view that takes over the input area until dismissed.
type overlay interface {
	Update(msg tea.Msg) (overlay, tea.Cmd)
	View() string
}

type blockKind int

const (
	blockUser blockKind = iota
	blockAssistant
	blockThinking
	blockTool
	blockNotice
	blockError
)

// block is one finished transcript entry. Live output renders separately
// until its turn completes.
type block struct {
	kind blockKind
	text string
}

type appModel struct {
	deps Deps
	sh   *shared
	ctrl *client.Controller

	ta   textarea.Model
	vp   viewport.Model
	spin spinner.Model

	width  int
	height int
	ready  bool

	modelID  string
	threadID string

	history []ai.Message
	blocks  []block
	live    *client.StreamingMessage
	running bool
	usage   ai.Usage

	overlay   overlay
	approvals []ApprovalRequestMsg

	md *markdownCache
}

func newApp(deps Deps) (*appModel, error) {
	sh := &shared{}

	prompter := client.Prompter(uiPrompter{sh: sh})
	if deps.AutoApprove {
		prompter = client.PromptFunc(func(context.Context, client.Request) (client.Decision, error) {
			return client.Decision{Approve: true, Remember: client.RememberOnce}, nil
		})
	}
	ctrl, err := client.NewController(client.Config{
		Tools:    deps.ClientTools,
		Store:    deps.Store,
		Prompter: prompter,
	})
	if err != nil {
		return nil, fmt.Errorf("build tool controller: %w", err)
	}

	m := &appModel{
		deps:     deps,
		sh:       sh,
		ctrl:     ctrl,
		modelID:  deps.Handle.Model.ID,
		threadID: uuid.NewString(),
		md:       newMarkdownCache(),
	}

	rt, err := runtime.New(deps.Handle, m.runtimeOptions())
	if err != nil {
		return nil, fmt.Errorf("build runtime: %w", err)
	}
	sh.rt = rt

	ta := textarea.New()
	ta.Placeholder = "Ask anything. /help lists commands."
	ta.Prompt = "❯ "
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetKeys("ctrl+j")
	ta.Focus()
	m.ta = ta

	m.spin = spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Muted))

	m.blocks = append(m.blocks, block{
		kind: blockNotice,
		text: fmt.Sprintf("tandem %s with %s. ctrl+j inserts a newline, /model switches models.", deps.Version, m.modelID),
	})
	return m, nil
}

func (m *appModel) runtimeOptions() runtime.Options {
	sh := m.sh
	return runtime.Options{
		Tools:         m.deps.Tools,
		System:        m.deps.System,
		MaxIterations: m.deps.MaxIterations,
		BatchPolicy:   m.deps.BatchPolicy,
		Request:       m.deps.Request,
		ThreadID:      m.threadID,
		OnFinish: func(_ context.Context, fin runtime.Finish) {
			if p := sh.program; p != nil {
				p.Send(HistoryMsg{Messages: fin.Messages, Usage: fin.Usage})
			}
		},
	}
}

// uiPrompter parks the controller goroutine on a reply channel while the
// dialog overlay collects the decision.
type uiPrompter struct {
	sh *shared
}

func (p uiPrompter) Prompt(ctx context.Context, req client.Request) (client.Decision, error) {
	prog := p.sh.program
	if prog == nil {
		return client.Decision{}, fmt.Errorf("approval prompt: ui not running")
	}
	reply := make(chan client.Decision, 1)
	prog.Send(ApprovalRequestMsg{Request: req, Reply: reply})
	select {
	case d := <-reply:
		return d, nil
	case <-ctx.Done():
		return client.Decision{}, ctx.Err()
	}
}

func (m *appModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case StreamEventMsg:
		return m.updateStream(msg.Event)

	case HistoryMsg:
		m.history = msg.Messages
		m.usage.Add(msg.Usage)
		return m, nil

	case ApprovalRequestMsg:
		if m.overlay != nil {
			m.approvals = append(m.approvals, msg)
			return m, nil
		}
		m.overlay = newApprovalDialog(msg, m.dialogWidth())
		return m, nil

	case DismissOverlayMsg:
		m.overlay = nil
		if len(m.approvals) > 0 {
			next := m.approvals[0]
			m.approvals = m.approvals[1:]
			m.overlay = newApprovalDialog(next, m.dialogWidth())
		}
		return m, nil

	case ModelPickedMsg:
		m.overlay = nil
		m.switchModel(msg.ID)
		m.syncViewport()
		return m, nil

	case RunErrorMsg:
		// Stragglers from an aborted run arrive after abortRun already
		// reported; only a live run gets an error block.
		if !m.running {
			return m, nil
		}
		m.finishRun()
		if errors.Is(msg.Err, context.Canceled) {
			m.appendBlock(blockNotice, "run aborted")
		} else {
			m.appendBlock(blockError, msg.Err.Error())
		}
		m.syncViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.overlay != nil {
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *appModel) updateKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		if m.running {
			m.abortRun()
			m.syncViewport()
			return m, nil
		}
		return m, tea.Quit
	case "ctrl+d":
		if m.ta.Value() == "" {
			return m, tea.Quit
		}
	}

	if m.overlay != nil {
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.Update(key)
		return m, cmd
	}

	switch key.String() {
	case "enter":
		return m.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(key)
		return m, cmd
	}

	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(key)
	return m, cmd
}

func (m *appModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.ta.Value())
	if text == "" {
		return m, nil
	}
	m.ta.Reset()

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	m.appendBlock(blockUser, text)

	if m.running {
		// Mid-run input becomes steering: injected before the next
		// model call of the active run.
		m.sh.rt.Steer(ai.NewUserMessage(text))
		m.appendBlock(blockNotice, "queued for the next model turn")
		m.syncViewport()
		return m, nil
	}

	m.history = append(m.history, ai.NewUserMessage(text))
	return m.startRun()
}

func (m *appModel) runCommand(text string) (tea.Model, tea.Cmd) {
	cmd, rest, _ := strings.Cut(text, " ")
	switch cmd {
	case "/model":
		m.overlay = newModelPicker(strings.TrimSpace(rest), m.dialogWidth())
		return m, nil
	case "/new":
		if m.running {
			m.abortRun()
		}
		m.history = nil
		m.blocks = nil
		m.threadID = uuid.NewString()
		m.rebuildRuntime(m.deps.Handle)
		m.appendBlock(blockNotice, "started a new conversation")
		m.syncViewport()
		return m, nil
	case "/help":
		m.appendBlock(blockNotice,
			"/model [query] switch models · /new reset the conversation · /quit exit\n"+
				"enter sends, ctrl+j inserts a newline, ctrl+c aborts a running turn")
		m.syncViewport()
		return m, nil
	case "/quit":
		return m, tea.Quit
	default:
		m.appendBlock(blockNotice, fmt.Sprintf("unknown command %s (try /help)", cmd))
		m.syncViewport()
		return m, nil
	}
}

// startRun kicks off one runtime invocation and bridges its events into
// the program. The history slice is copied first; the loop appends to its
// own copy and reports back through OnFinish.
func (m *appModel) startRun() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.sh.cancel = cancel
	m.running = true
	m.live = &client.StreamingMessage{}
	m.syncViewport()

	sh := m.sh
	msgs := append([]ai.Message(nil), m.history...)
	bridge := func() tea.Msg {
		stream := sh.rt.Run(ctx, msgs)
		forwardEvents(sh, stream)
		return nil
	}
	return m, tea.Batch(m.spin.Tick, bridge)
}

// continueRun executes the pending client tool calls and resumes the
// paused invocation with their results.
func (m *appModel) continueRun() tea.Cmd {
	sh := m.sh
	ctrl := m.ctrl
	history := append([]ai.Message(nil), m.history...)
	calls := ai.PendingToolCalls(history)
	ctx := m.runContext()
	return func() tea.Msg {
		results, err := ctrl.HandleToolCalls(ctx, calls)
		if err != nil {
			return RunErrorMsg{Err: err}
		}
		stream := sh.rt.Resume(ctx, history, results)
		forwardEvents(sh, stream)
		return nil
	}
}

// runContext returns a context tied to the active run's cancel.
func (m *appModel) runContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	prev := m.sh.cancel
	m.sh.cancel = func() {
		cancel()
		if prev != nil {
			prev()
		}
	}
	return ctx
}

func forwardEvents(sh *shared, stream *ai.EventStream) {
	for ev := range stream.Events() {
		p := sh.program
		if p == nil {
			return
		}
		p.Send(StreamEventMsg{Event: ev})
	}
}

func (m *appModel) updateStream(ev ai.StreamEvent) (tea.Model, tea.Cmd) {
	if !m.running {
		return m, nil
	}
	if m.live == nil {
		m.live = &client.StreamingMessage{}
	}
	next := client.Reduce(*m.live, ev)
	m.live = &next

	switch ev.Type {
	case ai.EventToolCalls:
		m.flushLiveTurn()
		for _, call := range ev.ToolCalls {
			m.appendBlock(blockTool, formatToolCall(call, m.contentWidth()))
		}

	case ai.EventMessageEnd:
		m.flushLiveTurn()

	case ai.EventDone:
		m.flushLiveTurn()
		if ev.RequiresAction {
			m.syncViewport()
			return m, m.continueRun()
		}
		m.finishRun()

	case ai.EventError:
		m.flushLiveTurn()
		m.finishRun()
		text := ev.Message
		if text == "" {
			text = "stream failed"
		}
		m.appendBlock(blockError, text)
	}

	m.syncViewport()
	return m, nil
}

// flushLiveTurn moves the accumulated live turn into finished blocks and
// resets the reducer state for the next turn of the same run.
func (m *appModel) flushLiveTurn() {
	if m.live == nil {
		return
	}
	if m.live.Thinking != "" {
		m.appendBlock(blockThinking, m.live.Thinking)
	}
	if m.live.Content != "" {
		m.appendBlock(blockAssistant, m.live.Content)
	}
	m.live = &client.StreamingMessage{}
}

func (m *appModel) finishRun() {
	m.running = false
	m.live = nil
	if m.sh.cancel != nil {
		m.sh.cancel()
		m.sh.cancel = nil
	}
}

func (m *appModel) abortRun() {
	if m.sh.cancel != nil {
		m.sh.cancel()
		m.sh.cancel = nil
	}
	m.running = false
	m.live = nil
	m.overlay = nil
	m.approvals = nil
	m.appendBlock(blockNotice, "run aborted")
}

// switchModel rebinds the session to another catalog model. The
// conversation continues; only the handle changes.
func (m *appModel) switchModel(id string) {
	if id == m.modelID {
		return
	}
	handle, err := m.deps.Registry.Handle(id)
	if err != nil {
		m.appendBlock(blockError, fmt.Sprintf("switch model: %v", err))
		return
	}
	if err := m.rebuildRuntime(handle); err != nil {
		m.appendBlock(blockError, fmt.Sprintf("switch model: %v", err))
		return
	}
	m.deps.Handle = handle
	m.modelID = handle.Model.ID
	m.appendBlock(blockNotice, "switched to "+m.modelID)
}

func (m *appModel) rebuildRuntime(handle *ai.ModelHandle) error {
	rt, err := runtime.New(handle, m.runtimeOptions())
	if err != nil {
		return err
	}
	m.sh.rt = rt
	return nil
}

func (m *appModel) appendBlock(kind blockKind, text string) {
	m.blocks = append(m.blocks, block{kind: kind, text: text})
}

func (m *appModel) resize(w, h int) {
	m.width = w
	m.height = h
	m.ready = true

	chrome := m.ta.Height() + 2 // separator and status line
	vh := h - chrome
	if vh < 3 {
		vh = 3
	}
	if m.vp.Width == 0 {
		m.vp = viewport.New(w, vh)
	} else {
		m.vp.Width = w
		m.vp.Height = vh
	}
	m.ta.SetWidth(w - 2)
	m.syncViewport()
}

func (m *appModel) contentWidth() int {
	if m.width <= 2 {
		return 78
	}
	return m.width - 2
}

func (m *appModel) dialogWidth() int {
	w := m.width - 4
	if w > 76 {
		w = 76
	}
	return w
}

func (m *appModel) syncViewport() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderTranscript())
	m.vp.GotoBottom()
}

func (m *appModel) renderTranscript() string {
	width := m.contentWidth()
	parts := make([]string, 0, len(m.blocks)+2)
	for _, b := range m.blocks {
		parts = append(parts, m.renderBlock(b, width))
	}
	if m.running {
		if m.live != nil && m.live.Thinking != "" {
			parts = append(parts, styles.Thinking.Render(m.live.Thinking))
		}
		if m.live != nil && m.live.Content != "" {
			parts = append(parts, m.live.Content)
		}
		parts = append(parts, m.spin.View()+styles.Muted.Render(" "+m.stateLabel()))
	}
	if len(parts) == 0 {
		return styles.Muted.Render("…")
	}
	return lipgloss.JoinVertical(lipgloss.Left, joinSpaced(parts)...)
}

// joinSpaced interleaves a blank line between transcript parts.
func joinSpaced(parts []string) []string {
	out := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, p)
	}
	return out
}

func (m *appModel) renderBlock(b block, width int) string {
	switch b.kind {
	case blockUser:
		return styles.Prompt.Render("❯ ") + styles.UserText.Render(b.text)
	case blockAssistant:
		return m.md.Render(b.text, width)
	case blockThinking:
		return styles.Thinking.Render(b.text)
	case blockTool:
		return styles.ToolLine.Render("⚙ " + b.text)
	case blockNotice:
		return styles.Notice.Render("• " + b.text)
	case blockError:
		return styles.ErrorText.Render("✗ " + b.text)
	}
	return b.text
}

func (m *appModel) stateLabel() string {
	if len(m.approvals) > 0 || isApproval(m.overlay) {
		return "waiting for approval"
	}
	if m.live != nil && m.live.Thinking != "" && m.live.Content == "" {
		return "thinking"
	}
	return "working"
}

func isApproval(o overlay) bool {
	_, ok := o.(*approvalDialog)
	return ok
}

func formatToolCall(call ai.ToolCall, width int) string {
	args := textutil.FirstLine(string(call.Args))
	line := call.Name + " " + args
	return textutil.Truncate(line, width-4)
}

func (m *appModel) View() string {
	if !m.ready {
		return "starting…"
	}

	sep := styles.Separator.Render(strings.Repeat("─", m.width))

	bottom := m.ta.View()
	if m.overlay != nil {
		bottom = m.overlay.View()
	}

	return m.vp.View() + "\n" +
		sep + "\n" +
		bottom + "\n" +
		m.statusLine()
}

func (m *appModel) statusLine() string {
	left := styles.StatusKey.Render(m.modelID) +
		styles.Status.Render(fmt.Sprintf("  %d tools  consent:%s", len(m.deps.Tools), m.deps.ConsentLabel))
	right := styles.Status.Render(fmt.Sprintf("↑%d ↓%d tok", m.usage.InputTokens, m.usage.OutputTokens))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return textutil.Truncate(m.modelID, m.width)
	}
	return left + strings.Repeat(" ", gap) + right
}
