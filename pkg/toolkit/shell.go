// ABOUTME: Shell server tool: bash -c execution with timeout and output cap
// ABOUTME: Optional pty allocation for commands that want a terminal

package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"

	"github.com/mauromedda/tandem/pkg/runtime"
)

const (
	defaultShellTimeout = 2 * time.Minute
	defaultShellOutput  = 48 * 1024
)

var errOutputLimit = errors.New("output limit exceeded")

// ShellOptions configures the shell tool.
type ShellOptions struct {
	// Timeout bounds each command; per-call timeout_ms may shorten but
	// never extend it. Defaults to two minutes.
	Timeout time.Duration
	// MaxOutput caps captured bytes; the tail is kept. Defaults to 48KB.
	MaxOutput int
	// UsePTY runs commands under a pseudo-terminal so they behave as if
	// attached to one.
	UsePTY bool
	// Dir is the working directory; empty inherits the process's.
	Dir string
	// Env replaces the command environment when non-nil.
	Env []string
}

// ShellResult is the structured payload the model receives.
type ShellResult struct {
	Output     string `json:"output"`
	ExitCode   int    `json:"exit_code"`
	Truncated  bool   `json:"truncated,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type shellArgs struct {
	Command   string `json:"command"`
	TimeoutMS int    `json:"timeout_ms"`
}

// NewShellTool builds the shell tool definition. It ships approval-gated:
// the consent layer, not a command allowlist, is the trust boundary.
func NewShellTool(opts ShellOptions) *runtime.ToolDefinition {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultShellTimeout
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = defaultShellOutput
	}

	return &runtime.ToolDefinition{
		Name:        "shell",
		Description: "Execute a shell command via bash -c. Captures combined stdout and stderr.",
		Location:    runtime.LocationServer,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["command"],
			"properties": {
				"command":    {"type": "string", "description": "Shell command to execute"},
				"timeout_ms": {"type": "integer", "description": "Timeout in milliseconds"}
			}
		}`),
		NeedsApproval:   true,
		ApprovalMessage: "Run a shell command?",
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args shellArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode shell args: %w", err)
			}
			if strings.TrimSpace(args.Command) == "" {
				return nil, errors.New("command must not be empty")
			}

			timeout := opts.Timeout
			if args.TimeoutMS > 0 {
				if d := time.Duration(args.TimeoutMS) * time.Millisecond; d < timeout {
					timeout = d
				}
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return runShell(ctx, opts, args.Command)
		},
	}
}

func runShell(ctx context.Context, opts ShellOptions, command string) (*ShellResult, error) {
	bashPath, err := exec.LookPath("bash")
	if err != nil {
		return nil, fmt.Errorf("bash not found on PATH: %w", err)
	}

	// A write past the cap cancels the command; the tail clamp below
	// keeps the payload bounded even so.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	cmd := exec.CommandContext(runCtx, bashPath, "-c", command)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	start := time.Now()
	var buf bytes.Buffer
	lw := &limitWriter{w: &buf, limit: opts.MaxOutput * 2, onLimit: stop}

	if opts.UsePTY {
		err = runUnderPTY(cmd, lw)
	} else {
		cmd.Stdout = lw
		cmd.Stderr = lw
		err = cmd.Run()
	}

	output, clamped := clampTail(buf.String(), opts.MaxOutput)
	result := &ShellResult{
		Output:     output,
		Truncated:  clamped || lw.exceeded,
		DurationMS: time.Since(start).Milliseconds(),
	}

	switch {
	case ctx.Err() != nil && !lw.exceeded:
		return nil, fmt.Errorf("command timed out: %w", ctx.Err())
	case err == nil || lw.exceeded:
		return result, nil
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("executing command: %w", err)
	}
}

// runUnderPTY starts cmd attached to a pseudo-terminal and copies its
// output into w until the child exits.
func runUnderPTY(cmd *exec.Cmd, w io.Writer) error {
	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("allocate pty: %w", err)
	}
	defer f.Close()

	// Reading the pty after the child exits reports EIO on Linux;
	// treat any copy error other than the cap as end of output.
	if _, copyErr := io.Copy(w, f); errors.Is(copyErr, errOutputLimit) {
		_ = cmd.Process.Kill()
	}
	return cmd.Wait()
}

// limitWriter accepts at most limit bytes, then fires onLimit once and
// rejects further writes.
type limitWriter struct {
	w        io.Writer
	limit    int
	onLimit  func()
	written  int
	exceeded bool
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		lw.trip()
		return 0, errOutputLimit
	}
	if len(p) > remaining {
		n, err := lw.w.Write(p[:remaining])
		lw.written += n
		lw.trip()
		if err != nil {
			return n, err
		}
		return n, errOutputLimit
	}
	n, err := lw.w.Write(p)
	lw.written += n
	return n, err
}

func (lw *limitWriter) trip() {
	if !lw.exceeded {
		lw.exceeded = true
		if lw.onLimit != nil {
			lw.onLimit()
		}
	}
}
