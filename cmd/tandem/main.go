// ABOUTME: Entry point for the tandem CLI
// ABOUTME: Dispatches between interactive chat, one-shot print, HTTP serve and stdio modes

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/mauromedda/tandem/internal/chat"
	"github.com/mauromedda/tandem/internal/config"
	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/client/consent"
	"github.com/mauromedda/tandem/pkg/runtime"
	"github.com/mauromedda/tandem/pkg/toolkit"
	"github.com/mauromedda/tandem/pkg/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultModel  = "claude-sonnet-4-6"
	defaultListen = ":8484"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	if flags.version {
		fmt.Printf("tandem %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}
	if flags.verbose {
		log.SetLevel(slog.LevelDebug)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return err
	}

	reg, vendors, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	log.Debug("vendors registered: %s", strings.Join(vendors, ", "))

	modelID := firstNonEmpty(flags.model, cfg.Model, defaultModel)
	handle, err := resolveHandle(reg, modelID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt := strings.TrimSpace(flags.prompt)
	if prompt == "" && len(flags.rest) > 0 {
		prompt = strings.Join(flags.rest, " ")
	}
	// A piped stdin is a prompt, not a chat session.
	if prompt == "" && !flags.serve && !flags.stdio && !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
		if prompt == "" {
			return fmt.Errorf("stdin is not a terminal and carried no prompt")
		}
	}

	opts := runtimeOptions(cfg, flags)

	switch {
	case flags.serve:
		opts.Tools = serverTools(flags.yolo)
		addr := firstNonEmpty(flags.listen, cfg.Listen, defaultListen)
		return runServe(ctx, transport.Bind(handle, opts), addr)

	case flags.stdio:
		opts.Tools = serverTools(flags.yolo)
		return transport.NewStdioServer(transport.Bind(handle, opts)).Run(ctx)

	case prompt != "":
		opts.Tools = serverTools(flags.yolo)
		return runPrint(ctx, handle, opts, prompt, flags.jsonOutput)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive chat needs a terminal; use -p for scripted runs")
	}
	return runChat(cfg, flags, reg, handle, opts)
}

// runtimeOptions merges flag overrides onto configured defaults. Tools
// are attached per mode by the caller.
func runtimeOptions(cfg *config.Config, flags *cliArgs) runtime.Options {
	maxIter := flags.maxIterations
	if maxIter == 0 {
		maxIter = cfg.MaxIterations
	}
	maxTokens := flags.maxTokens
	if maxTokens == 0 {
		maxTokens = cfg.MaxTokens
	}
	return runtime.Options{
		System:        firstNonEmpty(flags.system, cfg.System),
		MaxIterations: maxIter,
		Request: ai.RequestOptions{
			MaxTokens: maxTokens,
			Thinking:  flags.thinking || cfg.Thinking,
		},
	}
}

// serverTools is the tool set for non-interactive modes. Nothing there
// can prompt, so the shell rides along only when approvals are waived.
func serverTools(yolo bool) []*runtime.ToolDefinition {
	tools := []*runtime.ToolDefinition{
		toolkit.NewWebFetchTool(toolkit.WebFetchOptions{}),
	}
	if yolo {
		tools = append(tools, toolkit.NewShellTool(toolkit.ShellOptions{}))
	}
	return tools
}

func runChat(cfg *config.Config, flags *cliArgs, reg *ai.Registry, handle *ai.ModelHandle, opts runtime.Options) error {
	store, label, err := openConsentStore(cfg, flags)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	// The shell runs client-side so every invocation passes the consent
	// controller; webfetch is read-only and stays in the loop.
	shell := *toolkit.NewShellTool(toolkit.ShellOptions{})
	shell.Location = runtime.LocationClient
	web := toolkit.NewWebFetchTool(toolkit.WebFetchOptions{})

	return chat.Run(chat.Deps{
		Registry:      reg,
		Handle:        handle,
		Tools:         []*runtime.ToolDefinition{&shell, web},
		ClientTools:   []*runtime.ToolDefinition{&shell},
		Store:         store,
		System:        opts.System,
		MaxIterations: opts.MaxIterations,
		Request:       opts.Request,
		AutoApprove:   flags.yolo,
		ConsentLabel:  label,
		Version:       version,
	})
}

// openConsentStore picks the durable consent backend. The flag beats the
// config file; both default to YAML under the global tandem directory.
func openConsentStore(cfg *config.Config, flags *cliArgs) (consent.Store, string, error) {
	backend := firstNonEmpty(flags.consentStore, cfg.Consent.Store, "file")
	path := cfg.Consent.Path

	switch backend {
	case "memory":
		return consent.NewMemory(), "memory", nil
	case "file":
		if path == "" {
			path = config.ConsentFile()
		}
		if err := config.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, "", err
		}
		s, err := consent.OpenFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("open consent file: %w", err)
		}
		return s, "file", nil
	case "sqlite":
		if path == "" {
			path = config.ConsentDB()
		}
		if err := config.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, "", err
		}
		s, err := consent.OpenSQLite(path)
		if err != nil {
			return nil, "", fmt.Errorf("open consent db: %w", err)
		}
		return s, "sqlite", nil
	}
	return nil, "", fmt.Errorf("unknown consent store %q (file, sqlite or memory)", backend)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
