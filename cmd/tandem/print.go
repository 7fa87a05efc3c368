// ABOUTME: One-shot print mode: run a prompt, stream the answer to stdout
// ABOUTME: JSON output buffers the whole result for scripting

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/runtime"
	"github.com/mauromedda/tandem/pkg/transport"
)

// printResult is the -json envelope. Messages carry the full transcript
// including any server tool exchanges.
type printResult struct {
	Text     string       `json:"text"`
	Messages []ai.Message `json:"messages"`
	Usage    ai.Usage     `json:"usage"`
}

func runPrint(ctx context.Context, handle *ai.ModelHandle, opts runtime.Options, prompt string, jsonOut bool) error {
	rt, err := runtime.New(handle, opts)
	if err != nil {
		return err
	}
	msgs := []ai.Message{ai.NewUserMessage(prompt)}

	if jsonOut {
		res, err := rt.Generate(ctx, msgs)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(printResult{Text: res.Text, Messages: res.Messages, Usage: res.Usage})
	}

	if err := transport.NewStream(rt.Run(ctx, msgs)).PipeText(os.Stdout); err != nil {
		return err
	}
	fmt.Println()
	return nil
}
