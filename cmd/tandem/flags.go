// ABOUTME: Command-line flag parsing for the tandem CLI
// ABOUTME: Plain stdlib flag; positional arguments become the prompt

package main

import (
	"flag"
)

type cliArgs struct {
	model         string
	system        string
	prompt        string
	listen        string
	consentStore  string
	serve         bool
	stdio         bool
	jsonOutput    bool
	thinking      bool
	yolo          bool
	verbose       bool
	version       bool
	maxTokens     int
	maxIterations int
	rest          []string
}

func parseFlags(args []string) (*cliArgs, error) {
	fs := flag.NewFlagSet("tandem", flag.ContinueOnError)
	c := &cliArgs{}

	fs.StringVar(&c.model, "model", "", "model id or alias; ollama:tag and vendor/model forms work")
	fs.StringVar(&c.model, "m", "", "shorthand for -model")
	fs.StringVar(&c.system, "system", "", "system prompt override")
	fs.StringVar(&c.prompt, "p", "", "run one prompt, print the answer and exit")
	fs.StringVar(&c.listen, "listen", "", "address for -serve (default :8484)")
	fs.StringVar(&c.consentStore, "consent", "", "consent store backend: file, sqlite or memory")
	fs.BoolVar(&c.serve, "serve", false, "serve the HTTP and websocket API")
	fs.BoolVar(&c.stdio, "stdio", false, "serve the line-delimited JSON protocol on stdin/stdout")
	fs.BoolVar(&c.jsonOutput, "json", false, "with -p, emit the full result as JSON")
	fs.BoolVar(&c.thinking, "thinking", false, "request extended thinking")
	fs.BoolVar(&c.yolo, "yolo", false, "skip tool approvals; enables the shell tool in non-interactive modes")
	fs.BoolVar(&c.verbose, "verbose", false, "debug logging on stderr")
	fs.BoolVar(&c.version, "version", false, "print version and exit")
	fs.IntVar(&c.maxTokens, "max-tokens", 0, "max output tokens per model turn")
	fs.IntVar(&c.maxIterations, "max-iterations", 0, "server tool iteration ceiling")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.rest = fs.Args()
	return c, nil
}
