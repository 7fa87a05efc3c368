// ABOUTME: WebFetch server tool: GET a URL, extract readable content as markdown
// ABOUTME: Responses are cached for fifteen minutes per tool instance

package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/mauromedda/tandem/pkg/runtime"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultFetchBytes   = 5 * 1024 * 1024
	fetchResultBytes    = 48 * 1024
	fetchCacheEntries   = 100
	fetchCacheTTL       = 15 * time.Minute
	defaultUserAgent    = "tandem/1.0"
)

// WebFetchOptions configures the webfetch tool.
type WebFetchOptions struct {
	// Timeout bounds the whole fetch. Defaults to thirty seconds.
	Timeout time.Duration
	// MaxBytes caps how much of the response body is read. Defaults to 5MB.
	MaxBytes int64
	// UserAgent overrides the request header.
	UserAgent string
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// FetchResult is the structured payload the model receives.
type FetchResult struct {
	URL       string `json:"url"`
	Content   string `json:"content"`
	Cached    bool   `json:"cached,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

type fetchArgs struct {
	URL string `json:"url"`
}

// NewWebFetchTool builds the webfetch tool definition. It is read-only,
// so batches of fetches run concurrently.
func NewWebFetchTool(opts WebFetchOptions) *runtime.ToolDefinition {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultFetchBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	cache := newFetchCache(fetchCacheEntries, fetchCacheTTL)

	return &runtime.ToolDefinition{
		Name:        "webfetch",
		Description: "Fetch a URL and extract its readable content as markdown.",
		Location:    runtime.LocationServer,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["url"],
			"properties": {
				"url": {"type": "string", "description": "URL to fetch"}
			}
		}`),
		ReadOnly: true,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args fetchArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode webfetch args: %w", err)
			}
			if args.URL == "" {
				return nil, errors.New("url must not be empty")
			}
			return fetchPage(ctx, client, cache, opts, upgradeScheme(args.URL))
		},
	}
}

// upgradeScheme rewrites plain http to https, except for loopback hosts.
func upgradeScheme(url string) string {
	if strings.HasPrefix(url, "http://") &&
		!strings.Contains(url, "localhost") && !strings.Contains(url, "127.0.0.1") {
		return "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

func fetchPage(ctx context.Context, client *http.Client, cache *fetchCache, opts WebFetchOptions, url string) (*FetchResult, error) {
	if content, ok := cache.get(url); ok {
		return &FetchResult{URL: url, Content: content, Cached: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	content := renderMarkdown(string(body))
	content, clamped := clampHead(content, fetchResultBytes)
	cache.set(url, content)

	return &FetchResult{URL: url, Content: content, Truncated: clamped}, nil
}

// renderMarkdown extracts readable text from an HTML document as loose
// markdown. Unparseable input comes back untouched.
func renderMarkdown(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	var b strings.Builder
	renderNode(doc, &b, false)
	return strings.TrimSpace(b.String())
}

func renderNode(n *html.Node, b *strings.Builder, inPre bool) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "nav", "footer", "header", "iframe", "noscript":
			return
		case "h1":
			b.WriteString("\n# ")
		case "h2":
			b.WriteString("\n## ")
		case "h3":
			b.WriteString("\n### ")
		case "h4", "h5", "h6":
			b.WriteString("\n#### ")
		case "p", "div", "section", "article":
			b.WriteString("\n\n")
		case "br":
			b.WriteString("\n")
		case "li":
			b.WriteString("\n- ")
		case "pre":
			b.WriteString("\n```\n")
			inPre = true
		case "code":
			if !inPre {
				b.WriteString("`")
			}
		case "a":
			if href := attrValue(n, "href"); href != "" {
				if text := nodeText(n); text != "" {
					fmt.Fprintf(b, "[%s](%s)", text, href)
					return
				}
			}
		case "strong", "b":
			b.WriteString("**")
		case "em", "i":
			b.WriteString("*")
		}
	}

	if n.Type == html.TextNode {
		text := n.Data
		if !inPre {
			text = strings.Join(strings.Fields(text), " ")
		}
		if text != "" && text != " " {
			b.WriteString(text)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(c, b, inPre)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "pre":
			b.WriteString("\n```\n")
		case "code":
			if !inPre {
				b.WriteString("`")
			}
		case "strong", "b":
			b.WriteString("**")
		case "em", "i":
			b.WriteString("*")
		case "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n")
		}
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
