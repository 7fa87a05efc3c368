// ABOUTME: Tests for the webfetch tool: markdown extraction, caching, errors
// ABOUTME: Uses loopback httptest servers so the https upgrade stays out of the way

package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func runFetch(t *testing.T, opts WebFetchOptions, url string) (*FetchResult, error) {
	t.Helper()
	tool := NewWebFetchTool(opts)
	value, err := tool.Handler(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, url)))
	if err != nil {
		return nil, err
	}
	result, ok := value.(*FetchResult)
	if !ok {
		t.Fatalf("handler returned %T", value)
	}
	return result, nil
}

func TestWebFetchRendersMarkdown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><script>ignored()</script></head><body>
			<h1>Main Title</h1>
			<p>Intro with <strong>bold</strong> text and a <a href="/docs">docs link</a>.</p>
			<ul><li>first</li><li>second</li></ul>
			<pre>code block</pre>
		</body></html>`)
	}))
	defer srv.Close()

	result, err := runFetch(t, WebFetchOptions{}, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"# Main Title",
		"**bold**",
		"[docs link](/docs)",
		"- first",
		"- second",
		"```\ncode block\n```",
	} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("content missing %q:\n%s", want, result.Content)
		}
	}
	if strings.Contains(result.Content, "ignored()") {
		t.Error("script content leaked into markdown")
	}
	if result.Cached {
		t.Error("first fetch must not report cached")
	}
}

func TestWebFetchCachesSecondFetch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<p>cached page</p>")
	}))
	defer srv.Close()

	tool := NewWebFetchTool(WebFetchOptions{})
	args := json.RawMessage(fmt.Sprintf(`{"url":%q}`, srv.URL))

	first, err := tool.Handler(context.Background(), args)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := tool.Handler(context.Background(), args)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
	if !second.(*FetchResult).Cached {
		t.Error("second fetch should come from cache")
	}
	if first.(*FetchResult).Content != second.(*FetchResult).Content {
		t.Error("cached content should match the original")
	}
}

func TestWebFetchSendsUserAgent(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		fmt.Fprint(w, "<p>ok</p>")
	}))
	defer srv.Close()

	if _, err := runFetch(t, WebFetchOptions{}, srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-agents; got != defaultUserAgent {
		t.Errorf("user agent = %q, want %q", got, defaultUserAgent)
	}
}

func TestWebFetchRejectsNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := runFetch(t, WebFetchOptions{}, srv.URL)
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("err = %v, want HTTP 404", err)
	}
}

func TestWebFetchEmptyURL(t *testing.T) {
	t.Parallel()

	tool := NewWebFetchTool(WebFetchOptions{})
	if _, err := tool.Handler(context.Background(), json.RawMessage(`{"url":""}`)); err == nil {
		t.Fatal("expected an error for an empty url")
	}
}

func TestWebFetchTruncatesLargeBodies(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<pre>%s</pre>", strings.Repeat("a", 2*fetchResultBytes))
	}))
	defer srv.Close()

	result, err := runFetch(t, WebFetchOptions{}, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Truncated {
		t.Error("expected truncation")
	}
	if len(result.Content) > fetchResultBytes {
		t.Errorf("content is %d bytes, want at most %d", len(result.Content), fetchResultBytes)
	}
}

func TestUpgradeScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"http://example.com/page", "https://example.com/page"},
		{"http://localhost:8080/x", "http://localhost:8080/x"},
		{"http://127.0.0.1:9999/x", "http://127.0.0.1:9999/x"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		if got := upgradeScheme(tt.in); got != tt.want {
			t.Errorf("upgradeScheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetchCacheEvictsOldest(t *testing.T) {
	t.Parallel()

	clock := time.Now()
	cache := newFetchCache(2, time.Hour)
	cache.now = func() time.Time { return clock }

	cache.set("a", "first")
	clock = clock.Add(time.Second)
	cache.set("b", "second")
	clock = clock.Add(time.Second)
	cache.set("c", "third")

	if _, ok := cache.get("a"); ok {
		t.Error("oldest entry should be evicted")
	}
	for key, want := range map[string]string{"b": "second", "c": "third"} {
		got, ok := cache.get(key)
		if !ok || got != want {
			t.Errorf("get(%q) = (%q, %v), want (%q, true)", key, got, ok, want)
		}
	}
}

func TestFetchCacheExpiresEntries(t *testing.T) {
	t.Parallel()

	clock := time.Now()
	cache := newFetchCache(10, 15*time.Minute)
	cache.now = func() time.Time { return clock }

	cache.set("page", "content")
	clock = clock.Add(10 * time.Minute)
	if _, ok := cache.get("page"); !ok {
		t.Fatal("entry should survive inside the ttl")
	}

	clock = clock.Add(6 * time.Minute)
	if _, ok := cache.get("page"); ok {
		t.Error("entry should expire past the ttl")
	}
}
