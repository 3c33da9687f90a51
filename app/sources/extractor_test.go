package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testArticle = `<!DOCTYPE html>
<html>
<head><title>Trail shoes explained</title></head>
<body>
  <nav><a href="/">Home</a> <a href="/shop">Shop</a></nav>
  <article>
    <h1>Trail shoes explained</h1>
    <p>Trail running shoes differ from road shoes in three ways. The outsole has
    deeper lugs that bite into mud and loose gravel, giving the runner confidence
    on descents where a road shoe would slide.</p>
    <p>The midsole is usually firmer, which protects the foot from sharp rocks
    and roots. Many models add a rock plate for extra protection on technical
    terrain, at the cost of some ground feel.</p>
    <p>Finally, the upper is reinforced around the toe and made of tougher mesh,
    so the shoe survives brushes with branches and repeated soakings in streams.</p>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

func TestArticleFetcherExcerpt(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testArticle))
	}))
	defer server.Close()

	fetcher := NewArticleFetcher(NewFetcher(server.Client(), "content-calendar/test", time.Second), 120)

	excerpt, err := fetcher.Excerpt(context.Background(), server.URL+"/trail")
	if err != nil {
		t.Fatalf("Expected excerpt, got error: %v", err)
	}
	if userAgent != "content-calendar/test" {
		t.Errorf("Expected configured User-Agent, got %q", userAgent)
	}
	if !strings.Contains(excerpt, "Trail") {
		t.Errorf("Expected article text in excerpt, got %q", excerpt)
	}
	if len([]rune(excerpt)) > 121 {
		t.Errorf("Expected excerpt truncated to 120 runes, got %d", len([]rune(excerpt)))
	}
	if strings.Contains(excerpt, "\n") {
		t.Errorf("Expected whitespace collapsed, got %q", excerpt)
	}
}

func TestArticleFetcherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewArticleFetcher(NewFetcher(server.Client(), "", time.Second), 0)

	tests := []struct {
		name string
		url  string
	}{
		{"not found", server.URL + "/missing"},
		{"not html", server.URL + "/json"},
		{"bad scheme", "ftp://example.com/file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fetcher.Excerpt(context.Background(), tt.url); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 10); got != "héllo" {
		t.Errorf("Expected untouched string, got %q", got)
	}
	if got := truncateRunes("héllo wörld", 5); got != "héllo…" {
		t.Errorf("Expected rune-safe truncation, got %q", got)
	}
}
