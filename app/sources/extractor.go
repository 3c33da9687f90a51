package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

const defaultExcerptLength = 2000

// ArticleFetcher downloads a page and reduces it to a plain-text excerpt
// suitable for a generation prompt.
type ArticleFetcher struct {
	fetcher   *Fetcher
	maxLength int
}

func NewArticleFetcher(fetcher *Fetcher, maxLength int) *ArticleFetcher {
	if maxLength <= 0 {
		maxLength = defaultExcerptLength
	}
	return &ArticleFetcher{fetcher: fetcher, maxLength: maxLength}
}

func (a *ArticleFetcher) Excerpt(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return "", fmt.Errorf("invalid source URL: %s", rawURL)
	}

	data, contentType, err := a.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article content: %w", err)
	}

	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return "", fmt.Errorf("content type is not HTML: %s", contentType)
	}

	text, err := extractText(data, pageURL)
	if err != nil {
		return "", err
	}

	excerpt := truncateRunes(text, a.maxLength)
	slog.Debug("Source excerpt extracted", "url", rawURL, "length", len(excerpt))
	return excerpt, nil
}

func extractText(data []byte, pageURL *url.URL) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		text = strings.TrimSpace(article.Excerpt)
	}
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, title) {
		text = title + ". " + text
	}
	return text, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
