package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/lexingest/core"
)

// acquireURL fetches a page and reduces it to its main textual content.
func (a *Acquirer) acquireURL(ctx context.Context, src core.URLSource) (*Acquired, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetchFailed, src.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(a.maxFetchBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "text/plain"):
		text := string(body)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoContent, src.URL)
		}
		return &Acquired{
			Title:     firstLineTitle(text),
			Text:      text,
			SourceURL: src.URL,
		}, nil
	case strings.Contains(contentType, "text/html"), contentType == "":
		return parseHTMLPage(src.URL, body)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
}

// parseHTMLPage extracts the page title and the main content text.
// Prefers <main>/<article> when present, otherwise walks the whole document.
func parseHTMLPage(url string, body []byte) (*Acquired, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	doc.Find("script, style, noscript, nav, footer").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	var parts []string
	sel.Find("h1, h2, h3, p, li, td, th").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})

	text := strings.Join(parts, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, url)
	}
	if title == "" {
		title = firstLineTitle(text)
	}

	return &Acquired{
		Title:     title,
		Text:      text,
		SourceURL: url,
	}, nil
}

// firstLineTitle derives a display title from the first line of text.
func firstLineTitle(text string) string {
	line := strings.SplitN(strings.TrimSpace(text), "\n", 2)[0]
	runes := []rune(line)
	if len(runes) > 120 {
		line = string(runes[:120])
	}
	return line
}
