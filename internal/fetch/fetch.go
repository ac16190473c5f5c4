// Package fetch retrieves full page content for a search result URL when
// the engine snippet is too thin to index on its own. HTML pages are reduced
// to their visible text; PDF links are extracted with a PDF text reader.
// Fetching is best-effort: any failure degrades back to snippet-only.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxBodyBytes caps how much of a response is read before extraction.
const maxBodyBytes = 2 << 20 // 2MB

// Fetcher downloads and extracts readable text from web pages.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxChars   int
}

// New creates a Fetcher. maxChars bounds the extracted text length;
// <= 0 means no bound.
func New(timeout time.Duration, userAgent string, maxChars int) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = "askfirm/1.0"
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxChars:   maxChars,
	}
}

// Text fetches the URL and returns its readable text content.
func (f *Fetcher) Text(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating fetch request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	switch {
	case strings.Contains(contentType, "application/pdf"):
		text, err = extractPDFText(body)
	default:
		text, err = extractHTMLText(body)
	}
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", url, err)
	}

	text = collapseWhitespace(text)
	if f.maxChars > 0 && len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	return text, nil
}

// skipElements are HTML elements whose text content is never user-visible
// prose.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"template": true,
}

func extractHTMLText(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String(), nil
}

func extractPDFText(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
