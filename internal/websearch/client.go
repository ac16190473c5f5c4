// Package websearch queries the Google Custom Search JSON API for public
// web snippets about a company's services.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Result is one search hit: what the engine showed, not the full page.
type Result struct {
	Title   string
	Snippet string
	Link    string
}

// Client calls the Custom Search JSON API. Searches are attempted once per
// turn; the caller treats any failure as data unavailability.
type Client struct {
	baseURL    string
	apiKey     string
	engineID   string
	httpClient *http.Client
}

// New creates a Client with the given credentials.
func New(apiKey, engineID string) *Client {
	return &Client{
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		engineID: engineID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewWithBaseURL is New with an overridable endpoint, used by tests.
func NewWithBaseURL(baseURL, apiKey, engineID string) *Client {
	c := New(apiKey, engineID)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// searchResponse mirrors the JSON returned by the Custom Search API.
type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

// Search returns up to num results for the query. A response without items
// yields an empty slice and no error; quota, network and auth failures
// return an error the caller maps to "retrieval unavailable".
func (c *Client) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if num <= 0 {
		num = 5
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]Result, 0, len(sr.Items))
	for _, item := range sr.Items {
		if item.Snippet == "" {
			continue
		}
		results = append(results, Result{
			Title:   item.Title,
			Snippet: item.Snippet,
			Link:    item.Link,
		})
	}
	return results, nil
}

// BuildQuery assembles the search query string from extracted entities.
// The suffix steers the engine toward service descriptions and official pages.
func BuildQuery(company string, keywords []string) string {
	parts := make([]string, 0, len(keywords)+2)
	if company != "" {
		parts = append(parts, company)
	}
	parts = append(parts, keywords...)
	parts = append(parts, "services reviews official site")
	return strings.Join(parts, " ")
}
