// Package search wraps the Exa web-search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/verina/internal/providers"
)

const defaultBaseURL = "https://api.exa.ai"

// Result is one hit returned by a search.
type Result struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Text          string `json:"text,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
}

// Options tune one search call. Zero values fall back to an auto
// search with 5 results.
type Options struct {
	NumResults int
	Type       string // "auto", "neural", "keyword", "fast"
	Category   string
}

// Searcher is the interface the tool layer depends on.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Client talks to the Exa /search endpoint.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	retry   providers.RetryConfig
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   providers.DefaultRetryConfig(),
	}
}

// WithBaseURL overrides the API endpoint, used in tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

type searchRequest struct {
	Query      string         `json:"query"`
	NumResults int            `json:"numResults"`
	Type       string         `json:"type"`
	Category   string         `json:"category,omitempty"`
	Contents   searchContents `json:"contents"`
}

type searchContents struct {
	Text searchText `json:"text"`
}

type searchText struct {
	MaxCharacters int `json:"maxCharacters"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs an Exa search with page text included.
// The result count is clamped to [1, 10].
func (c *Client) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	searchType := opts.Type
	if searchType == "" {
		searchType = "auto"
	}

	payload, err := json.Marshal(searchRequest{
		Query:      query,
		NumResults: ClampResults(opts.NumResults),
		Type:       searchType,
		Category:   opts.Category,
		Contents:   searchContents{Text: searchText{MaxCharacters: 2000}},
	})
	if err != nil {
		return nil, fmt.Errorf("exa: marshal request: %w", err)
	}

	return providers.RetryDo(ctx, c.retry, func() ([]Result, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("exa: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("exa: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, &providers.HTTPError{
				Status:     resp.StatusCode,
				Body:       fmt.Sprintf("exa: %s", string(body)),
				RetryAfter: providers.ParseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}

		var out searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("exa: decode response: %w", err)
		}
		return out.Results, nil
	})
}

// ClampResults bounds a requested result count to what the API accepts.
func ClampResults(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// Age renders a published date as a coarse relative age string.
func Age(publishedDate string, now time.Time) string {
	if publishedDate == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, publishedDate)
	if err != nil {
		if t, err = time.Parse("2006-01-02", publishedDate); err != nil {
			return ""
		}
	}
	d := now.Sub(t)
	switch {
	case d < 24*time.Hour:
		return "today"
	case d < 48*time.Hour:
		return "1 day ago"
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%d months ago", int(d.Hours()/(24*30)))
	default:
		return fmt.Sprintf("%d years ago", int(d.Hours()/(24*365)))
	}
}
