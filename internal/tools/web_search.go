package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/verina/internal/search"
	"github.com/nextlevelbuilder/verina/internal/workspace"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

const snippetLimit = 300

// WebSearchTool queries the search vendor, caches page bodies into the
// workspace and registers citation sources for the turn.
type WebSearchTool struct {
	searcher search.Searcher
	ws       *workspace.Workspace

	// withLabels renders numbered [n] markers so the model can cite
	// inline. Suppressed in Agent mode, where citations appear only in
	// the final HTML phase.
	withLabels bool
}

func NewWebSearchTool(searcher search.Searcher, ws *workspace.Workspace, withLabels bool) *WebSearchTool {
	return &WebSearchTool{searcher: searcher, ws: ws, withLabels: withLabels}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Results include page text cached " +
		"to the workspace for later reading with file_read."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
			"num_results": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results to return (1-10, default 5)",
			},
			"search_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"auto", "neural", "keyword", "fast"},
				"description": "Search strategy, default auto",
			},
			"category": map[string]interface{}{
				"type": "string",
				"enum": []string{"company", "research paper", "news", "pdf", "github",
					"tweet", "personal site", "linkedin profile", "financial report"},
				"description": "Restrict results to a content category",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}

	opts := search.Options{NumResults: 5}
	if n, ok := args["num_results"].(float64); ok {
		opts.NumResults = search.ClampResults(int(n))
	}
	if s, ok := args["search_type"].(string); ok {
		opts.Type = s
	}
	if c, ok := args["category"].(string); ok {
		opts.Category = c
	}

	results, err := t.searcher.Search(ctx, query, opts)
	if err != nil {
		// Vendor failures go back to the model as data, not as a raised
		// error, so it can adjust the query or move on.
		slog.Warn("web_search failed", "query", query, "error", err)
		return NewResult(fmt.Sprintf("Search for %q returned an error: %v", query, err)).WithError(err)
	}
	if len(results) == 0 {
		return NewResult(fmt.Sprintf("No results found for %q.", query))
	}

	tracker := SourceTrackerFromCtx(ctx)
	now := time.Now()

	out := &Result{}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", query)

	for _, r := range results {
		src := protocol.Source{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: snippet(r.Text),
			Age:     search.Age(r.PublishedDate, now),
		}
		if t.ws != nil && r.Text != "" {
			if rel, cacheErr := t.ws.CachePage(r.Title, r.URL, src.Age, r.Text); cacheErr == nil {
				src.CachePath = rel
			} else {
				slog.Warn("web_search cache write failed", "url", r.URL, "error", cacheErr)
			}
		}
		idx := 0
		if tracker != nil {
			idx = tracker.Add(src)
			src.Idx = idx
		}
		out.Sources = append(out.Sources, src)
		out.URLs = append(out.URLs, r.URL)

		if t.withLabels && idx > 0 {
			fmt.Fprintf(&b, "[%d] %s\n", idx, src.Title)
		} else {
			fmt.Fprintf(&b, "- %s\n", src.Title)
		}
		fmt.Fprintf(&b, "  URL: %s\n", src.URL)
		if src.Age != "" {
			fmt.Fprintf(&b, "  Published: %s\n", src.Age)
		}
		if src.Snippet != "" {
			fmt.Fprintf(&b, "  %s\n", src.Snippet)
		}
		if src.CachePath != "" {
			fmt.Fprintf(&b, "  Cached: %s\n", src.CachePath)
		}
		b.WriteString("\n")
	}

	if t.withLabels {
		b.WriteString("Cite sources inline with their [n] labels where relevant.")
	}

	out.ForLLM = strings.TrimSpace(b.String())
	return out
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= snippetLimit {
		return text
	}
	cut := text[:snippetLimit]
	if i := strings.LastIndexByte(cut, ' '); i > snippetLimit/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
