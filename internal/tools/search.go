package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ToolSearch is the wire name of the knowledge-search tool.
const ToolSearch = "tool_search"

const maxSearchResults = 5

// SearchTool queries the Brave Search API and formats results for the
// model. All failures come back as readable text, never as errors, so a
// failed search degrades the answer instead of killing the turn.
type SearchTool struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSearchTool creates a search tool. baseURL is overridable for tests.
func NewSearchTool(apiKey, baseURL string) *SearchTool {
	if baseURL == "" {
		baseURL = "https://api.search.brave.com/res/v1"
	}
	return &SearchTool{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *SearchTool) Name() string { return ToolSearch }

func (t *SearchTool) Description() string {
	return "Search the web for current information: health guidance, nearby facilities, opening hours. Use when the answer needs facts you do not reliably know."
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Search failed: empty query.", nil
	}
	if t.apiKey == "" {
		return "Search is not configured.", nil
	}

	results, err := t.search(ctx, query)
	if err != nil {
		slog.Warn("Web search failed", "error", err)
		return fmt.Sprintf("Search failed: %v. Answer from existing knowledge.", err), nil
	}
	if len(results) == 0 {
		return "No results found for: " + query, nil
	}

	var blocks []string
	for i, r := range results {
		if i >= maxSearchResults {
			break
		}
		blocks = append(blocks, fmt.Sprintf("%d. %s - %s\n%s", i+1, r.title, r.url, r.snippet))
	}
	return strings.Join(blocks, "\n\n"), nil
}

type searchResult struct {
	title   string
	url     string
	snippet string
}

func (t *SearchTool) search(ctx context.Context, query string) ([]searchResult, error) {
	endpoint := fmt.Sprintf("%s/web/search?q=%s&count=%d", t.baseURL, url.QueryEscape(query), maxSearchResults)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API status %d", resp.StatusCode)
	}

	var apiResp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := make([]searchResult, 0, len(apiResp.Web.Results))
	for _, r := range apiResp.Web.Results {
		results = append(results, searchResult{title: r.Title, url: r.URL, snippet: r.Description})
	}
	return results, nil
}
