package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func braveServer(t *testing.T, results []map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") == "" {
			t.Error("missing subscription token header")
		}
		if r.URL.Query().Get("q") == "" {
			t.Error("missing query param")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{"results": results},
		})
	}))
}

func TestSearchToolFormatsResults(t *testing.T) {
	srv := braveServer(t, []map[string]string{
		{"title": "Chennai General Hospital", "url": "https://example.org/cgh", "description": "24h emergency care"},
		{"title": "Apollo Clinic", "url": "https://example.org/apollo", "description": "Walk-in clinic"},
	})
	defer srv.Close()

	tool := NewSearchTool("key", srv.URL)
	out, err := tool.Execute(context.Background(), map[string]any{"query": "hospital near Chennai"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := "1. Chennai General Hospital - https://example.org/cgh\n24h emergency care\n\n2. Apollo Clinic - https://example.org/apollo\nWalk-in clinic"
	if out != want {
		t.Errorf("formatted output mismatch:\ngot:\n%s\nwant:\n%s", out, want)
	}
}

func TestSearchToolCapsAtFiveResults(t *testing.T) {
	var results []map[string]string
	for i := 0; i < 8; i++ {
		results = append(results, map[string]string{"title": "r", "url": "u", "description": "d"})
	}
	srv := braveServer(t, results)
	defer srv.Close()

	tool := NewSearchTool("key", srv.URL)
	out, _ := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if n := strings.Count(out, "\n\n") + 1; n != 5 {
		t.Errorf("got %d result blocks, want 5", n)
	}
}

func TestSearchToolFailureReturnsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tool := NewSearchTool("key", srv.URL)
	out, err := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if err != nil {
		t.Fatalf("search failures must not surface as errors, got %v", err)
	}
	if !strings.Contains(out, "Search failed") {
		t.Errorf("output = %q", out)
	}
}

func TestSearchToolEmptyQuery(t *testing.T) {
	tool := NewSearchTool("key", "")
	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "empty query") {
		t.Errorf("output = %q", out)
	}
}

func TestSearchToolUnconfigured(t *testing.T) {
	tool := NewSearchTool("", "")
	out, err := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "not configured") {
		t.Errorf("output = %q", out)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Execute(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry()
	r.Register(NewSearchTool("key", ""))
	r.Register(NewAlertTool(""))

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions", len(defs))
	}
	names := map[string]bool{}
	for _, d := range defs {
		if d.Type != "function" {
			t.Errorf("definition type = %q", d.Type)
		}
		names[d.Function.Name] = true
	}
	if !names[ToolSearch] || !names[ToolAlert] {
		t.Errorf("definitions = %v", names)
	}
}
