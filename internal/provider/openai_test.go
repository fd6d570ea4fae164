package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if stream, _ := body["stream"].(bool); !stream {
			t.Error("request did not set stream=true")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
	}
}

func collect(t *testing.T, s *Stream) []StreamEvent {
	t.Helper()
	defer s.Close()
	var events []StreamEvent
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		events = append(events, ev)
	}
}

func TestChatStreamTextDeltas(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model")
	stream, err := p.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	events := collect(t, stream)
	if len(events) < 3 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Type != EventTextDelta || events[0].Text != "Hel" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != EventTextDelta || events[1].Text != "lo" {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Type != EventFinish || events[2].FinishReason != "stop" {
		t.Errorf("event 2 = %+v", events[2])
	}
}

func TestChatStreamToolCallDeltas(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"tool_search"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"clinics\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model")
	stream, err := p.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "find clinics"}},
		Tools:    []ToolDefinition{{Type: "function", Function: FunctionDef{Name: "tool_search"}}},
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	acc := NewCallAccumulator()
	var finish string
	for _, ev := range collect(t, stream) {
		switch ev.Type {
		case EventToolCallDelta:
			acc.Add(ev.ToolCall)
		case EventFinish:
			if finish == "" {
				finish = ev.FinishReason
			}
		}
	}

	if finish != "tool_calls" {
		t.Errorf("finish reason = %q", finish)
	}
	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("got %d calls", len(calls))
	}
	if calls[0].Name != "tool_search" {
		t.Errorf("name = %q", calls[0].Name)
	}
	if q, _ := calls[0].Arguments["query"].(string); q != "clinics" {
		t.Errorf("query = %q", q)
	}
}

func TestChatStreamAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model")
	if _, err := p.ChatStream(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
			"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model")
	resp, err := p.Embed(context.Background(), &EmbeddingRequest{Input: "hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(resp.Vector) != 3 {
		t.Errorf("vector = %v", resp.Vector)
	}
}
