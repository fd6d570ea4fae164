package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/CareClaw/CareClaw/internal/provider"
	"github.com/CareClaw/CareClaw/internal/tokens"
)

// RelevanceFloor is the minimum similarity score for a retrieved chunk to
// be injected into the prompt.
const RelevanceFloor = 0.7

const defaultTopK = 5

// Retriever turns a user query into a knowledge block for the system
// prompt. Retrieval is best-effort: every failure degrades to an empty
// result, never an error.
type Retriever struct {
	store        VectorStore
	embedder     provider.Embedder
	topK         int
	knowledgeCap int
	dimension    int
}

// NewRetriever creates a retriever. knowledgeCap is in tokens.
func NewRetriever(store VectorStore, embedder provider.Embedder, topK, knowledgeCap, dimension int) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{
		store:        store,
		embedder:     embedder,
		topK:         topK,
		knowledgeCap: knowledgeCap,
		dimension:    dimension,
	}
}

// Retrieve returns relevant knowledge for the query formatted as
// "[Source: {source}]\n{text}\n" blocks, truncated to the knowledge cap.
// An empty string means no relevant knowledge.
func (r *Retriever) Retrieve(ctx context.Context, query string) string {
	if r.store == nil {
		return ""
	}

	vector := r.embedQuery(ctx, query)

	results, err := r.store.Search(ctx, vector, r.topK)
	if err != nil {
		slog.Warn("Knowledge search failed", "error", err)
		return ""
	}

	var sb strings.Builder
	used := 0
	for _, res := range results {
		if res.Score < RelevanceFloor {
			continue
		}
		content, _ := res.Payload["content"].(string)
		if content == "" {
			continue
		}
		source, _ := res.Payload["source"].(string)
		if source == "" {
			source = "unknown"
		}

		block := fmt.Sprintf("[Source: %s]\n%s\n", source, content)
		cost := tokens.Estimate(block)
		if used+cost > r.knowledgeCap {
			break
		}
		sb.WriteString(block)
		used += cost
	}
	return sb.String()
}

// embedQuery computes the query embedding, substituting a zero vector when
// the embedding service fails so retrieval degrades instead of aborting.
func (r *Retriever) embedQuery(ctx context.Context, query string) []float32 {
	if r.embedder == nil {
		return make([]float32, r.dimension)
	}
	resp, err := r.embedder.Embed(ctx, &provider.EmbeddingRequest{Input: query})
	if err != nil {
		slog.Warn("Query embedding failed, searching with zero vector", "error", err)
		return make([]float32, r.dimension)
	}
	return resp.Vector
}

// Store embeds and upserts one knowledge chunk, returning its ID.
func (r *Retriever) Store(ctx context.Context, content, source string) (string, error) {
	if r.store == nil {
		return "", fmt.Errorf("no vector store configured")
	}
	if r.embedder == nil {
		return "", fmt.Errorf("no embedder configured")
	}

	resp, err := r.embedder.Embed(ctx, &provider.EmbeddingRequest{Input: content})
	if err != nil {
		return "", fmt.Errorf("embed content: %w", err)
	}

	id := uuid.NewString()
	err = r.store.Upsert(ctx, id, resp.Vector, map[string]interface{}{
		"content": content,
		"source":  source,
	})
	if err != nil {
		return "", fmt.Errorf("upsert chunk: %w", err)
	}
	return id, nil
}
