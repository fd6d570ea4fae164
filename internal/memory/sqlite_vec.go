package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"
)

// SQLiteVecStore implements VectorStore on a local SQLite database.
// Embeddings are stored as BLOBs (little-endian float32 arrays) and cosine
// similarity is computed in Go — at the knowledge-base sizes a single agent
// carries this is sub-millisecond.
type SQLiteVecStore struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteVecStore creates a store backed by the given database connection.
func NewSQLiteVecStore(db *sql.DB, dimension int) *SQLiteVecStore {
	return &SQLiteVecStore{db: db, dimension: dimension}
}

// EnsureCollection creates the chunk table if missing.
func (s *SQLiteVecStore) EnsureCollection(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			embedding  BLOB,
			source     TEXT NOT NULL DEFAULT 'manual',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Upsert stores or updates a knowledge chunk with its embedding.
func (s *SQLiteVecStore) Upsert(ctx context.Context, id string, vector []float32, payload map[string]interface{}) error {
	content, _ := payload["content"].(string)
	source, _ := payload["source"].(string)
	if source == "" {
		source = "manual"
	}

	blob := encodeFloat32s(vector)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_chunks (id, content, embedding, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			source = excluded.source,
			updated_at = CURRENT_TIMESTAMP
	`, id, content, blob, source)
	return err
}

// Search finds the top-k most similar chunks by cosine similarity.
func (s *SQLiteVecStore) Search(ctx context.Context, vector []float32, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, source
		FROM knowledge_chunks
		WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var id, content, source string
		var blob []byte
		if err := rows.Scan(&id, &content, &blob, &source); err != nil {
			continue
		}

		stored := decodeFloat32s(blob)
		if len(stored) != len(vector) {
			continue // dimension mismatch, skip
		}

		results = append(results, Result{
			ID:    id,
			Score: cosineSimilarity(vector, stored),
			Payload: map[string]interface{}{
				"content": content,
				"source":  source,
			},
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// encodeFloat32s converts a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s converts little-endian bytes back to a float32 slice.
func decodeFloat32s(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
