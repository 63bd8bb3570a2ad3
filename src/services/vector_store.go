package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	ID         int64   `json:"id"`
	DocumentID int64   `json:"document_id"`
	FundID     int64   `json:"fund_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// VectorStore ranks persisted document chunks against a query embedding.
// sqlite has no vector type, so embeddings are stored as JSON arrays and
// cosine similarity runs in-process.
type VectorStore struct {
	db       *sql.DB
	embedder Embedder
	log      *slog.Logger
}

func NewVectorStore(db *sql.DB, embedder Embedder, log *slog.Logger) *VectorStore {
	return &VectorStore{db: db, embedder: embedder, log: log}
}

// SimilaritySearch embeds the query and returns the k most similar chunks,
// optionally restricted to one fund.
func (v *VectorStore) SimilaritySearch(ctx context.Context, query string, fundID *int64, k int) ([]SearchResult, error) {
	queryVector, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sqlQuery := `SELECT id, COALESCE(document_id, 0), COALESCE(fund_id, 0), content, embedding FROM document_embeddings`
	args := []interface{}{}
	if fundID != nil {
		sqlQuery += ` WHERE fund_id = ?`
		args = append(args, *fundID)
	}

	rows, err := v.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var encoded string
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.FundID, &r.Content, &encoded); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}

		var vector []float32
		if err := json.Unmarshal([]byte(encoded), &vector); err != nil {
			v.log.Warn("Skipping embedding row with undecodable vector", "id", r.ID, "error", err)
			continue
		}
		r.Score = cosineSimilarity(queryVector, vector)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedding rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	v.log.Debug("Similarity search complete", "candidates", len(results), "k", k)
	return results, nil
}

// Clear removes stored embeddings, for one fund or all of them.
func (v *VectorStore) Clear(fundID *int64) error {
	var err error
	if fundID != nil {
		_, err = v.db.Exec(`DELETE FROM document_embeddings WHERE fund_id = ?`, *fundID)
	} else {
		_, err = v.db.Exec(`DELETE FROM document_embeddings`)
	}
	if err != nil {
		return fmt.Errorf("clearing vector store: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
