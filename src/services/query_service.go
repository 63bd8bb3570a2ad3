package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const defaultTopK = 5

// QueryResult carries the answer together with the retrieved context that
// produced it.
type QueryResult struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Context []SearchResult `json:"context"`
}

// QueryService answers questions about ingested fund documents: retrieve the
// most similar chunks, build a grounded prompt, and ask the model.
type QueryService struct {
	store     *VectorStore
	generator AnswerGenerator
	log       *slog.Logger
}

func NewQueryService(store *VectorStore, generator AnswerGenerator, log *slog.Logger) *QueryService {
	return &QueryService{store: store, generator: generator, log: log}
}

// Answer retrieves top-k context chunks (optionally scoped to a fund) and
// generates a grounded answer.
func (s *QueryService) Answer(ctx context.Context, query string, fundID *int64, topK int) (*QueryResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	contextChunks, err := s.store.SimilaritySearch(ctx, query, fundID, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	s.log.Info("Retrieved context for query", "chunks", len(contextChunks))

	prompt := buildPrompt(query, contextChunks)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &QueryResult{
		Query:   query,
		Answer:  answer,
		Context: contextChunks,
	}, nil
}

func buildPrompt(query string, contextChunks []SearchResult) string {
	var b strings.Builder
	b.WriteString("You are an expert financial assistant.\n")
	b.WriteString("Use the context below to answer the user's question accurately.\n")
	b.WriteString("If the answer is not contained in the context, respond with 'I don't know'.\n\n")
	for i, chunk := range contextChunks {
		fmt.Fprintf(&b, "Context %d:\n%s\n\n", i+1, chunk.Content)
	}
	fmt.Fprintf(&b, "Question: %s\nAnswer:", query)
	return b.String()
}
