package services

import (
	"context"
	"errors"
)

// Collaborators consumed by the ingestion and query services. The concrete
// implementations live in src/pdf and src/embedding; tests substitute fakes.

// TextExtractor recovers plain text from a stored document file.
type TextExtractor interface {
	ExtractText(ctx context.Context, filePath string) (string, error)
}

// Embedder turns one chunk of text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator produces a model completion for a prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MetricsInvalidator drops cached metric aggregates for a fund after its
// transactions change.
type MetricsInvalidator interface {
	InvalidateFund(fundID int64)
}

var (
	// ErrNoExtractableText marks a document whose text extraction produced
	// nothing usable. Fatal for that document.
	ErrNoExtractableText = errors.New("document contains no extractable text")
)

// Ingestion outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ParsedCounts reports how many records of each kind were accepted from one
// document.
type ParsedCounts struct {
	CapitalCalls  int `json:"capital_calls"`
	Distributions int `json:"distributions"`
	Adjustments   int `json:"adjustments"`
}

// ProcessResult is the structured outcome of one document ingestion. Callers
// always receive a result value, never a panic: on failure Status is
// "failed" and Error carries the message.
type ProcessResult struct {
	Status     string        `json:"status"`
	DocumentID int64         `json:"document_id"`
	FundID     int64         `json:"fund_id"`
	Parsed     *ParsedCounts `json:"parsed,omitempty"`
	Error      string        `json:"error,omitempty"`
}
