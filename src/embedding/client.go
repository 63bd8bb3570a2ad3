package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// Client wraps the Gemini API for the two generative concerns this service
// has: embedding document chunks and answering retrieval-augmented queries.
// The API key is read by the genai client from the environment
// (GEMINI_API_KEY / GOOGLE_API_KEY).
type Client struct {
	client         *genai.Client
	embeddingModel string
	answerModel    string
	log            *slog.Logger
}

func NewClient(ctx context.Context, embeddingModel, answerModel string, log *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{
		client:         client,
		embeddingModel: embeddingModel,
		answerModel:    answerModel,
		log:            log,
	}, nil
}

// Embed returns the embedding vector for one chunk of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned for chunk (%d chars)", len(text))
	}
	return resp.Embeddings[0].Values, nil
}

// Generate produces a model completion for the given prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.answerModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from model %s", c.answerModel)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
