package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of PDF statements.
type Extractor struct {
	log *slog.Logger
}

func NewExtractor(log *slog.Logger) *Extractor {
	return &Extractor{log: log}
}

// ExtractText returns the full plain text of the PDF at filePath. An
// unreadable file is an error; a readable file with no text is not — the
// ingestion pipeline decides whether empty text is fatal.
func (e *Extractor) ExtractText(ctx context.Context, filePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", filePath, err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", filePath, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("reading extracted text from %s: %w", filePath, err)
	}

	text := buf.String()
	e.log.Info("Extracted text from PDF", "path", filePath, "pages", reader.NumPage(), "chars", len(text))
	if strings.TrimSpace(text) == "" {
		e.log.Warn("PDF produced no extractable text", "path", filePath)
	}
	return text, nil
}
