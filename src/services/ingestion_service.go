package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/username/fundsight/backend/src/models"
	"github.com/username/fundsight/backend/src/parsers"
)

const storedDateLayout = "2006-01-02"

// IngestionService runs the document pipeline: text extraction, chunk
// embedding, fund identity extraction, transaction grammar matching and
// persistence. All writes for one document happen in one transaction; a
// failure at any step rolls back every write so no partial rows survive,
// even though individual malformed records inside the document may have
// been silently skipped by the grammar.
type IngestionService struct {
	db           *sql.DB
	extractor    TextExtractor
	embedder     Embedder
	identity     *parsers.FundIdentityExtractor
	grammar      *parsers.TransactionGrammar
	invalidator  MetricsInvalidator
	chunkSize    int
	chunkOverlap int
	log          *slog.Logger
}

func NewIngestionService(
	db *sql.DB,
	extractor TextExtractor,
	embedder Embedder,
	identity *parsers.FundIdentityExtractor,
	grammar *parsers.TransactionGrammar,
	invalidator MetricsInvalidator,
	chunkSize, chunkOverlap int,
	log *slog.Logger,
) *IngestionService {
	return &IngestionService{
		db:           db,
		extractor:    extractor,
		embedder:     embedder,
		identity:     identity,
		grammar:      grammar,
		invalidator:  invalidator,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		log:          log,
	}
}

// ProcessDocument ingests one document end to end and always returns a
// structured result. No automatic retry happens here; a failed document is
// fully rolled back and retry policy belongs to the caller.
func (s *IngestionService) ProcessDocument(ctx context.Context, filePath string, documentID, fundID int64) *ProcessResult {
	startTime := time.Now()
	s.log.Info("ProcessDocument START", "documentID", documentID, "fundID", fundID, "path", filePath)

	result, err := s.processDocument(ctx, filePath, documentID, fundID)
	if err != nil {
		s.log.Error("Document processing failed", "documentID", documentID, "error", err)
		return &ProcessResult{Status: StatusFailed, DocumentID: documentID, Error: err.Error()}
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateFund(result.FundID)
	}
	s.log.Info("ProcessDocument END", "documentID", documentID, "fundID", result.FundID, "duration", time.Since(startTime))
	return result
}

func (s *IngestionService) processDocument(ctx context.Context, filePath string, documentID, fundID int64) (*ProcessResult, error) {
	text, err := s.extractor.ExtractText(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoExtractableText
	}
	s.log.Info("Extracted document text", "documentID", documentID, "chars", len(text))

	// Embedding calls are independent and issued concurrently before the
	// transaction opens; only their persistence happens inside it.
	chunks := parsers.ChunkText(text, s.chunkSize, s.chunkOverlap)
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.log.Info("Embedded document chunks", "documentID", documentID, "chunks", len(chunks))

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := s.insertEmbeddings(dbTx, documentID, fundID, chunks, vectors); err != nil {
		return nil, err
	}

	fundID, err = s.upsertFund(dbTx, documentID, fundID, text)
	if err != nil {
		return nil, err
	}

	counts, err := s.insertTransactions(dbTx, fundID, text)
	if err != nil {
		return nil, err
	}

	if _, err := dbTx.Exec(`UPDATE documents SET status = 'processed' WHERE id = ?`, documentID); err != nil {
		return nil, fmt.Errorf("updating document status: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing document transaction: %w", err)
	}

	return &ProcessResult{
		Status:     StatusSuccess,
		DocumentID: documentID,
		FundID:     fundID,
		Parsed:     counts,
	}, nil
}

// embedChunks fans the embedding calls out and waits for all of them; the
// first failure fails the whole document.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			vectors[i], errs[i] = s.embedder.Embed(ctx, chunk)
		}(i, chunk)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
	}
	return vectors, nil
}

func (s *IngestionService) insertEmbeddings(dbTx *sql.Tx, documentID, fundID int64, chunks []string, vectors [][]float32) error {
	stmt, err := dbTx.Prepare(`INSERT INTO document_embeddings (document_id, fund_id, content, embedding, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing embedding insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		encoded, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("encoding embedding %d: %w", i, err)
		}
		if _, err := stmt.Exec(documentID, fundID, chunk, string(encoded), time.Now()); err != nil {
			return fmt.Errorf("inserting embedding %d: %w", i, err)
		}
	}
	return nil
}

// upsertFund updates the identity of an existing fund row, or inserts a new
// fund and rebinds the document to the new id. Concurrent ingestions for the
// same fund are serialized by sqlite's transaction isolation, not here.
func (s *IngestionService) upsertFund(dbTx *sql.Tx, documentID, fundID int64, text string) (int64, error) {
	info := s.identity.Parse(text)
	s.log.Info("Parsed fund info", "name", info.Name, "gp", info.GPName, "vintageYear", info.VintageYear)

	var vintage interface{}
	if info.VintageYear != nil {
		vintage = *info.VintageYear
	}

	var existingID int64
	err := dbTx.QueryRow(`SELECT id FROM funds WHERE id = ?`, fundID).Scan(&existingID)
	switch {
	case err == nil:
		if _, err := dbTx.Exec(`UPDATE funds SET name = ?, gp_name = ?, vintage_year = ? WHERE id = ?`,
			info.Name, info.GPName, vintage, fundID); err != nil {
			return 0, fmt.Errorf("updating fund %d: %w", fundID, err)
		}
		return fundID, nil
	case err == sql.ErrNoRows:
		res, err := dbTx.Exec(`INSERT INTO funds (name, gp_name, vintage_year, fund_type, created_at) VALUES (?, ?, ?, ?, ?)`,
			info.Name, info.GPName, vintage, models.DefaultFundType, time.Now())
		if err != nil {
			return 0, fmt.Errorf("inserting fund: %w", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading new fund id: %w", err)
		}
		s.log.Info("Created new fund", "fundID", newID)

		if _, err := dbTx.Exec(`UPDATE documents SET fund_id = ? WHERE id = ?`, newID, documentID); err != nil {
			return 0, fmt.Errorf("rebinding document %d to fund %d: %w", documentID, newID, err)
		}
		return newID, nil
	default:
		return 0, fmt.Errorf("checking fund %d: %w", fundID, err)
	}
}

func (s *IngestionService) insertTransactions(dbTx *sql.Tx, fundID int64, text string) (*ParsedCounts, error) {
	calls, callStats := s.grammar.ParseCapitalCalls(text)
	s.log.Info("Parsed capital calls", "seen", callStats.Seen, "accepted", callStats.Accepted)
	for _, call := range calls {
		if _, err := dbTx.Exec(
			`INSERT INTO capital_calls (fund_id, call_date, call_type, amount, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			fundID, call.CallDate.Format(storedDateLayout), call.CallType, call.Amount, call.Description, time.Now(),
		); err != nil {
			return nil, fmt.Errorf("inserting capital call: %w", err)
		}
	}

	dists, distStats := s.grammar.ParseDistributions(text)
	s.log.Info("Parsed distributions", "seen", distStats.Seen, "accepted", distStats.Accepted)
	for _, dist := range dists {
		if _, err := dbTx.Exec(
			`INSERT INTO distributions (fund_id, distribution_date, distribution_type, amount, is_recallable, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fundID, dist.DistributionDate.Format(storedDateLayout), dist.DistributionType, dist.Amount, dist.IsRecallable, dist.Description, time.Now(),
		); err != nil {
			return nil, fmt.Errorf("inserting distribution: %w", err)
		}
	}

	adjs, adjStats := s.grammar.ParseAdjustments(text)
	s.log.Info("Parsed adjustments", "seen", adjStats.Seen, "accepted", adjStats.Accepted)
	for _, adj := range adjs {
		if _, err := dbTx.Exec(
			`INSERT INTO adjustments (fund_id, adjustment_date, adjustment_type, amount, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			fundID, adj.AdjustmentDate.Format(storedDateLayout), adj.AdjustmentType, adj.Amount, adj.Description, time.Now(),
		); err != nil {
			return nil, fmt.Errorf("inserting adjustment: %w", err)
		}
	}

	return &ParsedCounts{
		CapitalCalls:  len(calls),
		Distributions: len(dists),
		Adjustments:   len(adjs),
	}, nil
}
