package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fundsight/backend/src/database"
	"github.com/username/fundsight/backend/src/parsers"
)

const pipelineStatement = `Quarterly Capital Account Statement
Fund Name: Growth Fund III
GP: Acme Capital Partners
Vintage Year: 2019

Capital Calls
2023-01-15 Call 1 $50,000.00 Initial drawdown
2023-06-10 Call 2 $30,000 Follow-on investment

Distributions
2023-09-01 Return of Capital $20,000.00 No Exit proceeds
2023-12-15 Dividend $5,000 Yes Interim dividend

Adjustments
2023-12-31 NAV_ADJUSTMENT 95,000.00 Year end valuation

Performance Summary
Net asset value as reported by the GP`

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

// fakeEmbedder returns a fixed vector, or an unencodable NaN vector for
// chunks containing badSubstring.
type fakeEmbedder struct {
	badSubstring string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.badSubstring != "" && strings.Contains(text, f.badSubstring) {
		return []float32{float32(math.NaN())}, nil
	}
	return []float32{1, 0, 0}, nil
}

type fakeInvalidator struct {
	invalidated []int64
}

func (f *fakeInvalidator) InvalidateFund(fundID int64) {
	f.invalidated = append(f.invalidated, fundID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T, db *sql.DB, extractor TextExtractor, embedder Embedder, invalidator MetricsInvalidator) *IngestionService {
	t.Helper()
	log := testLogger()
	fields := parsers.NewFieldExtractor(log)
	return NewIngestionService(
		db, extractor, embedder,
		parsers.NewFundIdentityExtractor(log),
		parsers.NewTransactionGrammar(fields, log),
		invalidator,
		500, 50,
		log,
	)
}

func insertDocument(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO documents (file_name, status) VALUES ('statement.pdf', 'pending')`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestProcessDocumentIngestsStatement(t *testing.T) {
	db := testDB(t)
	invalidator := &fakeInvalidator{}
	svc := newTestService(t, db, &fakeExtractor{text: pipelineStatement}, &fakeEmbedder{}, invalidator)
	documentID := insertDocument(t, db)

	result := svc.ProcessDocument(context.Background(), "statement.pdf", documentID, 0)
	require.Equal(t, StatusSuccess, result.Status)
	require.NotZero(t, result.FundID)
	require.NotNil(t, result.Parsed)
	assert.Equal(t, 2, result.Parsed.CapitalCalls)
	assert.Equal(t, 2, result.Parsed.Distributions)
	assert.Equal(t, 1, result.Parsed.Adjustments)

	var name, gp string
	var vintage int
	require.NoError(t, db.QueryRow(`SELECT name, gp_name, vintage_year FROM funds WHERE id = ?`, result.FundID).Scan(&name, &gp, &vintage))
	assert.Equal(t, "Growth Fund III", name)
	assert.Equal(t, "Acme Capital Partners", gp)
	assert.Equal(t, 2019, vintage)

	// the document was rebound to the new fund and marked processed
	var docFund int64
	var status string
	require.NoError(t, db.QueryRow(`SELECT fund_id, status FROM documents WHERE id = ?`, documentID).Scan(&docFund, &status))
	assert.Equal(t, result.FundID, docFund)
	assert.Equal(t, "processed", status)

	assert.Equal(t, 2, countRows(t, db, "capital_calls"))
	assert.Equal(t, 2, countRows(t, db, "distributions"))
	assert.Equal(t, 1, countRows(t, db, "adjustments"))
	// one embedding row per chunk
	assert.Equal(t, len(parsers.ChunkText(pipelineStatement, 500, 50)), countRows(t, db, "document_embeddings"))

	assert.Equal(t, []int64{result.FundID}, invalidator.invalidated)
}

func TestProcessDocumentRollsBackOnFailure(t *testing.T) {
	db := testDB(t)
	invalidator := &fakeInvalidator{}

	// pad the statement so it splits into two chunks and place the marker
	// past the first chunk boundary; the second chunk's NaN vector fails
	// JSON encoding after the first embedding row was already written
	text := pipelineStatement + strings.Repeat(" .", (520-len(pipelineStatement))/2) + " UNENCODABLE"
	require.Greater(t, len(text), 500)

	svc := newTestService(t, db, &fakeExtractor{text: text}, &fakeEmbedder{badSubstring: "UNENCODABLE"}, invalidator)
	documentID := insertDocument(t, db)

	result := svc.ProcessDocument(context.Background(), "statement.pdf", documentID, 0)
	require.Equal(t, StatusFailed, result.Status)
	assert.NotEmpty(t, result.Error)

	assert.Zero(t, countRows(t, db, "document_embeddings"))
	assert.Zero(t, countRows(t, db, "funds"))
	assert.Zero(t, countRows(t, db, "capital_calls"))
	assert.Zero(t, countRows(t, db, "distributions"))
	assert.Zero(t, countRows(t, db, "adjustments"))

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM documents WHERE id = ?`, documentID).Scan(&status))
	assert.Equal(t, "pending", status)

	assert.Empty(t, invalidator.invalidated)
}

func TestProcessDocumentNoExtractableText(t *testing.T) {
	db := testDB(t)
	svc := newTestService(t, db, &fakeExtractor{text: "   \n\t "}, &fakeEmbedder{}, &fakeInvalidator{})
	documentID := insertDocument(t, db)

	result := svc.ProcessDocument(context.Background(), "blank.pdf", documentID, 0)
	require.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "no extractable text")
	assert.Zero(t, countRows(t, db, "funds"))
}

func TestProcessDocumentUpdatesExistingFund(t *testing.T) {
	db := testDB(t)
	res, err := db.Exec(`INSERT INTO funds (name, gp_name) VALUES ('Placeholder', 'Placeholder GP')`)
	require.NoError(t, err)
	fundID, err := res.LastInsertId()
	require.NoError(t, err)

	svc := newTestService(t, db, &fakeExtractor{text: pipelineStatement}, &fakeEmbedder{}, &fakeInvalidator{})
	documentID := insertDocument(t, db)

	result := svc.ProcessDocument(context.Background(), "statement.pdf", documentID, fundID)
	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, fundID, result.FundID)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM funds WHERE id = ?`, fundID).Scan(&name))
	assert.Equal(t, "Growth Fund III", name)
	assert.Equal(t, 1, countRows(t, db, "funds"))
}

func TestProcessDocumentExtractionError(t *testing.T) {
	db := testDB(t)
	svc := newTestService(t, db, &fakeExtractor{err: assert.AnError}, &fakeEmbedder{}, &fakeInvalidator{})

	result := svc.ProcessDocument(context.Background(), "missing.pdf", insertDocument(t, db), 0)
	require.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "extracting text")
}
