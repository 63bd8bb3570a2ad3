package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fundsight/backend/src/database"
	"github.com/username/fundsight/backend/src/processors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func metricsTestServer(t *testing.T) (*http.ServeMux, *sql.DB) {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	calculator := processors.NewMetricsCalculator(db, cache.New(time.Minute, time.Minute), testLogger())
	handler := NewMetricsHandler(calculator, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/funds/{id}/metrics", handler.HandleGetFundMetrics)
	mux.HandleFunc("GET /api/funds/{id}/metrics/{metric}/breakdown", handler.HandleGetCalculationBreakdown)
	return mux, db
}

func seedFund(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO funds (name, gp_name) VALUES ('Fund', 'GP')`)
	require.NoError(t, err)
	fundID, err := res.LastInsertId()
	require.NoError(t, err)
	// type and description stay NULL, as rows written by external tooling do
	_, err = db.Exec(`INSERT INTO capital_calls (fund_id, call_date, amount) VALUES (?, '2020-01-01', 100000)`, fundID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO distributions (fund_id, distribution_date, amount) VALUES (?, '2021-01-01', 50000)`, fundID)
	require.NoError(t, err)
	return fundID
}

func TestHandleGetFundMetrics(t *testing.T) {
	mux, db := metricsTestServer(t)
	fundID := seedFund(t, db)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/funds/"+itoa(fundID)+"/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 100000.0, body["pic"])
	assert.Equal(t, 50000.0, body["total_distributions"])
	assert.Equal(t, 0.5, body["dpi"])
}

func TestHandleGetFundMetricsBadID(t *testing.T) {
	mux, _ := metricsTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/funds/abc/metrics", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetCalculationBreakdown(t *testing.T) {
	mux, db := metricsTestServer(t)
	fundID := seedFund(t, db)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/funds/"+itoa(fundID)+"/metrics/dpi/breakdown", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DPI", body["metric"])
	assert.Equal(t, 0.5, body["result"])
}

func TestHandleGetCalculationBreakdownUnknownMetric(t *testing.T) {
	mux, db := metricsTestServer(t)
	fundID := seedFund(t, db)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/funds/"+itoa(fundID)+"/metrics/sharpe/breakdown", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unknown metric", body["error"])
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
