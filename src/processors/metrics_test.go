package processors

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fundsight/backend/src/database"
	"github.com/username/fundsight/backend/src/models"
)

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

func newTestCalculator(t *testing.T) (*MetricsCalculator, *sql.DB) {
	t.Helper()
	db := testDB(t)
	return NewMetricsCalculator(db, cache.New(time.Minute, time.Minute), testLogger()), db
}

func insertFund(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO funds (name, gp_name) VALUES (?, ?)`, name, "Test GP")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertCall(t *testing.T, db *sql.DB, fundID int64, date string, amount float64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO capital_calls (fund_id, call_date, call_type, amount, description) VALUES (?, ?, 'Call 1', ?, 'test call')`, fundID, date, amount)
	require.NoError(t, err)
}

func insertDistribution(t *testing.T, db *sql.DB, fundID int64, date string, amount float64, recallable bool) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO distributions (fund_id, distribution_date, distribution_type, amount, is_recallable, description) VALUES (?, ?, 'Return of Capital', ?, ?, 'test distribution')`, fundID, date, amount, recallable)
	require.NoError(t, err)
}

func insertAdjustment(t *testing.T, db *sql.DB, fundID int64, date, adjType string, amount float64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO adjustments (fund_id, adjustment_date, adjustment_type, amount, description) VALUES (?, ?, ?, ?, 'test adjustment')`, fundID, date, adjType, amount)
	require.NoError(t, err)
}

func TestCalculatePIC(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund A")
	insertCall(t, db, fundID, "2022-01-15", 50000)
	insertCall(t, db, fundID, "2022-06-15", 50000)
	insertAdjustment(t, db, fundID, "2022-09-01", "Fee Rebate", 20000)

	pic, err := calc.CalculatePIC(fundID)
	require.NoError(t, err)
	assert.Equal(t, "80000", pic.String())
}

func TestMetricsTolerateNullOptionalColumns(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund Sparse")

	// rows inserted without type/description leave those columns NULL
	_, err := db.Exec(`INSERT INTO capital_calls (fund_id, call_date, amount) VALUES (?, '2020-01-01', 100000)`, fundID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO distributions (fund_id, distribution_date, amount) VALUES (?, '2021-01-01', 50000)`, fundID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO adjustments (fund_id, adjustment_date, amount) VALUES (?, '2021-06-01', 10000)`, fundID)
	require.NoError(t, err)

	pic, err := calc.CalculatePIC(fundID)
	require.NoError(t, err)
	assert.Equal(t, "90000", pic.String())

	dists, err := calc.CalculateTotalDistributions(fundID)
	require.NoError(t, err)
	assert.Equal(t, "50000", dists.String())

	nav, err := calc.CalculateNAV(fundID)
	require.NoError(t, err)
	assert.True(t, nav.IsZero())

	breakdown, ok := calc.GetCalculationBreakdown(fundID, models.MetricPIC).(models.PICBreakdown)
	require.True(t, ok)
	require.Len(t, breakdown.Transactions.CapitalCalls, 1)
	assert.Empty(t, breakdown.Transactions.CapitalCalls[0].Description)
}

func TestCalculatePICFloorsAtZero(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund B")
	insertCall(t, db, fundID, "2022-01-15", 1000)
	insertAdjustment(t, db, fundID, "2022-02-01", "Correction", 5000)
	insertDistribution(t, db, fundID, "2022-06-01", 500, false)

	pic, err := calc.CalculatePIC(fundID)
	require.NoError(t, err)
	assert.True(t, pic.IsZero())

	// distributions exist but PIC is zero, so the ratio stays 0 instead of
	// dividing by zero
	dpi, err := calc.CalculateDPI(fundID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dpi)
}

func TestCalculateNAVSumsTaggedRows(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund C")
	insertAdjustment(t, db, fundID, "2022-12-31", models.NAVAdjustmentType, 90000)
	insertAdjustment(t, db, fundID, "2023-12-31", models.NAVAdjustmentType, 5000)
	insertAdjustment(t, db, fundID, "2023-06-30", "Rebalance", 1000)

	nav, err := calc.CalculateNAV(fundID)
	require.NoError(t, err)
	assert.Equal(t, "95000", nav.String())
}

func TestCalculateRatios(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund D")
	insertCall(t, db, fundID, "2020-01-01", 100000)
	insertDistribution(t, db, fundID, "2022-06-01", 60000, false)
	insertAdjustment(t, db, fundID, "2022-12-31", models.NAVAdjustmentType, 50000)

	// the NAV row is still an adjustment, so PIC = 100000 - 50000
	dpi, err := calc.CalculateDPI(fundID)
	require.NoError(t, err)
	assert.Equal(t, 1.2, dpi)

	rvpi, err := calc.CalculateRVPI(fundID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rvpi)

	tvpi, err := calc.CalculateTVPI(fundID)
	require.NoError(t, err)
	assert.Equal(t, 2.2, tvpi)
}

func TestCalculateIRRFromStoredFlows(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund E")
	insertCall(t, db, fundID, "2020-01-01", 100000)
	insertDistribution(t, db, fundID, "2021-01-01", 60000, false)
	insertDistribution(t, db, fundID, "2022-01-01", 60000, false)

	irr, err := calc.CalculateIRR(fundID)
	require.NoError(t, err)
	require.NotNil(t, irr)
	assert.InDelta(t, 13.07, *irr, 0.1)
}

func TestCalculateIRRUndefined(t *testing.T) {
	calc, db := newTestCalculator(t)

	onlyCalls := insertFund(t, db, "Fund F")
	insertCall(t, db, onlyCalls, "2020-01-01", 100000)
	insertCall(t, db, onlyCalls, "2021-01-01", 50000)
	irr, err := calc.CalculateIRR(onlyCalls)
	require.NoError(t, err)
	assert.Nil(t, irr)

	single := insertFund(t, db, "Fund G")
	insertCall(t, db, single, "2020-01-01", 100000)
	irr, err = calc.CalculateIRR(single)
	require.NoError(t, err)
	assert.Nil(t, irr)
}

func TestCashFlowAssemblerOrdersAndSigns(t *testing.T) {
	db := testDB(t)
	fundID := insertFund(t, db, "Fund H")
	insertDistribution(t, db, fundID, "2021-03-01", 30000, false)
	insertCall(t, db, fundID, "2021-03-01", 20000)
	insertCall(t, db, fundID, "2020-01-01", 100000)

	assembler := NewCashFlowAssembler(db, testLogger())
	flows, err := assembler.Assemble(fundID)
	require.NoError(t, err)
	require.Len(t, flows, 3)

	assert.Equal(t, -100000.0, flows[0].Amount)
	assert.Equal(t, models.CashFlowCapitalCall, flows[0].Type)

	// the same-date pair keeps the call before the distribution
	assert.Equal(t, -20000.0, flows[1].Amount)
	assert.Equal(t, models.CashFlowCapitalCall, flows[1].Type)
	assert.Equal(t, 30000.0, flows[2].Amount)
	assert.Equal(t, models.CashFlowDistribution, flows[2].Type)
}

func TestCalculateAllMetricsCachedUntilInvalidated(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund I")
	insertCall(t, db, fundID, "2020-01-01", 100000)
	insertDistribution(t, db, fundID, "2021-01-01", 60000, false)

	first := calc.CalculateAllMetrics(fundID)
	assert.Equal(t, 100000.0, first.PIC)
	assert.Equal(t, 60000.0, first.TotalDistributions)

	insertDistribution(t, db, fundID, "2022-01-01", 60000, false)
	cached := calc.CalculateAllMetrics(fundID)
	assert.Equal(t, first, cached)

	calc.InvalidateFund(fundID)
	fresh := calc.CalculateAllMetrics(fundID)
	assert.Equal(t, 120000.0, fresh.TotalDistributions)
}

func TestCalculateAllMetricsEmptyFund(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund J")

	metrics := calc.CalculateAllMetrics(fundID)
	assert.Zero(t, metrics.PIC)
	assert.Zero(t, metrics.DPI)
	assert.Zero(t, metrics.IRR)
	assert.Zero(t, metrics.NAV)
}

func TestGetCalculationBreakdownPIC(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund K")
	insertCall(t, db, fundID, "2022-01-15", 50000)
	insertCall(t, db, fundID, "2022-06-15", 50000)
	insertAdjustment(t, db, fundID, "2022-09-01", "Fee Rebate", 20000)

	breakdown, ok := calc.GetCalculationBreakdown(fundID, models.MetricPIC).(models.PICBreakdown)
	require.True(t, ok)
	assert.Equal(t, "PIC", breakdown.Metric)
	assert.Equal(t, 100000.0, breakdown.TotalCalls)
	assert.Equal(t, 20000.0, breakdown.TotalAdjustments)
	assert.Equal(t, 80000.0, breakdown.Result)
	assert.Len(t, breakdown.Transactions.CapitalCalls, 2)
	assert.Len(t, breakdown.Transactions.Adjustments, 1)
}

func TestGetCalculationBreakdownDPI(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund L")
	insertCall(t, db, fundID, "2020-01-01", 100000)
	insertDistribution(t, db, fundID, "2021-06-01", 50000, true)

	breakdown, ok := calc.GetCalculationBreakdown(fundID, models.MetricDPI).(models.DPIBreakdown)
	require.True(t, ok)
	assert.Equal(t, 0.5, breakdown.Result)
	require.Len(t, breakdown.Transactions.Distributions, 1)
	require.NotNil(t, breakdown.Transactions.Distributions[0].IsRecallable)
	assert.True(t, *breakdown.Transactions.Distributions[0].IsRecallable)
}

func TestGetCalculationBreakdownIRR(t *testing.T) {
	calc, db := newTestCalculator(t)
	fundID := insertFund(t, db, "Fund M")
	insertCall(t, db, fundID, "2020-01-01", 100000)
	insertDistribution(t, db, fundID, "2021-01-01", 60000, false)
	insertDistribution(t, db, fundID, "2022-01-01", 60000, false)

	breakdown, ok := calc.GetCalculationBreakdown(fundID, models.MetricIRR).(models.IRRBreakdown)
	require.True(t, ok)
	require.Len(t, breakdown.CashFlows, 3)
	assert.Equal(t, -100000.0, breakdown.CashFlowSummary.TotalOutflows)
	assert.Equal(t, 120000.0, breakdown.CashFlowSummary.TotalInflows)
	assert.Equal(t, 20000.0, breakdown.CashFlowSummary.NetCashFlow)
	require.NotNil(t, breakdown.Result)
	assert.InDelta(t, 13.07, *breakdown.Result, 0.1)
}

func TestGetCalculationBreakdownUnknownMetric(t *testing.T) {
	calc, _ := newTestCalculator(t)

	breakdown := calc.GetCalculationBreakdown(1, "sharpe")
	bErr, ok := breakdown.(models.BreakdownError)
	require.True(t, ok)
	assert.Equal(t, "Unknown metric", bErr.Error)
}
