package processors

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/fundsight/backend/src/models"
	"github.com/username/fundsight/backend/src/utils"
)

const ckFundMetrics = "metrics_fund_%d"

// MetricsCalculator computes fund performance metrics (PIC, DPI, IRR, NAV,
// RVPI, TVPI) from persisted transactions. All computation is read-only and
// safe for concurrent callers; aggregate results are cached per fund until
// the next ingestion invalidates them.
type MetricsCalculator struct {
	db        *sql.DB
	assembler *CashFlowAssembler
	cache     *cache.Cache
	log       *slog.Logger
}

func NewMetricsCalculator(db *sql.DB, reportCache *cache.Cache, log *slog.Logger) *MetricsCalculator {
	return &MetricsCalculator{
		db:        db,
		assembler: NewCashFlowAssembler(db, log),
		cache:     reportCache,
		log:       log,
	}
}

// InvalidateFund clears the cached aggregate for a fund. Called after each
// successful ingestion so the next request recomputes from the database.
func (c *MetricsCalculator) InvalidateFund(fundID int64) {
	c.cache.Delete(fmt.Sprintf(ckFundMetrics, fundID))
	c.log.Debug("Invalidated metrics cache", "fundID", fundID)
}

// CalculatePIC computes Paid-In Capital:
// PIC = max(0, total capital calls - total adjustments).
func (c *MetricsCalculator) CalculatePIC(fundID int64) (decimal.Decimal, error) {
	calls, err := c.fetchCapitalCalls(fundID)
	if err != nil {
		return decimal.Zero, err
	}
	adjustments, err := c.fetchAdjustments(fundID)
	if err != nil {
		return decimal.Zero, err
	}

	totalCalls := decimal.Zero
	for _, call := range calls {
		totalCalls = totalCalls.Add(call.Amount)
	}
	totalAdjustments := decimal.Zero
	for _, adj := range adjustments {
		totalAdjustments = totalAdjustments.Add(adj.Amount)
	}

	pic := totalCalls.Sub(totalAdjustments)
	if pic.IsNegative() {
		return decimal.Zero, nil
	}
	return pic, nil
}

// CalculateTotalDistributions sums all distribution amounts, zero if none.
func (c *MetricsCalculator) CalculateTotalDistributions(fundID int64) (decimal.Decimal, error) {
	dists, err := c.fetchDistributions(fundID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, d := range dists {
		total = total.Add(d.Amount)
	}
	return total, nil
}

// CalculateDPI computes Distributions to Paid-In, rounded to 4 decimals.
// Returns 0.0 when PIC is zero rather than dividing by zero.
func (c *MetricsCalculator) CalculateDPI(fundID int64) (float64, error) {
	pic, err := c.CalculatePIC(fundID)
	if err != nil {
		return 0, err
	}
	totalDistributions, err := c.CalculateTotalDistributions(fundID)
	if err != nil {
		return 0, err
	}
	if pic.IsZero() {
		return 0.0, nil
	}
	return utils.RoundFloat(totalDistributions.InexactFloat64()/pic.InexactFloat64(), 4), nil
}

// CalculateNAV sums adjustment rows tagged as NAV entries. Valuation is
// represented as specially tagged adjustment rows rather than a distinct
// entity; see DESIGN.md before changing this.
func (c *MetricsCalculator) CalculateNAV(fundID int64) (decimal.Decimal, error) {
	adjustments, err := c.fetchAdjustments(fundID)
	if err != nil {
		return decimal.Zero, err
	}
	nav := decimal.Zero
	for _, adj := range adjustments {
		if adj.AdjustmentType == models.NAVAdjustmentType {
			nav = nav.Add(adj.Amount)
		}
	}
	return nav, nil
}

// CalculateRVPI computes Residual Value to Paid-In (NAV / PIC), rounded to
// 4 decimals, 0.0 when PIC is zero.
func (c *MetricsCalculator) CalculateRVPI(fundID int64) (float64, error) {
	nav, err := c.CalculateNAV(fundID)
	if err != nil {
		return 0, err
	}
	pic, err := c.CalculatePIC(fundID)
	if err != nil {
		return 0, err
	}
	if pic.IsZero() {
		return 0.0, nil
	}
	return utils.RoundFloat(nav.InexactFloat64()/pic.InexactFloat64(), 4), nil
}

// CalculateTVPI computes Total Value to Paid-In ((distributions + NAV) / PIC),
// rounded to 4 decimals, 0.0 when PIC is zero.
func (c *MetricsCalculator) CalculateTVPI(fundID int64) (float64, error) {
	totalDistributions, err := c.CalculateTotalDistributions(fundID)
	if err != nil {
		return 0, err
	}
	nav, err := c.CalculateNAV(fundID)
	if err != nil {
		return 0, err
	}
	pic, err := c.CalculatePIC(fundID)
	if err != nil {
		return 0, err
	}
	if pic.IsZero() {
		return 0.0, nil
	}
	return utils.RoundFloat(totalDistributions.Add(nav).InexactFloat64()/pic.InexactFloat64(), 4), nil
}

// CalculateIRR builds the fund's signed cash-flow series and solves for the
// internal rate of return as a percentage rounded to 2 decimals. Returns nil
// when fewer than 2 cash flows exist or the solver yields no defined rate.
// Never panics past this boundary.
func (c *MetricsCalculator) CalculateIRR(fundID int64) (irr *float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered from panic in IRR calculation", "fundID", fundID, "panic", r)
			irr, err = nil, nil
		}
	}()

	flows, err := c.assembler.Assemble(fundID)
	if err != nil {
		return nil, err
	}
	if len(flows) < 2 {
		return nil, nil
	}

	amounts := make([]float64, len(flows))
	for i, f := range flows {
		amounts[i] = f.Amount
	}

	rate, ok := InternalRateOfReturn(amounts)
	if !ok {
		return nil, nil
	}
	pct := utils.RoundFloat(rate*100, 2)
	return &pct, nil
}

// CalculateAllMetrics computes the full aggregate for a fund. Each metric is
// computed independently: a failure in one logs and reports 0 for that
// metric without aborting its siblings. Results are cached per fund.
func (c *MetricsCalculator) CalculateAllMetrics(fundID int64) models.FundMetrics {
	cacheKey := fmt.Sprintf(ckFundMetrics, fundID)
	if cached, found := c.cache.Get(cacheKey); found {
		c.log.Debug("Cache hit for fund metrics", "fundID", fundID)
		return cached.(models.FundMetrics)
	}

	metrics := models.FundMetrics{
		PIC:                c.decimalOrZero("pic", fundID, c.CalculatePIC),
		TotalDistributions: c.decimalOrZero("total_distributions", fundID, c.CalculateTotalDistributions),
		DPI:                c.floatOrZero("dpi", fundID, c.CalculateDPI),
		NAV:                c.decimalOrZero("nav", fundID, c.CalculateNAV),
		RVPI:               c.floatOrZero("rvpi", fundID, c.CalculateRVPI),
		TVPI:               c.floatOrZero("tvpi", fundID, c.CalculateTVPI),
	}
	if irr, err := c.CalculateIRR(fundID); err != nil {
		c.log.Error("Error calculating irr", "fundID", fundID, "error", err)
	} else if irr != nil {
		metrics.IRR = *irr
	}

	c.cache.Set(cacheKey, metrics, cache.DefaultExpiration)
	return metrics
}

func (c *MetricsCalculator) decimalOrZero(name string, fundID int64, calc func(int64) (decimal.Decimal, error)) float64 {
	v, err := calc(fundID)
	if err != nil {
		c.log.Error("Error calculating "+name, "fundID", fundID, "error", err)
		return 0
	}
	return v.InexactFloat64()
}

func (c *MetricsCalculator) floatOrZero(name string, fundID int64, calc func(int64) (float64, error)) float64 {
	v, err := calc(fundID)
	if err != nil {
		c.log.Error("Error calculating "+name, "fundID", fundID, "error", err)
		return 0
	}
	return v
}

// The optional text columns are nullable in the schema; COALESCE keeps rows
// without a type or description scannable.
func (c *MetricsCalculator) fetchCapitalCalls(fundID int64) ([]models.CapitalCall, error) {
	rows, err := c.db.Query(`SELECT id, fund_id, call_date, COALESCE(call_type, ''), amount, COALESCE(description, '') FROM capital_calls WHERE fund_id = ? ORDER BY call_date ASC, id ASC`, fundID)
	if err != nil {
		return nil, fmt.Errorf("querying capital calls for fund %d: %w", fundID, err)
	}
	defer rows.Close()

	var calls []models.CapitalCall
	for rows.Next() {
		var call models.CapitalCall
		var dateStr string
		if err := rows.Scan(&call.ID, &call.FundID, &dateStr, &call.CallType, &call.Amount, &call.Description); err != nil {
			return nil, fmt.Errorf("scanning capital call row: %w", err)
		}
		if call.CallDate, err = parseStoredDate(dateStr); err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

func (c *MetricsCalculator) fetchDistributions(fundID int64) ([]models.Distribution, error) {
	rows, err := c.db.Query(`SELECT id, fund_id, distribution_date, COALESCE(distribution_type, ''), amount, COALESCE(is_recallable, 0), COALESCE(description, '') FROM distributions WHERE fund_id = ? ORDER BY distribution_date ASC, id ASC`, fundID)
	if err != nil {
		return nil, fmt.Errorf("querying distributions for fund %d: %w", fundID, err)
	}
	defer rows.Close()

	var dists []models.Distribution
	for rows.Next() {
		var dist models.Distribution
		var dateStr string
		if err := rows.Scan(&dist.ID, &dist.FundID, &dateStr, &dist.DistributionType, &dist.Amount, &dist.IsRecallable, &dist.Description); err != nil {
			return nil, fmt.Errorf("scanning distribution row: %w", err)
		}
		if dist.DistributionDate, err = parseStoredDate(dateStr); err != nil {
			return nil, err
		}
		dists = append(dists, dist)
	}
	return dists, rows.Err()
}

func (c *MetricsCalculator) fetchAdjustments(fundID int64) ([]models.Adjustment, error) {
	rows, err := c.db.Query(`SELECT id, fund_id, adjustment_date, COALESCE(adjustment_type, ''), amount, COALESCE(description, '') FROM adjustments WHERE fund_id = ? ORDER BY adjustment_date ASC, id ASC`, fundID)
	if err != nil {
		return nil, fmt.Errorf("querying adjustments for fund %d: %w", fundID, err)
	}
	defer rows.Close()

	var adjs []models.Adjustment
	for rows.Next() {
		var adj models.Adjustment
		var dateStr string
		if err := rows.Scan(&adj.ID, &adj.FundID, &dateStr, &adj.AdjustmentType, &adj.Amount, &adj.Description); err != nil {
			return nil, fmt.Errorf("scanning adjustment row: %w", err)
		}
		if adj.AdjustmentDate, err = parseStoredDate(dateStr); err != nil {
			return nil, err
		}
		adjs = append(adjs, adj)
	}
	return adjs, rows.Err()
}
