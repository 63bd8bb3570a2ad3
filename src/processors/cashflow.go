package processors

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/username/fundsight/backend/src/models"
)

const dateLayout = "2006-01-02"

func parseStoredDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}

// CashFlowAssembler merges a fund's capital calls (negated) and
// distributions (as-is) into one chronologically ordered signed series for
// the IRR solver. On equal dates capital calls sort before distributions so
// the series is deterministic.
type CashFlowAssembler struct {
	db  *sql.DB
	log *slog.Logger
}

func NewCashFlowAssembler(db *sql.DB, log *slog.Logger) *CashFlowAssembler {
	return &CashFlowAssembler{db: db, log: log}
}

func (a *CashFlowAssembler) Assemble(fundID int64) ([]models.CashFlowEntry, error) {
	var flows []models.CashFlowEntry

	calls, err := a.queryFlows("SELECT call_date, amount FROM capital_calls WHERE fund_id = ? ORDER BY call_date ASC", fundID)
	if err != nil {
		return nil, fmt.Errorf("loading capital calls for fund %d: %w", fundID, err)
	}
	for _, f := range calls {
		flows = append(flows, models.CashFlowEntry{Date: f.Date, Amount: -f.Amount, Type: models.CashFlowCapitalCall})
	}

	dists, err := a.queryFlows("SELECT distribution_date, amount FROM distributions WHERE fund_id = ? ORDER BY distribution_date ASC", fundID)
	if err != nil {
		return nil, fmt.Errorf("loading distributions for fund %d: %w", fundID, err)
	}
	for _, f := range dists {
		flows = append(flows, models.CashFlowEntry{Date: f.Date, Amount: f.Amount, Type: models.CashFlowDistribution})
	}

	sort.SliceStable(flows, func(i, j int) bool {
		if flows[i].Date.Equal(flows[j].Date) {
			return flows[i].Type == models.CashFlowCapitalCall && flows[j].Type == models.CashFlowDistribution
		}
		return flows[i].Date.Before(flows[j].Date)
	})

	a.log.Debug("Assembled cash flow series", "fundID", fundID, "entries", len(flows))
	return flows, nil
}

type dateAmount struct {
	Date   time.Time
	Amount float64
}

func (a *CashFlowAssembler) queryFlows(query string, fundID int64) ([]dateAmount, error) {
	rows, err := a.db.Query(query, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []dateAmount
	for rows.Next() {
		var dateStr string
		var amount float64
		if err := rows.Scan(&dateStr, &amount); err != nil {
			return nil, err
		}
		date, err := parseStoredDate(dateStr)
		if err != nil {
			return nil, err
		}
		result = append(result, dateAmount{Date: date, Amount: amount})
	}
	return result, rows.Err()
}
