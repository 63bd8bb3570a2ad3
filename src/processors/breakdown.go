package processors

import (
	"fmt"

	"github.com/username/fundsight/backend/src/models"
)

// GetCalculationBreakdown returns a structured explanation of how a metric
// was computed: formula, intermediate values, the literal transaction rows
// that fed the computation, and the result. An unknown metric name yields a
// BreakdownError value, never an error return.
func (c *MetricsCalculator) GetCalculationBreakdown(fundID int64, metric string) interface{} {
	switch metric {
	case models.MetricDPI:
		return c.dpiBreakdown(fundID)
	case models.MetricIRR:
		return c.irrBreakdown(fundID)
	case models.MetricPIC:
		return c.picBreakdown(fundID)
	default:
		return models.BreakdownError{Error: "Unknown metric"}
	}
}

func (c *MetricsCalculator) dpiBreakdown(fundID int64) models.DPIBreakdown {
	pic := c.decimalOrZero("pic", fundID, c.CalculatePIC)
	totalDistributions := c.decimalOrZero("total_distributions", fundID, c.CalculateTotalDistributions)
	dpi := c.floatOrZero("dpi", fundID, c.CalculateDPI)

	return models.DPIBreakdown{
		Metric:             "DPI",
		Formula:            "Cumulative Distributions / Paid-In Capital",
		PIC:                pic,
		TotalDistributions: totalDistributions,
		Result:             dpi,
		Explanation:        fmt.Sprintf("DPI = %g / %g = %g", totalDistributions, pic, dpi),
		Transactions: models.BreakdownTransactions{
			CapitalCalls:  c.capitalCallDetails(fundID),
			Distributions: c.distributionDetails(fundID),
			Adjustments:   c.adjustmentDetails(fundID),
		},
	}
}

func (c *MetricsCalculator) irrBreakdown(fundID int64) models.IRRBreakdown {
	flows, err := c.assembler.Assemble(fundID)
	if err != nil {
		c.log.Error("Error assembling cash flows for breakdown", "fundID", fundID, "error", err)
	}
	irr, err := c.CalculateIRR(fundID)
	if err != nil {
		c.log.Error("Error calculating irr for breakdown", "fundID", fundID, "error", err)
	}

	var summary models.CashFlowSummary
	for _, f := range flows {
		if f.Amount < 0 {
			summary.TotalOutflows += f.Amount
		} else {
			summary.TotalInflows += f.Amount
		}
		summary.NetCashFlow += f.Amount
	}

	explanation := fmt.Sprintf("IRR calculated from %d cash flows = undefined", len(flows))
	if irr != nil {
		explanation = fmt.Sprintf("IRR calculated from %d cash flows = %g%%", len(flows), *irr)
	}

	return models.IRRBreakdown{
		Metric:          "IRR",
		Formula:         "Internal Rate of Return (NPV = 0)",
		CashFlows:       flows,
		Result:          irr,
		Explanation:     explanation,
		CashFlowSummary: summary,
	}
}

func (c *MetricsCalculator) picBreakdown(fundID int64) models.PICBreakdown {
	calls := c.capitalCallDetails(fundID)
	adjustments := c.adjustmentDetails(fundID)

	var totalCalls, totalAdjustments float64
	for _, call := range calls {
		totalCalls += call.Amount
	}
	for _, adj := range adjustments {
		totalAdjustments += adj.Amount
	}
	pic := c.decimalOrZero("pic", fundID, c.CalculatePIC)

	return models.PICBreakdown{
		Metric:           "PIC",
		Formula:          "Total Capital Calls - Adjustments",
		TotalCalls:       totalCalls,
		TotalAdjustments: totalAdjustments,
		Result:           pic,
		Explanation:      fmt.Sprintf("PIC = %g - %g = %g", totalCalls, totalAdjustments, pic),
		Transactions: models.BreakdownTransactions{
			CapitalCalls: calls,
			Adjustments:  adjustments,
		},
	}
}

func (c *MetricsCalculator) capitalCallDetails(fundID int64) []models.TransactionDetail {
	calls, err := c.fetchCapitalCalls(fundID)
	if err != nil {
		c.log.Error("Error fetching capital calls for breakdown", "fundID", fundID, "error", err)
		return nil
	}
	details := make([]models.TransactionDetail, 0, len(calls))
	for _, call := range calls {
		details = append(details, models.TransactionDetail{
			Date:        call.CallDate.Format(dateLayout),
			Amount:      call.Amount.InexactFloat64(),
			Description: call.Description,
		})
	}
	return details
}

func (c *MetricsCalculator) distributionDetails(fundID int64) []models.TransactionDetail {
	dists, err := c.fetchDistributions(fundID)
	if err != nil {
		c.log.Error("Error fetching distributions for breakdown", "fundID", fundID, "error", err)
		return nil
	}
	details := make([]models.TransactionDetail, 0, len(dists))
	for _, dist := range dists {
		recallable := dist.IsRecallable
		details = append(details, models.TransactionDetail{
			Date:         dist.DistributionDate.Format(dateLayout),
			Amount:       dist.Amount.InexactFloat64(),
			IsRecallable: &recallable,
			Description:  dist.Description,
		})
	}
	return details
}

func (c *MetricsCalculator) adjustmentDetails(fundID int64) []models.TransactionDetail {
	adjs, err := c.fetchAdjustments(fundID)
	if err != nil {
		c.log.Error("Error fetching adjustments for breakdown", "fundID", fundID, "error", err)
		return nil
	}
	details := make([]models.TransactionDetail, 0, len(adjs))
	for _, adj := range adjs {
		details = append(details, models.TransactionDetail{
			Date:        adj.AdjustmentDate.Format(dateLayout),
			Amount:      adj.Amount.InexactFloat64(),
			Type:        adj.AdjustmentType,
			Description: adj.Description,
		})
	}
	return details
}
