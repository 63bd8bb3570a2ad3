package models

// Metric names accepted by the breakdown endpoint.
const (
	MetricDPI = "dpi"
	MetricIRR = "irr"
	MetricPIC = "pic"
)

// TransactionDetail is one literal transaction row that fed a calculation.
type TransactionDetail struct {
	Date         string  `json:"date"`
	Amount       float64 `json:"amount"`
	Type         string  `json:"type,omitempty"`
	IsRecallable *bool   `json:"is_recallable,omitempty"`
	Description  string  `json:"description"`
}

// BreakdownTransactions groups the rows behind a metric by kind.
type BreakdownTransactions struct {
	CapitalCalls  []TransactionDetail `json:"capital_calls,omitempty"`
	Distributions []TransactionDetail `json:"distributions,omitempty"`
	Adjustments   []TransactionDetail `json:"adjustments,omitempty"`
}

// DPIBreakdown explains a DPI calculation.
type DPIBreakdown struct {
	Metric             string                `json:"metric"`
	Formula            string                `json:"formula"`
	PIC                float64               `json:"pic"`
	TotalDistributions float64               `json:"total_distributions"`
	Result             float64               `json:"result"`
	Explanation        string                `json:"explanation"`
	Transactions       BreakdownTransactions `json:"transactions"`
}

// CashFlowSummary aggregates the signed series for the IRR breakdown.
type CashFlowSummary struct {
	TotalOutflows float64 `json:"total_outflows"`
	TotalInflows  float64 `json:"total_inflows"`
	NetCashFlow   float64 `json:"net_cash_flow"`
}

// IRRBreakdown explains an IRR calculation. Result is nil when the solver
// produced no defined rate.
type IRRBreakdown struct {
	Metric          string          `json:"metric"`
	Formula         string          `json:"formula"`
	CashFlows       []CashFlowEntry `json:"cash_flows"`
	Result          *float64        `json:"result"`
	Explanation     string          `json:"explanation"`
	CashFlowSummary CashFlowSummary `json:"cash_flow_summary"`
}

// PICBreakdown explains a PIC calculation.
type PICBreakdown struct {
	Metric           string                `json:"metric"`
	Formula          string                `json:"formula"`
	TotalCalls       float64               `json:"total_calls"`
	TotalAdjustments float64               `json:"total_adjustments"`
	Result           float64               `json:"result"`
	Explanation      string                `json:"explanation"`
	Transactions     BreakdownTransactions `json:"transactions"`
}

// BreakdownError is the structured "unknown metric" response. Requesting a
// breakdown for an unsupported metric is not an error condition.
type BreakdownError struct {
	Error string `json:"error"`
}
