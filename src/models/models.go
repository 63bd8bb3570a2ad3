package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel values used when fund identity fields cannot be recovered from a
// statement. A missing vintage year stays nil.
const (
	UnknownFundName = "Unknown Fund"
	UnknownGPName   = "Unknown GP"

	DefaultFundType = "Private Equity"
)

// NAVAdjustmentType tags adjustment rows that carry the fund's current net
// asset value rather than a paid-in-capital correction. Preserved as-is for
// compatibility with existing data; see DESIGN.md before changing.
const NAVAdjustmentType = "NAV_ADJUSTMENT"

// Fund is the identity record created on the first document for a fund id
// and updated (name/gp/vintage only) by each subsequent document.
type Fund struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	GPName      string    `json:"gp_name"`
	VintageYear *int      `json:"vintage_year"`
	FundType    string    `json:"fund_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// FundInfo is the identity triple recovered from statement text, with
// sentinel defaults already applied.
type FundInfo struct {
	Name        string `json:"name"`
	GPName      string `json:"gp_name"`
	VintageYear *int   `json:"vintage_year"`
}

// CapitalCall is an investor cash outflow.
type CapitalCall struct {
	ID          int64           `json:"id,omitempty"`
	FundID      int64           `json:"fund_id"`
	CallDate    time.Time       `json:"call_date"`
	CallType    string          `json:"call_type"` // free label, e.g. "Call 1"
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// Distribution is a cash inflow to investors.
type Distribution struct {
	ID               int64           `json:"id,omitempty"`
	FundID           int64           `json:"fund_id"`
	DistributionDate time.Time       `json:"distribution_date"`
	DistributionType string          `json:"distribution_type"`
	Amount           decimal.Decimal `json:"amount"`
	IsRecallable     bool            `json:"is_recallable"`
	Description      string          `json:"description"`
	CreatedAt        time.Time       `json:"created_at,omitempty"`
}

// Adjustment is a correction against paid-in capital, or, when tagged
// NAVAdjustmentType, the fund's current valuation. Amount may be negative
// or zero.
type Adjustment struct {
	ID             int64           `json:"id,omitempty"`
	FundID         int64           `json:"fund_id"`
	AdjustmentDate time.Time       `json:"adjustment_date"`
	AdjustmentType string          `json:"adjustment_type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"created_at,omitempty"`
}

// Cash flow source kinds.
const (
	CashFlowCapitalCall  = "capital_call"
	CashFlowDistribution = "distribution"
)

// CashFlowEntry is the transient signed series element consumed by the IRR
// solver. Capital calls contribute negative amounts, distributions positive.
type CashFlowEntry struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
	Type   string    `json:"type"`
}

// FundMetrics is the aggregate returned by the metrics calculator. Every
// field is coerced to 0 when its underlying calculation produced nothing.
type FundMetrics struct {
	PIC                float64 `json:"pic"`
	TotalDistributions float64 `json:"total_distributions"`
	DPI                float64 `json:"dpi"`
	IRR                float64 `json:"irr"`
	NAV                float64 `json:"nav"`
	RVPI               float64 `json:"rvpi"`
	TVPI               float64 `json:"tvpi"`
}
