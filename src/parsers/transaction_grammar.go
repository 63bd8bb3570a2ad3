package parsers

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/username/fundsight/backend/src/models"
)

// Section headers and their boundary lookaheads. Each section's content runs
// until the first of its stop headers or end of document.
var (
	capitalCallStops  = []string{"Distributions", "Adjustments", "Performance Summary"}
	distributionStops = []string{"Adjustments", "Performance Summary"}
	adjustmentStops   = []string{"Performance Summary", "Fund Strategy"}
)

// dateTokenRe marks the start of each record inside a section. Records are
// split by pre-scanning for date-shaped tokens; the free-text description of
// one record ends where the next date token begins.
var dateTokenRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Record shapes, anchored to a single pre-split record. (?s) lets the
// description span lines.
var (
	callRecordRe = regexp.MustCompile(`(?is)^(\d{4}-\d{2}-\d{2})\s+(Call\s+\d+)\s+(-?\$?[\d,]+(?:\.\d+)?)\s+(.*)$`)
	distRecordRe = regexp.MustCompile(`(?is)^(\d{4}-\d{2}-\d{2})\s+([\w\s]+?)\s+(-?\$?[\d,]+(?:\.\d+)?)\s+(Yes|No)\s+(.*)$`)
	adjRecordRe  = regexp.MustCompile(`(?is)^(\d{4}-\d{2}-\d{2})\s+([\w\s]+?)\s+(-?\$?[\d,]+(?:\.\d+)?)\s+(.*)$`)
)

// ParseStats counts rows seen vs rows accepted per section so callers can
// surface data quality without changing the accept/reject semantics.
type ParseStats struct {
	Seen     int `json:"seen"`
	Accepted int `json:"accepted"`
}

// TransactionGrammar matches repeated fixed-shape records for each
// transaction kind inside its segmented block. Candidate records whose date
// or amount fails to parse are dropped and logged; garbled input degrades
// record count rather than aborting extraction.
type TransactionGrammar struct {
	fields *FieldExtractor
	log    *slog.Logger
}

func NewTransactionGrammar(fields *FieldExtractor, log *slog.Logger) *TransactionGrammar {
	return &TransactionGrammar{fields: fields, log: log}
}

// splitRecords cuts section content into candidate records, one per
// date-shaped token. Text before the first date (the table header line) is
// discarded.
func splitRecords(content string) []string {
	locs := dateTokenRe.FindAllStringIndex(content, -1)
	records := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		records = append(records, strings.TrimSpace(content[loc[0]:end]))
	}
	return records
}

// ParseCapitalCalls extracts records shaped `date  Call <n>  amount  description`
// from the Capital Calls section. Zero-amount records are dropped.
func (g *TransactionGrammar) ParseCapitalCalls(text string) ([]models.CapitalCall, ParseStats) {
	var stats ParseStats

	content, found := ExtractSection(text, "Capital Calls", capitalCallStops)
	if !found {
		g.log.Warn("Could not find Capital Calls section")
		return nil, stats
	}

	var calls []models.CapitalCall
	for _, record := range splitRecords(content) {
		stats.Seen++
		m := callRecordRe.FindStringSubmatch(record)
		if m == nil {
			g.log.Warn("Dropping capital call record", "record", record)
			continue
		}

		callDate, dateOK := g.fields.ParseDate(m[1])
		amount, amountOK := g.fields.ParseAmount(m[3])
		if !dateOK || !amountOK || amount.IsZero() {
			g.log.Warn("Dropping capital call record", "record", record)
			continue
		}

		calls = append(calls, models.CapitalCall{
			CallDate:    callDate,
			CallType:    strings.TrimSpace(m[2]),
			Amount:      amount,
			Description: strings.TrimSpace(m[4]),
		})
		stats.Accepted++
		g.log.Debug("Parsed capital call", "date", callDate.Format("2006-01-02"), "type", m[2], "amount", amount)
	}
	return calls, stats
}

// ParseDistributions extracts records shaped
// `date  type  amount  Yes|No  description` from the Distributions section.
// Zero-amount records are dropped.
func (g *TransactionGrammar) ParseDistributions(text string) ([]models.Distribution, ParseStats) {
	var stats ParseStats

	content, found := ExtractSection(text, "Distributions", distributionStops)
	if !found {
		g.log.Warn("Could not find Distributions section")
		return nil, stats
	}

	var dists []models.Distribution
	for _, record := range splitRecords(content) {
		stats.Seen++
		m := distRecordRe.FindStringSubmatch(record)
		if m == nil {
			g.log.Warn("Dropping distribution record", "record", record)
			continue
		}

		distDate, dateOK := g.fields.ParseDate(m[1])
		amount, amountOK := g.fields.ParseAmount(m[3])
		if !dateOK || !amountOK || amount.IsZero() {
			g.log.Warn("Dropping distribution record", "record", record)
			continue
		}

		dists = append(dists, models.Distribution{
			DistributionDate: distDate,
			DistributionType: strings.TrimSpace(m[2]),
			Amount:           amount,
			IsRecallable:     strings.EqualFold(strings.TrimSpace(m[4]), "yes"),
			Description:      strings.TrimSpace(m[5]),
		})
		stats.Accepted++
		g.log.Debug("Parsed distribution", "date", distDate.Format("2006-01-02"), "type", m[2], "amount", amount)
	}
	return dists, stats
}

// ParseAdjustments extracts records shaped `date  type  signed-amount
// description` from the Adjustments section. This is the only kind that
// records negative or zero amounts.
func (g *TransactionGrammar) ParseAdjustments(text string) ([]models.Adjustment, ParseStats) {
	var stats ParseStats

	content, found := ExtractSection(text, "Adjustments", adjustmentStops)
	if !found {
		g.log.Warn("Could not find Adjustments section")
		return nil, stats
	}

	var adjs []models.Adjustment
	for _, record := range splitRecords(content) {
		stats.Seen++
		m := adjRecordRe.FindStringSubmatch(record)
		if m == nil {
			g.log.Warn("Dropping adjustment record", "record", record)
			continue
		}

		adjDate, dateOK := g.fields.ParseDate(m[1])
		amount, amountOK := g.fields.ParseAmount(m[3])
		if !dateOK || !amountOK {
			g.log.Warn("Dropping adjustment record", "record", record)
			continue
		}

		adjs = append(adjs, models.Adjustment{
			AdjustmentDate: adjDate,
			AdjustmentType: strings.TrimSpace(m[2]),
			Amount:         amount,
			Description:    strings.TrimSpace(m[4]),
		})
		stats.Accepted++
		g.log.Debug("Parsed adjustment", "date", adjDate.Format("2006-01-02"), "type", m[2], "amount", amount)
	}
	return adjs, stats
}
