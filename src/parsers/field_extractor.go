package parsers

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateFormats is ordered: ISO is tried first so ambiguous MM/DD vs DD/MM
// strings resolve deterministically.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

var amountCleaner = regexp.MustCompile(`[^\d.\-]`)

// FieldExtractor parses single date and amount tokens out of free text.
// Both parsers report failure via their bool return instead of an error;
// callers treat an unparseable field as a dropped record, not a fault.
type FieldExtractor struct {
	log *slog.Logger
}

func NewFieldExtractor(log *slog.Logger) *FieldExtractor {
	return &FieldExtractor{log: log}
}

// ParseDate tries each supported format in order and returns the first
// successful parse. Unrecognized formats log a warning and report false.
func (f *FieldExtractor) ParseDate(dateStr string) (time.Time, bool) {
	trimmed := strings.TrimSpace(dateStr)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, trimmed); err == nil {
			return t, true
		}
	}
	f.log.Warn("Could not parse date", "value", dateStr)
	return time.Time{}, false
}

// ParseAmount strips every character that is not a digit, '.' or '-' and
// parses the remainder as a decimal. Sign is preserved, so "-$1,000"
// yields -1000. The stripping is lossy by design: it does not validate
// currency markers, and garbage like "1.2.3" simply fails the decimal
// parse and reports false.
func (f *FieldExtractor) ParseAmount(amountStr string) (decimal.Decimal, bool) {
	cleaned := amountCleaner.ReplaceAllString(amountStr, "")
	if cleaned == "" {
		f.log.Warn("Could not parse amount", "value", amountStr)
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		f.log.Warn("Could not parse amount", "value", amountStr, "error", err)
		return decimal.Decimal{}, false
	}
	return d, true
}
