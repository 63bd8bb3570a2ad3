package parsers

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/fundsight/backend/src/models"
)

var (
	fundNameRe    = regexp.MustCompile(`(?i)Fund Name:\s*(.+)`)
	gpNameRe      = regexp.MustCompile(`(?i)GP:\s*(.+)`)
	vintageYearRe = regexp.MustCompile(`(?i)Vintage Year:\s*(\d{4})`)
)

// FundIdentityExtractor recovers the fund identity triple from statement
// text. The three lookups are independent; a missing field only logs and
// leaves its default in place.
type FundIdentityExtractor struct {
	log *slog.Logger
}

func NewFundIdentityExtractor(log *slog.Logger) *FundIdentityExtractor {
	return &FundIdentityExtractor{log: log}
}

func (e *FundIdentityExtractor) Parse(text string) models.FundInfo {
	info := models.FundInfo{
		Name:   models.UnknownFundName,
		GPName: models.UnknownGPName,
	}

	if m := fundNameRe.FindStringSubmatch(text); m != nil {
		info.Name = strings.TrimSpace(m[1])
	} else {
		e.log.Warn("Failed to parse fund name, using default")
	}

	if m := gpNameRe.FindStringSubmatch(text); m != nil {
		info.GPName = strings.TrimSpace(m[1])
	} else {
		e.log.Warn("Failed to parse GP, using default")
	}

	if m := vintageYearRe.FindStringSubmatch(text); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil {
			info.VintageYear = &year
		}
	} else {
		e.log.Warn("Failed to parse vintage year, leaving unset")
	}

	return info
}
