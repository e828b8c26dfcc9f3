package parser

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

// farFutureDays is the threshold separating a plausible post-dated invoice
// from one that is almost certainly a data-entry error.
const farFutureDays = 365

var amountCleaner = strings.NewReplacer("$", "", ",", "")

// dateLayouts are the formats seen across ledger exports, tried in order.
// Ambiguous slash dates are read month-first.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
	"2006/1/2",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseAmount converts a raw cell value to a decimal amount. Empty cells are
// zero with no defect; junk yields zero plus a defect naming the original
// text so the quality report can surface it.
func ParseAmount(raw string) (decimal.Decimal, *models.ParseDefect) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(s, "#REF!") {
		return decimal.Zero, &models.ParseDefect{
			Kind:     models.DefectAmount,
			Message:  "Excel reference error",
			Original: raw,
		}
	}
	cleaned := strings.TrimSpace(amountCleaner.Replace(s))
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &models.ParseDefect{
			Kind:     models.DefectAmount,
			Message:  "Cannot parse amount: " + s,
			Original: raw,
		}
	}
	return d, nil
}

// ParseDate parses the permissive date formats of the export. Future dates
// are kept but flagged so the analyzer can report them.
func ParseDate(raw string, asOf time.Time) (*time.Time, *models.ParseDefect) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	var parsed time.Time
	ok := false
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			parsed, ok = t, true
			break
		}
	}
	if !ok {
		return nil, &models.ParseDefect{
			Kind:     models.DefectDate,
			Field:    models.ColDate,
			Message:  "Invalid date format: " + s,
			Original: raw,
		}
	}
	if parsed.After(asOf) {
		msg := "Future date: " + s
		if parsed.After(asOf.AddDate(0, 0, farFutureDays)) {
			msg = "Date far in future: " + s
		}
		return &parsed, &models.ParseDefect{
			Kind:     models.DefectDate,
			Field:    models.ColDate,
			Message:  msg,
			Original: raw,
		}
	}
	return &parsed, nil
}
