package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

// NoTermsKey is the grouping key for invoices without payment terms.
const NoTermsKey = "no_terms"

// termsCorrections maps misspellings and phrasings seen in real exports to
// canonical text, applied in order as substring replacements. Typo entries
// record a defect; silent entries fold equivalent wording ("per month" into
// "monthly") so matching phrasings share one normalized key.
var termsCorrections = []struct {
	typo, correct string
	silent        bool
}{
	{"quaterly", "quarterly", false},
	{"qtrly", "quarterly", false},
	{"montly", "monthly", false},
	{"monthl;y", "monthly", false},
	{"bi-monthly", "bimonthly", true},
	{"per month", "monthly", true},
	{"a month", "monthly", true},
	{"each month", "monthly", true},
}

var (
	amountPattern     = regexp.MustCompile(`\d+(?:\.\d{2})?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// TermsResult is the parsed form of a payment-terms string.
type TermsResult struct {
	MonthlyAmount decimal.Decimal
	Frequency     models.Frequency
	Defects       []models.ParseDefect
}

// ParseTerms extracts the payment amount and frequency from free-form terms
// text, fixing known typos first. Each applied correction is recorded as a
// defect; so is an amount whose frequency cannot be determined.
func ParseTerms(raw string) TermsResult {
	res := TermsResult{
		MonthlyAmount: decimal.Zero,
		Frequency:     models.FrequencyUndefined,
	}
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" || text == NoTermsKey {
		return res
	}

	for _, c := range termsCorrections {
		if !strings.Contains(text, c.typo) {
			continue
		}
		if !c.silent {
			res.Defects = append(res.Defects, models.ParseDefect{
				Kind:      models.DefectTypo,
				Field:     models.ColTerms,
				Message:   fmt.Sprintf("Corrected %q to %q in payment terms", c.typo, c.correct),
				Original:  raw,
				Corrected: c.correct,
			})
		}
		text = strings.ReplaceAll(text, c.typo, c.correct)
	}

	if m := amountPattern.FindString(text); m != "" {
		if amt, err := decimal.NewFromString(m); err == nil {
			res.MonthlyAmount = amt
		}
	}

	switch {
	case strings.Contains(text, "bimonthly"):
		res.Frequency = models.FrequencyBimonthly
	case strings.Contains(text, "quarterly"):
		res.Frequency = models.FrequencyQuarterly
	case strings.Contains(text, "month"):
		res.Frequency = models.FrequencyMonthly
	default:
		if res.MonthlyAmount.IsPositive() {
			res.Defects = append(res.Defects, models.ParseDefect{
				Kind:     models.DefectTerms,
				Field:    models.ColTerms,
				Message:  fmt.Sprintf("Amount %s found but payment frequency is unclear", res.MonthlyAmount),
				Original: raw,
			})
		}
	}
	return res
}

// NormalizeTermsKey reduces a raw terms string to the stable key used to
// group invoices into plans. Equivalent phrasings must produce equal keys.
func NormalizeTermsKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return NoTermsKey
	}
	for _, c := range termsCorrections {
		key = strings.ReplaceAll(key, c.typo, c.correct)
	}
	key = whitespacePattern.ReplaceAllString(key, " ")
	return strings.TrimSpace(key)
}
