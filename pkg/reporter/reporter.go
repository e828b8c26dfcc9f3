// Package reporter shapes a completed analysis run into the review surfaces
// the collections team works from: the data-quality report and the payment
// dashboard.
package reporter

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

// Input bundles everything the report builders need from one run.
type Input struct {
	AsOf        time.Time
	Customers   []*models.Customer
	Clean       []*models.Customer
	Problematic []*models.Customer
	Issues      []models.CustomerIssue
	Metrics     []*models.PaymentMetrics
	Stats       *models.ParseStats
}

func issuesByCustomer(issues []models.CustomerIssue) map[string][]models.CustomerIssue {
	out := make(map[string][]models.CustomerIssue)
	for _, issue := range issues {
		out[issue.CustomerName] = append(out[issue.CustomerName], issue)
	}
	return out
}

// monthlyEquivalent converts a per-period amount to its calendar-monthly
// equivalent so quarterly and bimonthly plans compare fairly.
func monthlyEquivalent(amount decimal.Decimal, freq models.Frequency) decimal.Decimal {
	return amount.Div(decimal.NewFromInt(int64(freq.MonthsPerPeriod())))
}

// percent returns part of whole as a percentage, one decimal place.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

func percentPaidOf(original, owed decimal.Decimal) float64 {
	if !original.IsPositive() {
		return 0
	}
	paid, _ := original.Sub(owed).
		Div(original).
		Mul(decimal.NewFromInt(100)).
		Round(1).
		Float64()
	return paid
}

func sumOpen(customers []*models.Customer) decimal.Decimal {
	total := decimal.Zero
	for _, cust := range customers {
		total = total.Add(cust.TotalOpen)
	}
	return total
}

func appendKindOnce(kinds []models.IssueKind, kind models.IssueKind) []models.IssueKind {
	for _, k := range kinds {
		if k == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}

func hasKind(issues []models.CustomerIssue, kind models.IssueKind) bool {
	for _, issue := range issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}
