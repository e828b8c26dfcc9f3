// Package export renders analysis results into the flat files the
// collections team passes around: CSV extracts and an error-highlighted
// workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Vork-21/payplan/pkg/calculator"
	"github.com/Vork-21/payplan/pkg/models"
)

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func writeAll(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	for _, record := range records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CollectionsCSV writes the ranked collection priorities.
func CollectionsCSV(w io.Writer, priorities []calculator.CollectionPriority) error {
	records := [][]string{{
		"Customer", "Plan ID", "Months Behind", "Total Owed", "Monthly Amount",
		"Frequency", "Behind Amount", "Class", "Percent Paid", "Projected Completion",
	}}
	for _, p := range priorities {
		records = append(records, []string{
			p.CustomerName,
			p.PlanID,
			strconv.Itoa(p.MonthsBehind),
			p.TotalOwed.StringFixed(2),
			p.MonthlyAmount.StringFixed(2),
			string(p.Frequency),
			p.BehindAmount.StringFixed(2),
			p.Class,
			fmt.Sprintf("%.1f", p.PercentPaid),
			formatDate(p.ProjectedCompletion),
		})
	}
	return writeAll(w, records)
}

// MetricsCSV writes one row per tracked plan with its full standing.
func MetricsCSV(w io.Writer, metrics []*models.PaymentMetrics) error {
	records := [][]string{{
		"Customer", "Plan ID", "Monthly Amount", "Frequency", "Total Open",
		"Total Original", "Percent Paid", "Months Elapsed", "Expected Payments",
		"Actual Payments", "Payment Difference", "Months Behind", "Status",
		"Months Remaining", "Projected Completion", "Class",
	}}
	for _, m := range metrics {
		records = append(records, []string{
			m.CustomerName,
			m.PlanID,
			m.MonthlyAmount.StringFixed(2),
			string(m.Frequency),
			m.TotalOpen.StringFixed(2),
			m.TotalOriginal.StringFixed(2),
			fmt.Sprintf("%.1f", m.PercentPaid),
			strconv.Itoa(m.MonthsElapsed),
			m.ExpectedPayments.StringFixed(2),
			m.ActualPayments.StringFixed(2),
			m.PaymentDifference.StringFixed(2),
			strconv.Itoa(m.MonthsBehind),
			string(m.Status),
			strconv.Itoa(m.MonthsRemaining),
			formatDate(m.ProjectedCompletion),
			m.Class,
		})
	}
	return writeAll(w, records)
}

// IssuesCSV writes every detected issue, one row each.
func IssuesCSV(w io.Writer, issues []models.CustomerIssue) error {
	records := [][]string{{
		"Customer", "Plan ID", "Issue Type", "Severity", "Description",
		"Affected Invoices", "Impact", "Suggested Fix", "Field", "Current Value",
	}}
	for _, issue := range issues {
		records = append(records, []string{
			issue.CustomerName,
			issue.PlanID,
			string(issue.Kind),
			string(issue.Severity),
			issue.Description,
			strings.Join(issue.AffectedInvoices, "; "),
			issue.Impact,
			issue.SuggestedFix,
			issue.Field,
			issue.CurrentValue,
		})
	}
	return writeAll(w, records)
}

// CustomerProjectionCSV writes projections in long form, one row per
// customer per month, so the file loads straight into a pivot table.
func CustomerProjectionCSV(w io.Writer, projections []*models.CustomerProjection) error {
	records := [][]string{{
		"Customer", "Status", "Months Behind", "Renegotiation Needed",
		"Month", "Date", "Expected Payment", "Active Plans",
	}}
	for _, proj := range projections {
		for _, tm := range proj.Timeline {
			records = append(records, []string{
				proj.CustomerName,
				string(proj.Status),
				strconv.Itoa(proj.MonthsBehind),
				strconv.FormatBool(proj.RenegotiationNeeded),
				strconv.Itoa(tm.Month),
				tm.Date.Format(dateLayout),
				tm.Payment.StringFixed(2),
				strconv.Itoa(tm.ActivePlans),
			})
		}
	}
	return writeAll(w, records)
}
