package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/Vork-21/payplan/pkg/models"
)

// Sheet names of the error workbook.
const (
	sheetErrorSummary = "Error Summary"
	sheetHighlighted  = "Data with Errors Highlighted"
	sheetByCustomer   = "Issues by Customer"
	sheetByClass      = "Analysis by Class"
)

// severityFills are the row highlight colors, one per severity.
var severityFills = map[models.Severity]string{
	models.SeverityCritical: "FFCCCC",
	models.SeverityWarning:  "FFFFCC",
	models.SeverityInfo:     "CCE5FF",
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 0
	case models.SeverityWarning:
		return 1
	}
	return 2
}

// workbook wraps an excelize file with the cached styles the sheets share.
type workbook struct {
	f     *excelize.File
	bold  int
	fills map[models.Severity]int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	wb := &workbook{f: f, fills: make(map[models.Severity]int)}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	wb.bold = bold

	for severity, color := range severityFills {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s fill: %w", severity, err)
		}
		wb.fills[severity] = style
	}
	return wb, nil
}

func (wb *workbook) setRow(sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return wb.f.SetSheetRow(sheet, cell, &cells)
}

func (wb *workbook) styleRow(sheet string, row, width, styleID int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	return wb.f.SetCellStyle(sheet, start, end, styleID)
}

func (wb *workbook) writeHeader(sheet string, headers []interface{}) error {
	if err := wb.setRow(sheet, 1, headers); err != nil {
		return err
	}
	return wb.styleRow(sheet, 1, len(headers), wb.bold)
}

// ErrorWorkbook builds the multi-sheet review workbook: an issue summary,
// the flagged ledger lines, per-customer issue detail, and a class rollup.
// Rows are color coded by severity so reviewers can scan for the red ones.
func ErrorWorkbook(customers []*models.Customer, issues []models.CustomerIssue) (*excelize.File, error) {
	wb, err := newWorkbook()
	if err != nil {
		return nil, err
	}
	if err := wb.f.SetSheetName("Sheet1", sheetErrorSummary); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	for _, name := range []string{sheetHighlighted, sheetByCustomer, sheetByClass} {
		if _, err := wb.f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	if err := wb.errorSummarySheet(issues); err != nil {
		return nil, err
	}
	if err := wb.highlightedDataSheet(customers, issues); err != nil {
		return nil, err
	}
	if err := wb.issuesByCustomerSheet(issues); err != nil {
		return nil, err
	}
	if err := wb.classAnalysisSheet(customers); err != nil {
		return nil, err
	}
	return wb.f, nil
}

func (wb *workbook) errorSummarySheet(issues []models.CustomerIssue) error {
	if err := wb.writeHeader(sheetErrorSummary, []interface{}{
		"Error Type", "Severity", "Count", "Affected Customers", "Common Fix",
	}); err != nil {
		return err
	}

	type key struct {
		kind     models.IssueKind
		severity models.Severity
	}
	type group struct {
		count     int
		customers map[string]bool
		fix       string
	}
	groups := make(map[key]*group)
	var order []key
	for _, issue := range issues {
		k := key{kind: issue.Kind, severity: issue.Severity}
		g := groups[k]
		if g == nil {
			g = &group{customers: make(map[string]bool)}
			groups[k] = g
			order = append(order, k)
		}
		g.count++
		g.customers[issue.CustomerName] = true
		if g.fix == "" {
			g.fix = issue.SuggestedFix
		}
	}

	for i, k := range order {
		g := groups[k]
		fix := g.fix
		if fix == "" {
			fix = "Review manually"
		}
		row := i + 2
		if err := wb.setRow(sheetErrorSummary, row, []interface{}{
			string(k.kind), string(k.severity), g.count, len(g.customers), fix,
		}); err != nil {
			return err
		}
		if err := wb.styleRow(sheetErrorSummary, row, 5, wb.fills[k.severity]); err != nil {
			return err
		}
	}
	return nil
}

func (wb *workbook) highlightedDataSheet(customers []*models.Customer, issues []models.CustomerIssue) error {
	if err := wb.writeHeader(sheetHighlighted, []interface{}{
		"Customer", "Plan ID", "Invoice Number", "Date", "Payment Terms",
		"Original Amount", "Open Balance", "Class", "Issues Found",
	}); err != nil {
		return err
	}

	byCustomer := make(map[string][]models.CustomerIssue)
	for _, issue := range issues {
		byCustomer[issue.CustomerName] = append(byCustomer[issue.CustomerName], issue)
	}

	row := 2
	for _, cust := range customers {
		custIssues := byCustomer[cust.Name]
		for _, plan := range cust.Plans {
			for _, inv := range plan.Invoices {
				matched := matchInvoiceIssues(custIssues, inv.Number)
				var notes string
				worst := models.Severity("")
				for i, issue := range matched {
					if i > 0 {
						notes += "; "
					}
					notes += string(issue.Kind) + ": " + issue.Description
					if worst == "" || severityRank(issue.Severity) < severityRank(worst) {
						worst = issue.Severity
					}
				}

				if err := wb.setRow(sheetHighlighted, row, []interface{}{
					cust.Name,
					plan.ID,
					inv.Number,
					formatDate(inv.Date),
					inv.RawTerms,
					inv.OriginalAmount.InexactFloat64(),
					inv.OpenBalance.InexactFloat64(),
					inv.Class,
					notes,
				}); err != nil {
					return err
				}
				if worst != "" {
					if err := wb.styleRow(sheetHighlighted, row, 9, wb.fills[worst]); err != nil {
						return err
					}
				}
				row++
			}
		}
	}
	return nil
}

// matchInvoiceIssues finds the issues that touch one invoice. Issues with no
// affected-invoice list apply to the whole plan or customer and match every
// line.
func matchInvoiceIssues(issues []models.CustomerIssue, invoiceNumber string) []models.CustomerIssue {
	var out []models.CustomerIssue
	for _, issue := range issues {
		if len(issue.AffectedInvoices) == 0 {
			out = append(out, issue)
			continue
		}
		for _, num := range issue.AffectedInvoices {
			if num == invoiceNumber {
				out = append(out, issue)
				break
			}
		}
	}
	return out
}

func (wb *workbook) issuesByCustomerSheet(issues []models.CustomerIssue) error {
	if err := wb.writeHeader(sheetByCustomer, []interface{}{
		"Customer", "Issue Type", "Severity", "Description",
		"Suggested Fix", "Field", "Current Value",
	}); err != nil {
		return err
	}

	ordered := make([]models.CustomerIssue, len(issues))
	copy(ordered, issues)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CustomerName != ordered[j].CustomerName {
			return ordered[i].CustomerName < ordered[j].CustomerName
		}
		return severityRank(ordered[i].Severity) < severityRank(ordered[j].Severity)
	})

	for i, issue := range ordered {
		row := i + 2
		if err := wb.setRow(sheetByCustomer, row, []interface{}{
			issue.CustomerName,
			string(issue.Kind),
			string(issue.Severity),
			issue.Description,
			issue.SuggestedFix,
			issue.Field,
			issue.CurrentValue,
		}); err != nil {
			return err
		}
		if err := wb.styleRow(sheetByCustomer, row, 7, wb.fills[issue.Severity]); err != nil {
			return err
		}
	}
	return nil
}

func (wb *workbook) classAnalysisSheet(customers []*models.Customer) error {
	if err := wb.writeHeader(sheetByClass, []interface{}{
		"Class", "Total Customers", "Total Plans", "Total Outstanding", "Avg per Customer",
	}); err != nil {
		return err
	}

	type rollup struct {
		customers   int
		plans       int
		outstanding float64
	}
	rollups := make(map[string]*rollup)
	for _, cust := range customers {
		for _, class := range cust.AllClasses {
			r := rollups[class]
			if r == nil {
				r = &rollup{}
				rollups[class] = r
			}
			r.customers++
			r.plans += len(cust.Plans)
			r.outstanding += cust.TotalOpen.InexactFloat64()
		}
	}

	names := make([]string, 0, len(rollups))
	for name := range rollups {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		r := rollups[name]
		avg := 0.0
		if r.customers > 0 {
			avg = r.outstanding / float64(r.customers)
		}
		if err := wb.setRow(sheetByClass, i+2, []interface{}{
			name, r.customers, r.plans, r.outstanding, avg,
		}); err != nil {
			return err
		}
	}
	return nil
}
