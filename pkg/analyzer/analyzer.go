// Package analyzer inspects the parsed customer graph for data-quality
// defects. A plan with any issue, of any severity, is excluded from metrics
// downstream; customers are partitioned into clean and problematic for
// quality reporting.
package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vork-21/payplan/pkg/models"
)

// Analyzer runs the issue checks against one parsed graph.
type Analyzer struct {
	asOf time.Time
	log  zerolog.Logger
}

// New creates an Analyzer bound to the run's analysis instant.
func New(asOf time.Time, log zerolog.Logger) *Analyzer {
	return &Analyzer{asOf: asOf, log: log}
}

// Result partitions customers and carries every detected issue.
type Result struct {
	Issues      []models.CustomerIssue
	Clean       []*models.Customer
	Problematic []*models.Customer
	ByCustomer  map[string][]models.CustomerIssue
}

// Analyze checks every plan and customer. It stamps each plan's defect flag
// and kind list exactly once; they are not revisited afterward.
func (a *Analyzer) Analyze(customers []*models.Customer) *Result {
	res := &Result{ByCustomer: make(map[string][]models.CustomerIssue)}

	for _, cust := range customers {
		var custIssues []models.CustomerIssue
		for _, plan := range cust.Plans {
			planIssues := a.checkPlan(cust, plan)
			plan.HasIssues = len(planIssues) > 0
			plan.IssueKinds = issueKinds(planIssues)
			custIssues = append(custIssues, planIssues...)
		}
		custIssues = append(custIssues, a.checkCustomer(cust)...)

		if len(custIssues) > 0 {
			res.Problematic = append(res.Problematic, cust)
			res.Issues = append(res.Issues, custIssues...)
			res.ByCustomer[cust.Name] = custIssues
		} else {
			res.Clean = append(res.Clean, cust)
		}
	}

	a.log.Info().
		Int("clean", len(res.Clean)).
		Int("problematic", len(res.Problematic)).
		Int("issues", len(res.Issues)).
		Msg("Issue analysis complete")
	return res
}

// checkPlan runs the plan-level checks in a fixed order so issue lists are
// reproducible across runs.
func (a *Analyzer) checkPlan(cust *models.Customer, plan *models.PaymentPlan) []models.CustomerIssue {
	var issues []models.CustomerIssue
	add := func(issue models.CustomerIssue) {
		issue.CustomerName = cust.Name
		issue.PlanID = plan.ID
		issues = append(issues, issue)
	}

	if !plan.MonthlyAmount.IsPositive() || plan.Frequency == models.FrequencyUndefined {
		add(models.CustomerIssue{
			Kind:             models.IssueNoPaymentTerms,
			Severity:         models.SeverityCritical,
			Description:      fmt.Sprintf("Plan %s: No payment terms specified", plan.ID),
			AffectedInvoices: invoiceNumbers(plan.Invoices),
			Impact:           fmt.Sprintf("Cannot calculate payment schedule for $%s balance", plan.TotalOpen.StringFixed(2)),
			SuggestedFix:     fmt.Sprintf("Add payment amount and frequency to the %s field", models.ColTerms),
			Field:            models.ColTerms,
			CurrentValue:     plan.RawTerms,
		})
	}

	if negatives := filterInvoices(plan.Invoices, func(inv models.Invoice) bool {
		return inv.OpenBalance.IsNegative() || inv.OriginalAmount.IsNegative()
	}); len(negatives) > 0 {
		add(models.CustomerIssue{
			Kind:             models.IssueInvalidAmount,
			Severity:         models.SeverityCritical,
			Description:      fmt.Sprintf("Plan %s: %d invoice(s) with negative amounts", plan.ID, len(negatives)),
			AffectedInvoices: negatives,
			Impact:           "Negative amounts corrupt balance calculations",
			SuggestedFix:     "Review and correct the negative amounts",
			Field:            models.ColAmount,
		})
	}

	if overpaid := filterInvoices(plan.Invoices, func(inv models.Invoice) bool {
		return inv.OriginalAmount.IsPositive() && inv.OpenBalance.GreaterThan(inv.OriginalAmount)
	}); len(overpaid) > 0 {
		add(models.CustomerIssue{
			Kind:             models.IssueInvalidAmount,
			Severity:         models.SeverityCritical,
			Description:      fmt.Sprintf("Plan %s: %d invoice(s) with open balance exceeding original amount", plan.ID, len(overpaid)),
			AffectedInvoices: overpaid,
			Impact:           "Open balance above the original amount suggests missing credits or data entry errors",
			SuggestedFix:     "Verify the original amount and applied payments",
			Field:            models.ColOpenBalance,
		})
	}

	if future := filterInvoices(plan.Invoices, func(inv models.Invoice) bool {
		return inv.Date != nil && inv.Date.After(a.asOf)
	}); len(future) > 0 {
		add(models.CustomerIssue{
			Kind:             models.IssueFutureDated,
			Severity:         models.SeverityWarning,
			Description:      fmt.Sprintf("Plan %s: %d future-dated invoice(s)", plan.ID, len(future)),
			AffectedInvoices: future,
			Impact:           "Elapsed-time metrics are unreliable for future-dated invoices",
			SuggestedFix:     "Confirm the invoice dates",
			Field:            models.ColDate,
		})
	}

	if marked := filterInvoices(plan.Invoices, func(inv models.Invoice) bool {
		return strings.Contains(inv.Number, "*")
	}); len(marked) > 0 {
		add(models.CustomerIssue{
			Kind:             models.IssueAsteriskInvoice,
			Severity:         models.SeverityInfo,
			Description:      fmt.Sprintf("Plan %s: invoice numbers contain asterisks", plan.ID),
			AffectedInvoices: marked,
			Impact:           "Marker characters may indicate provisional entries",
			SuggestedFix:     "Verify the invoice numbers are final",
			Field:            models.ColNum,
		})
	}

	if missing := missingNumberPlaceholders(plan.Invoices); len(missing) > 0 {
		add(models.CustomerIssue{
			Kind:             models.IssueMissingInvoiceNumbers,
			Severity:         models.SeverityInfo,
			Description:      fmt.Sprintf("Plan %s: %d invoice(s) missing invoice numbers", plan.ID, len(missing)),
			AffectedInvoices: missing,
			Impact:           "Invoices cannot be referenced individually",
			SuggestedFix:     "Assign invoice numbers",
			Field:            models.ColNum,
		})
	}

	if unclassed := filterInvoices(plan.Invoices, func(inv models.Invoice) bool {
		return inv.Class == ""
	}); len(unclassed) > 0 {
		add(models.CustomerIssue{
			Kind:             models.IssueMissingClass,
			Severity:         models.SeverityWarning,
			Description:      fmt.Sprintf("Plan %s: %d invoice(s) missing class", plan.ID, len(unclassed)),
			AffectedInvoices: unclassed,
			Impact:           "Class-level reporting will undercount this customer",
			SuggestedFix:     fmt.Sprintf("Set the %s field on the affected invoices", models.ColClass),
			Field:            models.ColClass,
		})
	}

	if plan.IsNested {
		add(models.CustomerIssue{
			Kind:         models.IssueNestedCustomer,
			Severity:     models.SeverityWarning,
			Description:  fmt.Sprintf("Plan %s: customer is nested under %q", plan.ID, plan.ParentCustomer),
			Impact:       "Balances may belong to the parent customer",
			SuggestedFix: "Verify the customer hierarchy in the source ledger",
		})
	}

	return issues
}

// checkCustomer runs the cross-plan checks. These mark the customer
// problematic but do not gate its individual plans.
func (a *Analyzer) checkCustomer(cust *models.Customer) []models.CustomerIssue {
	var issues []models.CustomerIssue

	if len(cust.Plans) > 1 {
		keys := distinctTermsKeys(cust.Plans)
		if len(keys) > 1 {
			issues = append(issues, models.CustomerIssue{
				CustomerName: cust.Name,
				Kind:         models.IssueMultiplePaymentTerms,
				Severity:     models.SeverityWarning,
				Description:  fmt.Sprintf("Customer has %d plans with different payment terms", len(cust.Plans)),
				Impact:       "Payments may be applied against the wrong plan",
				SuggestedFix: "Consolidate to a single payment arrangement",
				Field:        models.ColTerms,
				CurrentValue: strings.Join(keys, "; "),
			})
		}
	}

	if len(cust.AllClasses) > 1 {
		issues = append(issues, models.CustomerIssue{
			CustomerName: cust.Name,
			Kind:         models.IssueFormattingError,
			Severity:     models.SeverityInfo,
			Description:  fmt.Sprintf("Customer invoices span %d classes", len(cust.AllClasses)),
			Impact:       "Class-level summaries split this customer across categories",
			SuggestedFix: "Confirm the class assignments are intentional",
			Field:        models.ColClass,
			CurrentValue: strings.Join(cust.AllClasses, "; "),
		})
	}

	return issues
}

// distinctTermsKeys lists the distinct non-empty normalized terms keys across
// plans, in plan order.
func distinctTermsKeys(plans []*models.PaymentPlan) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, plan := range plans {
		if plan.TermsKey == "" || plan.RawTerms == "" {
			continue
		}
		if _, ok := seen[plan.TermsKey]; ok {
			continue
		}
		seen[plan.TermsKey] = struct{}{}
		keys = append(keys, plan.TermsKey)
	}
	return keys
}

func filterInvoices(invoices []models.Invoice, match func(models.Invoice) bool) []string {
	var numbers []string
	for _, inv := range invoices {
		if match(inv) {
			numbers = append(numbers, inv.Number)
		}
	}
	return numbers
}

// missingNumberPlaceholders labels unnumbered invoices by their position in
// the plan so the issue can still point at something.
func missingNumberPlaceholders(invoices []models.Invoice) []string {
	var placeholders []string
	for i, inv := range invoices {
		if inv.Number == "" {
			placeholders = append(placeholders, fmt.Sprintf("Invoice %d", i+1))
		}
	}
	return placeholders
}

func invoiceNumbers(invoices []models.Invoice) []string {
	numbers := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		numbers = append(numbers, inv.Number)
	}
	return numbers
}

func issueKinds(issues []models.CustomerIssue) []models.IssueKind {
	if len(issues) == 0 {
		return nil
	}
	kinds := make([]models.IssueKind, 0, len(issues))
	for _, issue := range issues {
		kinds = append(kinds, issue.Kind)
	}
	return kinds
}
