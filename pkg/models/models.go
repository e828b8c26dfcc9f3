package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a payment plan expects a payment.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyBimonthly Frequency = "bimonthly"
	FrequencyUndefined Frequency = "undefined"
)

// MonthsPerPeriod returns the calendar months between two payments. Every
// frequency-dependent calculation goes through this one table so the
// quarterly/bimonthly arithmetic cannot drift between components.
func (f Frequency) MonthsPerPeriod() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencyBimonthly:
		return 2
	default:
		return 1
	}
}

// PeriodsElapsed returns how many payments came due within the given number
// of elapsed calendar months.
func (f Frequency) PeriodsElapsed(months int) int {
	if months < 0 {
		return 0
	}
	return months / f.MonthsPerPeriod()
}

// Severity ranks a detected issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IssueKind is the closed set of data-quality defects the analyzer reports.
type IssueKind string

const (
	IssueNoPaymentTerms        IssueKind = "no_payment_terms"
	IssueInvalidAmount         IssueKind = "invalid_amount"
	IssueFutureDated           IssueKind = "future_dated"
	IssueAsteriskInvoice       IssueKind = "asterisk_invoice"
	IssueMissingInvoiceNumbers IssueKind = "missing_invoice_numbers"
	IssueMissingClass          IssueKind = "missing_class"
	IssueNestedCustomer        IssueKind = "nested_customer"
	IssueMultiplePaymentTerms  IssueKind = "multiple_payment_terms"
	IssueFormattingError       IssueKind = "formatting_error"
)

// PlanStatus classifies a plan's (or a projection's) payment standing.
type PlanStatus string

const (
	StatusCurrent   PlanStatus = "current"
	StatusBehind    PlanStatus = "behind"
	StatusCompleted PlanStatus = "completed"
	StatusRestart   PlanStatus = "restart"
)

// Scenario selects the assumption set for projections.
type Scenario string

const (
	ScenarioCurrent Scenario = "current"
	ScenarioRestart Scenario = "restart"
)

// ParseScenario parses a user-supplied scenario value. Empty means current.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScenarioCurrent:
		return ScenarioCurrent, nil
	case ScenarioRestart:
		return ScenarioRestart, nil
	}
	return "", fmt.Errorf("unknown scenario %q: expected current or restart", s)
}

// Invoice is one ledger line that still carries an open balance. Lines with
// open balance <= 0 are dropped at parse time and never reach this type.
type Invoice struct {
	Number         string          `json:"invoice_number"`
	Date           *time.Time      `json:"date,omitempty"` // kept even when in the future
	RawTerms       string          `json:"payment_terms,omitempty"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	OpenBalance    decimal.Decimal `json:"open_balance"`
	Class          string          `json:"class,omitempty"`
}

// PaymentPlan groups the invoices of one customer that share one normalized
// payment-terms key.
type PaymentPlan struct {
	ID             string          `json:"plan_id"`
	CustomerName   string          `json:"customer_name"`
	MonthlyAmount  decimal.Decimal `json:"monthly_amount"` // 0 means undetermined
	Frequency      Frequency       `json:"frequency"`
	TotalOriginal  decimal.Decimal `json:"total_original"`
	TotalOpen      decimal.Decimal `json:"total_open"`
	Invoices       []Invoice       `json:"invoices"`
	EarliestDate   *time.Time      `json:"earliest_date,omitempty"`
	LatestDate     *time.Time      `json:"latest_date,omitempty"`
	Class          string          `json:"class,omitempty"`             // dominant class among invoices
	TermsKey       string          `json:"terms_key"`                   // normalized grouping key
	RawTerms       string          `json:"payment_terms_raw,omitempty"` // first terms string seen for this group
	IsNested       bool            `json:"is_nested,omitempty"`
	ParentCustomer string          `json:"parent_customer,omitempty"`
	HasIssues      bool            `json:"has_issues"`
	IssueKinds     []IssueKind     `json:"issue_kinds,omitempty"`
}

// Customer is one payer reconstructed from the export. Monetary totals are
// always recomputed from the child plans.
type Customer struct {
	Name             string          `json:"customer_name"`
	Plans            []*PaymentPlan  `json:"payment_plans"`
	TotalOpen        decimal.Decimal `json:"total_open"`
	TotalOriginal    decimal.Decimal `json:"total_original"`
	AllClasses       []string        `json:"all_classes,omitempty"`
	HasMultiplePlans bool            `json:"has_multiple_plans"`
	EarliestDate     *time.Time      `json:"earliest_date,omitempty"`
	LatestDate       *time.Time      `json:"latest_date,omitempty"`
}

// HasClass reports whether the customer's invoices carry the given class tag.
func (c *Customer) HasClass(class string) bool {
	for _, tag := range c.AllClasses {
		if tag == class {
			return true
		}
	}
	return false
}

// CustomerIssue is one detected data-quality defect. Immutable once produced.
type CustomerIssue struct {
	CustomerName     string    `json:"customer_name"`
	PlanID           string    `json:"plan_id,omitempty"` // empty for customer-level issues
	Kind             IssueKind `json:"issue_type"`
	Severity         Severity  `json:"severity"`
	Description      string    `json:"description"`
	AffectedInvoices []string  `json:"affected_invoices"`
	Impact           string    `json:"impact"`
	SuggestedFix     string    `json:"suggested_fix"`
	Field            string    `json:"field_name,omitempty"`
	CurrentValue     string    `json:"current_value,omitempty"`
}

// RoadmapEntry is one scheduled future payment for a plan.
type RoadmapEntry struct {
	PaymentNumber    int             `json:"payment_number"`
	Date             time.Time       `json:"date"`
	ExpectedPayment  decimal.Decimal `json:"expected_payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	IsFinal          bool            `json:"is_final_payment"`
}

// PaymentMetrics is the computed standing of one issue-free plan as of a
// fixed analysis instant. Recomputed on every run, never stored as truth.
type PaymentMetrics struct {
	CustomerName        string          `json:"customer_name"`
	PlanID              string          `json:"plan_id"`
	MonthlyAmount       decimal.Decimal `json:"monthly_amount"`
	Frequency           Frequency       `json:"frequency"`
	TotalOriginal       decimal.Decimal `json:"total_original"`
	TotalOpen           decimal.Decimal `json:"total_open"`
	MonthsElapsed       int             `json:"months_elapsed"`
	ExpectedPayments    decimal.Decimal `json:"expected_payments"`
	ActualPayments      decimal.Decimal `json:"actual_payments"`
	PaymentDifference   decimal.Decimal `json:"payment_difference"`
	MonthsBehind        int             `json:"months_behind"`
	PercentPaid         float64         `json:"percent_paid"`
	Status              PlanStatus      `json:"status"`
	MonthsRemaining     int             `json:"months_remaining"`
	ProjectedCompletion *time.Time      `json:"projected_completion,omitempty"`
	Class               string          `json:"class,omitempty"`
	Roadmap             []RoadmapEntry  `json:"payment_roadmap,omitempty"`
	RoadmapTruncated    bool            `json:"roadmap_truncated,omitempty"`
}

// PlanPayment is one plan's contribution to a single projected month.
type PlanPayment struct {
	PlanID           string          `json:"plan_id"`
	Amount           decimal.Decimal `json:"payment_amount"`
	PaymentNumber    int             `json:"payment_number"`
	TotalPayments    int             `json:"total_payments"`
	Frequency        Frequency       `json:"frequency"`
	Class            string          `json:"class,omitempty"`
	IsFinal          bool            `json:"is_final_payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// TimelineMonth is one month of a customer's projected payment timeline.
type TimelineMonth struct {
	Month       int             `json:"month"`
	Date        time.Time       `json:"date"`
	Payment     decimal.Decimal `json:"expected_payment"`
	ActivePlans int             `json:"active_plans"`
	Plans       []PlanPayment   `json:"plan_details,omitempty"`
}

// CustomerProjection is one scenario-bound forecast for one customer.
type CustomerProjection struct {
	CustomerName        string          `json:"customer_name"`
	TotalMonthlyPayment decimal.Decimal `json:"total_monthly_payment"`
	TotalOwed           decimal.Decimal `json:"total_owed"`
	CompletionMonth     int             `json:"completion_month"` // 0 when no payoff inside the horizon
	PlanCount           int             `json:"plan_count"`
	Timeline            []TimelineMonth `json:"monthly_timeline"`
	Status              PlanStatus      `json:"status"`
	MonthsBehind        int             `json:"months_behind"`
	RenegotiationNeeded bool            `json:"renegotiation_needed"`
}
