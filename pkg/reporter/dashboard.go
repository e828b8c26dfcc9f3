package reporter

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

// roadmapPreviewEntries is how many upcoming payments the dashboard shows
// per plan.
const roadmapPreviewEntries = 6

// unclassified labels plans whose invoices carry no class tag.
const unclassified = "Unclassified"

// DashboardMetrics is the headline financial block of the dashboard. It
// always covers the whole run, independent of any class filter.
type DashboardMetrics struct {
	CustomersShown       int             `json:"total_customers_shown"`
	CustomersSkipped     int             `json:"total_customers_skipped"`
	PlansTracked         int             `json:"total_payment_plans_tracked"`
	OutstandingTracked   decimal.Decimal `json:"total_outstanding_tracked"`
	OutstandingUntracked decimal.Decimal `json:"total_outstanding_untracked"`
	ExpectedMonthly      decimal.Decimal `json:"expected_monthly_collection"`
	CustomersBehind      int             `json:"customers_behind"`
	CustomersCurrent     int             `json:"customers_current"`
	CustomersCompleted   int             `json:"customers_completed"`
	PercentBehind        float64         `json:"percentage_behind"`
}

// CustomerSummary nests one tracked customer's plan metrics under a rollup.
type CustomerSummary struct {
	CustomerName      string                   `json:"customer_name"`
	TotalPlans        int                      `json:"total_plans"`
	TotalOwed         decimal.Decimal          `json:"total_owed"`
	TotalOriginal     decimal.Decimal          `json:"total_original"`
	PercentPaid       float64                  `json:"percent_paid"`
	WorstMonthsBehind int                      `json:"worst_months_behind"`
	OverallStatus     models.PlanStatus        `json:"overall_status"`
	ExpectedMonthly   decimal.Decimal          `json:"total_expected_monthly"`
	Plans             []*models.PaymentMetrics `json:"plan_details"`
}

// SkippedCustomer summarizes a customer whose issues keep it out of metrics.
type SkippedCustomer struct {
	CustomerName   string             `json:"customer_name"`
	TotalOpen      decimal.Decimal    `json:"total_open"`
	TotalPlans     int                `json:"total_plans"`
	AllClasses     []string           `json:"all_classes,omitempty"`
	Issues         []models.IssueKind `json:"issues"`
	CriticalIssues []models.IssueKind `json:"critical_issues,omitempty"`
	Descriptions   []string           `json:"issue_descriptions,omitempty"`
}

// ClassSummary aggregates tracked plans within one class tag.
type ClassSummary struct {
	TotalPlans      int             `json:"total_plans"`
	TotalCustomers  int             `json:"total_customers"`
	TotalOwed       decimal.Decimal `json:"total_owed"`
	PlansBehind     int             `json:"plans_behind"`
	ExpectedMonthly decimal.Decimal `json:"expected_monthly"`
}

// RoadmapPreview is the next few scheduled payments for one tracked plan.
type RoadmapPreview struct {
	PlanID            string                `json:"plan_id"`
	NextPayments      []models.RoadmapEntry `json:"next_payments"`
	PaymentsRemaining int                   `json:"total_payments_remaining"`
}

// Dashboard is the collections dashboard payload.
type Dashboard struct {
	Summary   DashboardMetrics            `json:"summary_metrics"`
	Customers []CustomerSummary           `json:"customer_summaries"`
	Plans     []*models.PaymentMetrics    `json:"payment_plan_details"`
	Skipped   []SkippedCustomer           `json:"skipped_customers"`
	Classes   map[string]*ClassSummary    `json:"class_summaries,omitempty"`
	Roadmaps  map[string][]RoadmapPreview `json:"payment_roadmaps,omitempty"`
}

// BuildDashboard assembles the dashboard. A non-empty classFilter narrows
// the customer summaries and plan details to that class; headline numbers,
// skipped customers, and the class table stay run-wide so the filter never
// hides the overall standing.
func BuildDashboard(in Input, classFilter string) *Dashboard {
	shown := in.Metrics
	if classFilter != "" {
		shown = filterByClass(in.Metrics, classFilter)
	}
	return &Dashboard{
		Summary:   summaryMetrics(in),
		Customers: customerSummaries(shown),
		Plans:     plansByMonthsBehind(shown),
		Skipped:   skippedCustomers(in.Problematic, issuesByCustomer(in.Issues)),
		Classes:   classSummaries(in.Metrics),
		Roadmaps:  roadmapPreviews(in.Metrics),
	}
}

func filterByClass(metrics []*models.PaymentMetrics, class string) []*models.PaymentMetrics {
	out := make([]*models.PaymentMetrics, 0, len(metrics))
	for _, m := range metrics {
		if m.Class == class {
			out = append(out, m)
		}
	}
	return out
}

func summaryMetrics(in Input) DashboardMetrics {
	grouped, order := groupByCustomer(in.Metrics)

	out := DashboardMetrics{
		CustomersShown:       len(order),
		CustomersSkipped:     len(in.Problematic),
		PlansTracked:         len(in.Metrics),
		OutstandingTracked:   decimal.Zero,
		OutstandingUntracked: sumOpen(in.Problematic),
		ExpectedMonthly:      decimal.Zero,
	}
	for _, m := range in.Metrics {
		out.OutstandingTracked = out.OutstandingTracked.Add(m.TotalOpen)
		out.ExpectedMonthly = out.ExpectedMonthly.Add(monthlyEquivalent(m.MonthlyAmount, m.Frequency))
	}
	out.ExpectedMonthly = out.ExpectedMonthly.Round(2)

	for _, name := range order {
		switch overallStatus(grouped[name]) {
		case models.StatusBehind:
			out.CustomersBehind++
		case models.StatusCompleted:
			out.CustomersCompleted++
		default:
			out.CustomersCurrent++
		}
	}
	out.PercentBehind = percent(out.CustomersBehind, len(order))
	return out
}

// overallStatus is the worst standing across a customer's tracked plans:
// any behind plan marks the customer behind, otherwise any completed plan
// marks it completed.
func overallStatus(metrics []*models.PaymentMetrics) models.PlanStatus {
	anyCompleted := false
	for _, m := range metrics {
		switch m.Status {
		case models.StatusBehind:
			return models.StatusBehind
		case models.StatusCompleted:
			anyCompleted = true
		}
	}
	if anyCompleted {
		return models.StatusCompleted
	}
	return models.StatusCurrent
}

func groupByCustomer(metrics []*models.PaymentMetrics) (map[string][]*models.PaymentMetrics, []string) {
	grouped := make(map[string][]*models.PaymentMetrics)
	var order []string
	for _, m := range metrics {
		if _, ok := grouped[m.CustomerName]; !ok {
			order = append(order, m.CustomerName)
		}
		grouped[m.CustomerName] = append(grouped[m.CustomerName], m)
	}
	return grouped, order
}

func customerSummaries(metrics []*models.PaymentMetrics) []CustomerSummary {
	grouped, order := groupByCustomer(metrics)
	out := make([]CustomerSummary, 0, len(order))
	for _, name := range order {
		out = append(out, customerSummary(name, grouped[name]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WorstMonthsBehind > out[j].WorstMonthsBehind
	})
	return out
}

func customerSummary(name string, metrics []*models.PaymentMetrics) CustomerSummary {
	summary := CustomerSummary{
		CustomerName:    name,
		TotalPlans:      len(metrics),
		TotalOwed:       decimal.Zero,
		TotalOriginal:   decimal.Zero,
		ExpectedMonthly: decimal.Zero,
		OverallStatus:   overallStatus(metrics),
		Plans:           metrics,
	}
	for _, m := range metrics {
		summary.TotalOwed = summary.TotalOwed.Add(m.TotalOpen)
		summary.TotalOriginal = summary.TotalOriginal.Add(m.TotalOriginal)
		summary.ExpectedMonthly = summary.ExpectedMonthly.Add(monthlyEquivalent(m.MonthlyAmount, m.Frequency))
		if m.MonthsBehind > summary.WorstMonthsBehind {
			summary.WorstMonthsBehind = m.MonthsBehind
		}
	}
	summary.ExpectedMonthly = summary.ExpectedMonthly.Round(2)
	summary.PercentPaid = percentPaidOf(summary.TotalOriginal, summary.TotalOwed)
	return summary
}

func plansByMonthsBehind(metrics []*models.PaymentMetrics) []*models.PaymentMetrics {
	out := make([]*models.PaymentMetrics, len(metrics))
	copy(out, metrics)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MonthsBehind > out[j].MonthsBehind
	})
	return out
}

func skippedCustomers(problematic []*models.Customer, byCustomer map[string][]models.CustomerIssue) []SkippedCustomer {
	out := make([]SkippedCustomer, 0, len(problematic))
	for _, cust := range problematic {
		sk := SkippedCustomer{
			CustomerName: cust.Name,
			TotalOpen:    cust.TotalOpen,
			TotalPlans:   len(cust.Plans),
			AllClasses:   cust.AllClasses,
		}
		for _, issue := range byCustomer[cust.Name] {
			sk.Issues = append(sk.Issues, issue.Kind)
			if issue.Severity == models.SeverityCritical {
				sk.CriticalIssues = append(sk.CriticalIssues, issue.Kind)
			}
			sk.Descriptions = append(sk.Descriptions, issue.Description)
		}
		out = append(out, sk)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalOpen.GreaterThan(out[j].TotalOpen)
	})
	return out
}

func classSummaries(metrics []*models.PaymentMetrics) map[string]*ClassSummary {
	if len(metrics) == 0 {
		return nil
	}
	out := make(map[string]*ClassSummary)
	customers := make(map[string]map[string]bool)
	for _, m := range metrics {
		key := m.Class
		if key == "" {
			key = unclassified
		}
		cs := out[key]
		if cs == nil {
			cs = &ClassSummary{TotalOwed: decimal.Zero, ExpectedMonthly: decimal.Zero}
			out[key] = cs
			customers[key] = make(map[string]bool)
		}
		cs.TotalPlans++
		cs.TotalOwed = cs.TotalOwed.Add(m.TotalOpen)
		cs.ExpectedMonthly = cs.ExpectedMonthly.Add(monthlyEquivalent(m.MonthlyAmount, m.Frequency))
		if m.Status == models.StatusBehind {
			cs.PlansBehind++
		}
		customers[key][m.CustomerName] = true
	}
	for key, cs := range out {
		cs.TotalCustomers = len(customers[key])
		cs.ExpectedMonthly = cs.ExpectedMonthly.Round(2)
	}
	return out
}

func roadmapPreviews(metrics []*models.PaymentMetrics) map[string][]RoadmapPreview {
	out := make(map[string][]RoadmapPreview)
	for _, m := range metrics {
		if len(m.Roadmap) == 0 {
			continue
		}
		next := m.Roadmap
		if len(next) > roadmapPreviewEntries {
			next = next[:roadmapPreviewEntries]
		}
		out[m.CustomerName] = append(out[m.CustomerName], RoadmapPreview{
			PlanID:            m.PlanID,
			NextPayments:      next,
			PaymentsRemaining: len(m.Roadmap),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
