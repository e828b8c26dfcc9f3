package analysis

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/calculator"
	"github.com/Vork-21/payplan/pkg/models"
	"github.com/Vork-21/payplan/pkg/reporter"
)

// ErrCustomerNotFound is returned when a run holds no customer by that name.
var ErrCustomerNotFound = errors.New("customer not found")

// Result is one completed analysis run. Every read operation derives its
// answer from the retained model; nothing re-parses the input.
type Result struct {
	ID          uuid.UUID
	AsOf        time.Time
	Source      string
	Customers   []*models.Customer
	Clean       []*models.Customer
	Problematic []*models.Customer
	Issues      []models.CustomerIssue
	Metrics     []*models.PaymentMetrics
	Stats       models.ParseStats

	calc *calculator.Calculator
	log  zerolog.Logger
}

func (r *Result) reporterInput() reporter.Input {
	return reporter.Input{
		AsOf:        r.AsOf,
		Customers:   r.Customers,
		Clean:       r.Clean,
		Problematic: r.Problematic,
		Issues:      r.Issues,
		Metrics:     r.Metrics,
		Stats:       &r.Stats,
	}
}

// QualityReport builds the run's data-quality report.
func (r *Result) QualityReport() *reporter.QualityReport {
	return reporter.BuildQualityReport(r.reporterInput())
}

// Dashboard builds the collections dashboard, optionally narrowed to one
// class.
func (r *Result) Dashboard(classFilter string) *reporter.Dashboard {
	return reporter.BuildDashboard(r.reporterInput(), classFilter)
}

// CollectionPriorities ranks behind plans for outreach, optionally narrowed
// to one class.
func (r *Result) CollectionPriorities(classFilter string) []calculator.CollectionPriority {
	metrics := r.Metrics
	if classFilter != "" {
		filtered := make([]*models.PaymentMetrics, 0, len(metrics))
		for _, m := range metrics {
			if m.Class == classFilter {
				filtered = append(filtered, m)
			}
		}
		metrics = filtered
	}
	return calculator.PrioritizeCollections(metrics)
}

// Projections bundles the per-customer timelines and the portfolio rollup
// for one scenario.
type Projections struct {
	Scenario  models.Scenario                 `json:"scenario"`
	Months    int                             `json:"months_ahead"`
	Customers []*models.CustomerProjection    `json:"customer_projections"`
	Portfolio *calculator.PortfolioProjection `json:"portfolio_summary"`
}

// Projections simulates future payments for every projectable customer. A
// non-empty classFilter keeps only customers whose invoices touch that
// class.
func (r *Result) Projections(months int, scenario models.Scenario, classFilter string) *Projections {
	months = calculator.ClampHorizon(months)
	customers := r.Customers
	if classFilter != "" {
		filtered := make([]*models.Customer, 0, len(customers))
		for _, cust := range customers {
			if cust.HasClass(classFilter) {
				filtered = append(filtered, cust)
			}
		}
		customers = filtered
	}

	projector := calculator.NewProjector(r.calc, r.log)
	projections := projector.ProjectAll(customers, months, scenario)
	return &Projections{
		Scenario:  scenario,
		Months:    months,
		Customers: projections,
		Portfolio: projector.ProjectPortfolio(projections, months, scenario),
	}
}

// CustomerDetail is the drill-down view of one customer.
type CustomerDetail struct {
	Customer *models.Customer         `json:"customer"`
	Metrics  []*models.PaymentMetrics `json:"metrics,omitempty"`
	Issues   []models.CustomerIssue   `json:"issues,omitempty"`
}

// Customer returns the drill-down view for one customer by exact name.
func (r *Result) Customer(name string) (*CustomerDetail, error) {
	for _, cust := range r.Customers {
		if cust.Name != name {
			continue
		}
		detail := &CustomerDetail{Customer: cust}
		for _, m := range r.Metrics {
			if m.CustomerName == name {
				detail.Metrics = append(detail.Metrics, m)
			}
		}
		for _, issue := range r.Issues {
			if issue.CustomerName == name {
				detail.Issues = append(detail.Issues, issue)
			}
		}
		return detail, nil
	}
	return nil, ErrCustomerNotFound
}

// Classes lists the distinct class tags seen in the run, sorted.
func (r *Result) Classes() []string {
	return r.Stats.ClassesFound
}

// RunSummary is the compact acknowledgement returned right after a run.
type RunSummary struct {
	RunID                uuid.UUID       `json:"run_id"`
	Source               string          `json:"source"`
	AnalyzedAt           time.Time       `json:"analyzed_at"`
	TotalCustomers       int             `json:"total_customers"`
	CleanCustomers       int             `json:"clean_customers"`
	ProblematicCustomers int             `json:"problematic_customers"`
	TotalPlans           int             `json:"total_plans"`
	PlansTracked         int             `json:"plans_tracked"`
	TotalIssues          int             `json:"total_issues"`
	TotalOutstanding     decimal.Decimal `json:"total_outstanding"`
	RowsProcessed        int             `json:"rows_processed"`
	DataQualityScore     float64         `json:"data_quality_score"`
}

// Summary condenses the run into upload-response form.
func (r *Result) Summary() RunSummary {
	plans := 0
	total := decimal.Zero
	for _, cust := range r.Customers {
		plans += len(cust.Plans)
		total = total.Add(cust.TotalOpen)
	}
	score := 0.0
	if len(r.Customers) > 0 {
		score = math.Round(float64(len(r.Clean))/float64(len(r.Customers))*1000) / 10
	}
	return RunSummary{
		RunID:                r.ID,
		Source:               r.Source,
		AnalyzedAt:           r.AsOf,
		TotalCustomers:       len(r.Customers),
		CleanCustomers:       len(r.Clean),
		ProblematicCustomers: len(r.Problematic),
		TotalPlans:           plans,
		PlansTracked:         len(r.Metrics),
		TotalIssues:          len(r.Issues),
		TotalOutstanding:     total,
		RowsProcessed:        r.Stats.RowsProcessed,
		DataQualityScore:     score,
	}
}
