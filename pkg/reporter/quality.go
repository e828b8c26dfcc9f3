package reporter

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

// maxTopProblematic caps the ranked problematic-customer list.
const maxTopProblematic = 15

// QualitySummary is the headline block of the quality report.
type QualitySummary struct {
	ReportDate             time.Time       `json:"report_date"`
	TotalCustomers         int             `json:"total_customers"`
	CleanCustomers         int             `json:"clean_customers"`
	ProblematicCustomers   int             `json:"problematic_customers"`
	TotalPaymentPlans      int             `json:"total_payment_plans"`
	MultiPlanCustomers     int             `json:"customers_with_multiple_plans"`
	TotalIssues            int             `json:"total_issues"`
	TotalOutstanding       decimal.Decimal `json:"total_outstanding"`
	CleanOutstanding       decimal.Decimal `json:"clean_outstanding"`
	ProblematicOutstanding decimal.Decimal `json:"problematic_outstanding"`
	PercentWithIssues      float64         `json:"percentage_with_issues"`
	DataQualityScore       float64         `json:"data_quality_score"`
}

// ProcessingStats echoes the parser's aggregate counters.
type ProcessingStats struct {
	RowsProcessed        int      `json:"total_rows_processed"`
	InvoicesProcessed    int      `json:"total_invoices_processed"`
	InvoicesWithBalance  int      `json:"invoices_with_open_balance"`
	InvoicesIgnored      int      `json:"invoices_ignored_zero_balance"`
	InvoicesUnattributed int      `json:"invoices_unattributed"`
	ClassesFound         []string `json:"classes_found"`
	ParseDefects         int      `json:"parse_defects"`
}

// ClassImpact summarizes data quality within one class tag.
type ClassImpact struct {
	TotalCustomers       int             `json:"total_customers"`
	CleanCustomers       int             `json:"clean_customers"`
	ProblematicCustomers int             `json:"problematic_customers"`
	TotalOutstanding     decimal.Decimal `json:"total_outstanding"`
}

// Recommendation is one suggested cleanup action, lowest priority number
// first.
type Recommendation struct {
	Priority        int             `json:"priority"`
	Action          string          `json:"action"`
	Impact          string          `json:"impact"`
	AffectedBalance decimal.Decimal `json:"affected_balance"`
	Effort          string          `json:"effort"`
	Urgency         string          `json:"urgency"`
}

// ProblemCustomer is one problematic customer ranked by open balance.
type ProblemCustomer struct {
	CustomerName   string             `json:"customer_name"`
	TotalOpen      decimal.Decimal    `json:"total_open"`
	TotalPlans     int                `json:"total_plans"`
	IssueCount     int                `json:"issue_count"`
	CriticalIssues []models.IssueKind `json:"critical_issues,omitempty"`
	AllIssues      []models.IssueKind `json:"all_issues"`
	Classes        []string           `json:"classes,omitempty"`
}

// CriticalIssueGroup rolls up the critical issues of one kind.
type CriticalIssueGroup struct {
	Kind              models.IssueKind `json:"issue_type"`
	Count             int              `json:"count"`
	CustomersAffected int              `json:"customers_affected"`
	ExampleCustomer   string           `json:"example_customer"`
}

// QualityReport is the run's full data-quality picture.
type QualityReport struct {
	Summary           QualitySummary            `json:"summary"`
	Processing        ProcessingStats           `json:"data_processing"`
	IssueBreakdown    map[models.IssueKind]int  `json:"issue_breakdown"`
	SeverityBreakdown map[models.Severity]int   `json:"issue_severity_breakdown"`
	DefectBreakdown   map[models.DefectKind]int `json:"parse_defect_breakdown,omitempty"`
	ClassBreakdown    map[string]*ClassImpact   `json:"class_breakdown,omitempty"`
	Recommendations   []Recommendation          `json:"recommendations"`
	TopProblematic    []ProblemCustomer         `json:"top_problematic_customers"`
	CriticalIssues    []CriticalIssueGroup      `json:"critical_issues"`
}

// BuildQualityReport assembles the quality report for one run.
func BuildQualityReport(in Input) *QualityReport {
	report := &QualityReport{
		IssueBreakdown:    make(map[models.IssueKind]int),
		SeverityBreakdown: make(map[models.Severity]int),
	}
	for _, issue := range in.Issues {
		report.IssueBreakdown[issue.Kind]++
		report.SeverityBreakdown[issue.Severity]++
	}

	plans := 0
	multiPlan := 0
	for _, cust := range in.Customers {
		plans += len(cust.Plans)
		if cust.HasMultiplePlans {
			multiPlan++
		}
	}
	report.Summary = QualitySummary{
		ReportDate:             in.AsOf,
		TotalCustomers:         len(in.Customers),
		CleanCustomers:         len(in.Clean),
		ProblematicCustomers:   len(in.Problematic),
		TotalPaymentPlans:      plans,
		MultiPlanCustomers:     multiPlan,
		TotalIssues:            len(in.Issues),
		TotalOutstanding:       sumOpen(in.Customers),
		CleanOutstanding:       sumOpen(in.Clean),
		ProblematicOutstanding: sumOpen(in.Problematic),
		PercentWithIssues:      percent(len(in.Problematic), len(in.Customers)),
		DataQualityScore:       percent(len(in.Clean), len(in.Customers)),
	}

	if in.Stats != nil {
		report.Processing = ProcessingStats{
			RowsProcessed:        in.Stats.RowsProcessed,
			InvoicesProcessed:    in.Stats.InvoicesProcessed,
			InvoicesWithBalance:  in.Stats.InvoicesWithBalance,
			InvoicesIgnored:      in.Stats.InvoicesIgnored,
			InvoicesUnattributed: in.Stats.InvoicesUnattributed,
			ClassesFound:         in.Stats.ClassesFound,
			ParseDefects:         len(in.Stats.Defects),
		}
		if len(in.Stats.Defects) > 0 {
			report.DefectBreakdown = make(map[models.DefectKind]int)
			for _, defect := range in.Stats.Defects {
				report.DefectBreakdown[defect.Kind]++
			}
		}
	}

	report.ClassBreakdown = classImpacts(in)

	byCustomer := issuesByCustomer(in.Issues)
	report.TopProblematic = topProblematic(in.Problematic, byCustomer)
	report.CriticalIssues = criticalIssueGroups(in.Issues)
	report.Recommendations = recommendations(report, in, byCustomer)
	return report
}

func classImpacts(in Input) map[string]*ClassImpact {
	problematic := make(map[string]bool, len(in.Problematic))
	for _, cust := range in.Problematic {
		problematic[cust.Name] = true
	}

	impacts := make(map[string]*ClassImpact)
	for _, cust := range in.Customers {
		for _, class := range cust.AllClasses {
			impact := impacts[class]
			if impact == nil {
				impact = &ClassImpact{TotalOutstanding: decimal.Zero}
				impacts[class] = impact
			}
			impact.TotalCustomers++
			impact.TotalOutstanding = impact.TotalOutstanding.Add(cust.TotalOpen)
			if problematic[cust.Name] {
				impact.ProblematicCustomers++
			} else {
				impact.CleanCustomers++
			}
		}
	}
	if len(impacts) == 0 {
		return nil
	}
	return impacts
}

func topProblematic(problematic []*models.Customer, byCustomer map[string][]models.CustomerIssue) []ProblemCustomer {
	ranked := make([]*models.Customer, len(problematic))
	copy(ranked, problematic)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalOpen.GreaterThan(ranked[j].TotalOpen)
	})
	if len(ranked) > maxTopProblematic {
		ranked = ranked[:maxTopProblematic]
	}

	out := make([]ProblemCustomer, 0, len(ranked))
	for _, cust := range ranked {
		issues := byCustomer[cust.Name]
		pc := ProblemCustomer{
			CustomerName: cust.Name,
			TotalOpen:    cust.TotalOpen,
			TotalPlans:   len(cust.Plans),
			IssueCount:   len(issues),
			Classes:      cust.AllClasses,
		}
		for _, issue := range issues {
			pc.AllIssues = appendKindOnce(pc.AllIssues, issue.Kind)
			if issue.Severity == models.SeverityCritical {
				pc.CriticalIssues = appendKindOnce(pc.CriticalIssues, issue.Kind)
			}
		}
		out = append(out, pc)
	}
	return out
}

func criticalIssueGroups(issues []models.CustomerIssue) []CriticalIssueGroup {
	type group struct {
		count     int
		customers map[string]bool
		example   string
	}
	groups := make(map[models.IssueKind]*group)
	var order []models.IssueKind
	for _, issue := range issues {
		if issue.Severity != models.SeverityCritical {
			continue
		}
		g := groups[issue.Kind]
		if g == nil {
			g = &group{customers: make(map[string]bool)}
			groups[issue.Kind] = g
			order = append(order, issue.Kind)
		}
		g.count++
		g.customers[issue.CustomerName] = true
		g.example = issue.CustomerName
	}

	out := make([]CriticalIssueGroup, 0, len(order))
	for _, kind := range order {
		g := groups[kind]
		out = append(out, CriticalIssueGroup{
			Kind:              kind,
			Count:             g.count,
			CustomersAffected: len(g.customers),
			ExampleCustomer:   g.example,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CustomersAffected > out[j].CustomersAffected
	})
	return out
}

func recommendations(report *QualityReport, in Input, byCustomer map[string][]models.CustomerIssue) []Recommendation {
	var recs []Recommendation

	if n := report.IssueBreakdown[models.IssueNoPaymentTerms]; n > 0 {
		affected := decimal.Zero
		for _, cust := range in.Problematic {
			if hasKind(byCustomer[cust.Name], models.IssueNoPaymentTerms) {
				affected = affected.Add(cust.TotalOpen)
			}
		}
		recs = append(recs, Recommendation{
			Priority:        1,
			Action:          "Add payment terms to customers without them",
			Impact:          fmt.Sprintf("%d payment plans cannot be properly tracked", n),
			AffectedBalance: affected,
			Effort:          "Low - add payment amount and frequency to the FOB field",
			Urgency:         "High - prevents payment tracking entirely",
		})
	}

	if n := report.IssueBreakdown[models.IssueMultiplePaymentTerms]; n > 0 {
		recs = append(recs, Recommendation{
			Priority:        2,
			Action:          "Standardize payment terms for customers with multiple payment plans",
			Impact:          fmt.Sprintf("%d customers have ambiguous payment schedules", n),
			AffectedBalance: decimal.Zero,
			Effort:          "Medium - contact customers to confirm the current arrangement",
			Urgency:         "Medium - may lead to collection confusion",
		})
	}

	if class, impact := worstClass(report.ClassBreakdown); class != "" {
		recs = append(recs, Recommendation{
			Priority:        3,
			Action:          fmt.Sprintf("Focus data cleanup efforts on the %s class", class),
			Impact:          fmt.Sprintf("%d out of %d customers in this class have issues", impact.ProblematicCustomers, impact.TotalCustomers),
			AffectedBalance: decimal.Zero,
			Effort:          "Medium - targeted cleanup approach",
			Urgency:         "Medium - improves overall data quality",
		})
	}

	if in.Stats != nil && len(in.Stats.Defects) > 0 {
		recs = append(recs, Recommendation{
			Priority:        4,
			Action:          "Correct recurring typos in the payment-terms column at the source",
			Impact:          fmt.Sprintf("%d field values needed automatic correction this run", len(in.Stats.Defects)),
			AffectedBalance: decimal.Zero,
			Effort:          "Low - fix the entries once in the ledger",
			Urgency:         "Low - corrections are applied automatically but hide drift",
		})
	}

	return recs
}

// worstClass picks the class with the highest problematic ratio. Ties keep
// the alphabetically first class so the report is stable run to run.
func worstClass(impacts map[string]*ClassImpact) (string, *ClassImpact) {
	names := make([]string, 0, len(impacts))
	for name := range impacts {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		worst      string
		worstRatio float64
		pick       *ClassImpact
	)
	for _, name := range names {
		impact := impacts[name]
		if impact.TotalCustomers == 0 || impact.ProblematicCustomers == 0 {
			continue
		}
		ratio := float64(impact.ProblematicCustomers) / float64(impact.TotalCustomers)
		if ratio > worstRatio {
			worstRatio = ratio
			worst = name
			pick = impact
		}
	}
	return worst, pick
}
