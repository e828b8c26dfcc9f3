package calculator

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

const (
	// DefaultHorizon is the projection span when the caller gives none.
	DefaultHorizon = 12
	// MaxHorizon bounds projection requests.
	MaxHorizon = 60
	// workoutMonths is the flat payoff span behind renegotiation targets.
	workoutMonths = 30
)

// ClampHorizon normalizes a requested months-ahead value into 1..MaxHorizon.
func ClampHorizon(months int) int {
	if months < 1 {
		return DefaultHorizon
	}
	if months > MaxHorizon {
		return MaxHorizon
	}
	return months
}

// Projector simulates future payments per customer and scenario.
type Projector struct {
	calc *Calculator
	log  zerolog.Logger
}

// NewProjector creates a Projector sharing the calculator's analysis instant.
func NewProjector(calc *Calculator, log zerolog.Logger) *Projector {
	return &Projector{calc: calc, log: log}
}

// ProjectCustomer builds the month-by-month payment timeline for one
// customer. Plans need a positive monthly amount and an open balance to be
// projectable; a customer with none returns nil.
//
// Under the current scenario, plans that are behind contribute nothing for
// the whole horizon: the model assumes a behind customer does not resume
// without intervention. Under the restart scenario every plan amortizes
// afresh from month one.
func (p *Projector) ProjectCustomer(cust *models.Customer, months int, scenario models.Scenario) *models.CustomerProjection {
	months = ClampHorizon(months)

	var (
		eligible     []*models.PaymentPlan
		skip         map[string]bool
		totalBehind  int
		totalMonthly = decimal.Zero
		totalOwed    = decimal.Zero
	)
	for _, plan := range cust.Plans {
		if !plan.MonthlyAmount.IsPositive() || !plan.TotalOpen.IsPositive() {
			continue
		}
		eligible = append(eligible, plan)
		totalMonthly = totalMonthly.Add(plan.MonthlyAmount)
		totalOwed = totalOwed.Add(plan.TotalOpen)
		if mb := p.calc.standing(plan).monthsBehind; mb > 0 {
			if skip == nil {
				skip = make(map[string]bool)
			}
			skip[plan.ID] = true
			totalBehind += mb
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	proj := &models.CustomerProjection{
		CustomerName:        cust.Name,
		TotalMonthlyPayment: totalMonthly,
		TotalOwed:           totalOwed,
		PlanCount:           len(eligible),
	}

	switch {
	case totalBehind > 0 && scenario == models.ScenarioRestart:
		proj.Status = models.StatusRestart
		proj.Timeline = p.timeline(eligible, months, nil)
		proj.CompletionMonth = completionMonth(eligible, months)
	case totalBehind > 0:
		proj.Status = models.StatusBehind
		proj.MonthsBehind = totalBehind
		proj.RenegotiationNeeded = true
		proj.Timeline = p.timeline(eligible, months, skip)
	default:
		proj.Status = models.StatusCurrent
		proj.Timeline = p.timeline(eligible, months, nil)
		proj.CompletionMonth = completionMonth(eligible, months)
	}
	return proj
}

// timeline walks the horizon month by month. Plans in skip never pay.
func (p *Projector) timeline(plans []*models.PaymentPlan, months int, skip map[string]bool) []models.TimelineMonth {
	tl := make([]models.TimelineMonth, 0, months)
	for month := 1; month <= months; month++ {
		entry := models.TimelineMonth{
			Month:   month,
			Date:    p.calc.paymentDate(month),
			Payment: decimal.Zero,
		}
		for _, plan := range plans {
			if skip[plan.ID] {
				continue
			}
			payment := paymentForMonth(plan, month)
			if payment == nil {
				continue
			}
			entry.Payment = entry.Payment.Add(payment.Amount)
			entry.ActivePlans++
			entry.Plans = append(entry.Plans, *payment)
		}
		tl = append(tl, entry)
	}
	return tl
}

// paymentForMonth returns the plan's scheduled payment in the given future
// month, or nil when the plan does not pay that month. The final payment is
// capped to the remaining balance, mirroring roadmap generation.
func paymentForMonth(plan *models.PaymentPlan, month int) *models.PlanPayment {
	step := plan.Frequency.MonthsPerPeriod()
	if (month-1)%step != 0 {
		return nil
	}
	number := (month-1)/step + 1
	total := int(plan.TotalOpen.Div(plan.MonthlyAmount).Ceil().IntPart())
	if number > total {
		return nil
	}

	amount := plan.MonthlyAmount
	final := number == total
	remainingAfter := decimal.Zero
	if final {
		paidBefore := plan.MonthlyAmount.Mul(decimal.NewFromInt(int64(number - 1)))
		remainder := plan.TotalOpen.Sub(paidBefore)
		if remainder.IsNegative() {
			remainder = decimal.Zero
		}
		if remainder.LessThan(amount) {
			amount = remainder
		}
	} else {
		remainingAfter = plan.TotalOpen.Sub(plan.MonthlyAmount.Mul(decimal.NewFromInt(int64(number))))
		if remainingAfter.IsNegative() {
			remainingAfter = decimal.Zero
		}
	}

	return &models.PlanPayment{
		PlanID:           plan.ID,
		Amount:           amount,
		PaymentNumber:    number,
		TotalPayments:    total,
		Frequency:        plan.Frequency,
		Class:            plan.Class,
		IsFinal:          final,
		RemainingBalance: remainingAfter,
	}
}

// completionMonth is the month the last plan pays off, capped to the horizon.
func completionMonth(plans []*models.PaymentPlan, months int) int {
	longest := 0
	for _, plan := range plans {
		if m := monthsToPayoff(plan.TotalOpen, plan.MonthlyAmount, plan.Frequency); m > longest {
			longest = m
		}
	}
	if longest > months {
		return months
	}
	return longest
}

// ProjectAll projects every customer and orders the result for review:
// renegotiation cases first, then by monthly payment descending.
func (p *Projector) ProjectAll(customers []*models.Customer, months int, scenario models.Scenario) []*models.CustomerProjection {
	var out []*models.CustomerProjection
	for _, cust := range customers {
		if proj := p.ProjectCustomer(cust, months, scenario); proj != nil {
			out = append(out, proj)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RenegotiationNeeded != out[j].RenegotiationNeeded {
			return out[i].RenegotiationNeeded
		}
		return out[i].TotalMonthlyPayment.GreaterThan(out[j].TotalMonthlyPayment)
	})
	return out
}

// PortfolioMonth aggregates every customer timeline for one future month.
type PortfolioMonth struct {
	Month           int             `json:"month"`
	Date            time.Time       `json:"date"`
	ExpectedPayment decimal.Decimal `json:"expected_payment"`
	ActiveCustomers int             `json:"active_customers"`
	CompletingPlans int             `json:"completing_plans"`
	BehindCustomers int             `json:"behind_customers"`
	CumulativeTotal decimal.Decimal `json:"cumulative_total"`
}

// CategoryCounts tallies projected customers by standing.
type CategoryCounts struct {
	Current             int `json:"current"`
	Behind              int `json:"behind"`
	Restart             int `json:"restart_scenario"`
	RenegotiationNeeded int `json:"renegotiation_needed"`
}

// RenegotiationCandidate is one behind customer with suggested workout terms.
type RenegotiationCandidate struct {
	CustomerName     string          `json:"customer_name"`
	MonthsBehind     int             `json:"months_behind"`
	TotalOwed        decimal.Decimal `json:"total_owed"`
	CurrentMonthly   decimal.Decimal `json:"current_monthly"`
	SuggestedMonthly decimal.Decimal `json:"suggested_monthly"`
	Priority         string          `json:"priority"`
}

// PortfolioProjection is the aggregated view across all projected customers.
type PortfolioProjection struct {
	Scenario          models.Scenario          `json:"scenario"`
	MonthsAhead       int                      `json:"months_ahead"`
	Timeline          []PortfolioMonth         `json:"monthly_projections"`
	TotalCustomers    int                      `json:"total_customers"`
	TotalExpected     decimal.Decimal          `json:"total_expected"`
	AverageMonthly    decimal.Decimal          `json:"average_monthly"`
	CustomersPaying   int                      `json:"customers_with_payments"`
	TotalMonthsBehind int                      `json:"total_months_behind"`
	PotentialRecovery decimal.Decimal          `json:"potential_recovery"`
	Categories        CategoryCounts           `json:"customer_categories"`
	Renegotiations    []RenegotiationCandidate `json:"renegotiation_candidates,omitempty"`
}

// ProjectPortfolio rolls customer projections up into one portfolio view.
func (p *Projector) ProjectPortfolio(projections []*models.CustomerProjection, months int, scenario models.Scenario) *PortfolioProjection {
	months = ClampHorizon(months)
	out := &PortfolioProjection{
		Scenario:          scenario,
		MonthsAhead:       months,
		TotalCustomers:    len(projections),
		TotalExpected:     decimal.Zero,
		AverageMonthly:    decimal.Zero,
		PotentialRecovery: decimal.Zero,
	}

	cumulative := decimal.Zero
	for month := 1; month <= months; month++ {
		pm := PortfolioMonth{
			Month:           month,
			Date:            p.calc.paymentDate(month),
			ExpectedPayment: decimal.Zero,
		}
		for _, proj := range projections {
			if month > len(proj.Timeline) {
				continue
			}
			tm := proj.Timeline[month-1]
			pm.ExpectedPayment = pm.ExpectedPayment.Add(tm.Payment)
			if tm.Payment.IsPositive() {
				pm.ActiveCustomers++
			}
			for _, pd := range tm.Plans {
				if pd.IsFinal {
					pm.CompletingPlans++
				}
			}
			if proj.Status == models.StatusBehind {
				pm.BehindCustomers++
			}
		}
		cumulative = cumulative.Add(pm.ExpectedPayment)
		pm.CumulativeTotal = cumulative
		out.Timeline = append(out.Timeline, pm)
	}

	out.TotalExpected = cumulative
	if months > 0 {
		out.AverageMonthly = cumulative.Div(decimal.NewFromInt(int64(months))).Round(2)
	}

	for _, proj := range projections {
		switch proj.Status {
		case models.StatusCurrent:
			out.Categories.Current++
		case models.StatusBehind:
			out.Categories.Behind++
		case models.StatusRestart:
			out.Categories.Restart++
		}
		if proj.RenegotiationNeeded {
			out.Categories.RenegotiationNeeded++
			out.TotalMonthsBehind += proj.MonthsBehind
			out.PotentialRecovery = out.PotentialRecovery.Add(proj.TotalOwed)
		}
		if hasAnyPayment(proj) {
			out.CustomersPaying++
		}
	}

	out.Renegotiations = RenegotiationCandidates(projections)
	return out
}

func hasAnyPayment(proj *models.CustomerProjection) bool {
	for _, tm := range proj.Timeline {
		if tm.Payment.IsPositive() {
			return true
		}
	}
	return false
}

// RenegotiationCandidates lists customers needing workout terms, worst
// first. The suggested amount assumes a flat 30-month payoff of what is owed.
func RenegotiationCandidates(projections []*models.CustomerProjection) []RenegotiationCandidate {
	var out []RenegotiationCandidate
	for _, proj := range projections {
		if !proj.RenegotiationNeeded {
			continue
		}
		priority := "low"
		switch {
		case proj.MonthsBehind > 6:
			priority = "high"
		case proj.MonthsBehind > 3:
			priority = "medium"
		}
		out = append(out, RenegotiationCandidate{
			CustomerName:     proj.CustomerName,
			MonthsBehind:     proj.MonthsBehind,
			TotalOwed:        proj.TotalOwed,
			CurrentMonthly:   proj.TotalMonthlyPayment,
			SuggestedMonthly: proj.TotalOwed.Div(decimal.NewFromInt(workoutMonths)).Round(2),
			Priority:         priority,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MonthsBehind > out[j].MonthsBehind
	})
	return out
}
