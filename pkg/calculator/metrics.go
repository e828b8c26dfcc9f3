// Package calculator derives payment metrics, roadmaps, and multi-month
// projections from the parsed plan graph. Everything is computed against one
// fixed analysis instant so elapsed-time math never skews inside a run.
package calculator

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

const (
	// avgDaysPerMonth converts day spans to whole elapsed months.
	avgDaysPerMonth = 30.44
	// defaultPaymentDay anchors scheduled payment dates inside a month.
	defaultPaymentDay = 15
	// maxRoadmapEntries caps roadmap generation against malformed input,
	// such as a cent-sized monthly amount on a huge balance.
	maxRoadmapEntries = 60
	// maxPriorities caps the collections list.
	maxPriorities = 20
)

// Calculator computes metrics for issue-free plans as of a fixed instant.
type Calculator struct {
	asOf       time.Time
	paymentDay int
	log        zerolog.Logger
}

// New creates a Calculator. A payment day outside 1..28 falls back to the
// default so February can never overflow.
func New(asOf time.Time, paymentDay int, log zerolog.Logger) *Calculator {
	if paymentDay < 1 || paymentDay > 28 {
		paymentDay = defaultPaymentDay
	}
	return &Calculator{asOf: asOf, paymentDay: paymentDay, log: log}
}

// AsOf returns the analysis instant the calculator is bound to.
func (c *Calculator) AsOf() time.Time { return c.asOf }

// planStanding captures where a plan sits against its expected schedule.
type planStanding struct {
	monthsElapsed int
	expected      decimal.Decimal
	actual        decimal.Decimal
	difference    decimal.Decimal
	monthsBehind  int
}

// standing measures expected-vs-actual payments for a plan. Usable on any
// plan with a positive monthly amount, gated or not.
func (c *Calculator) standing(plan *models.PaymentPlan) planStanding {
	s := planStanding{monthsElapsed: c.monthsElapsed(plan.EarliestDate)}
	periods := plan.Frequency.PeriodsElapsed(s.monthsElapsed)
	s.expected = plan.MonthlyAmount.Mul(decimal.NewFromInt(int64(periods)))
	s.actual = plan.TotalOriginal.Sub(plan.TotalOpen)
	s.difference = s.actual.Sub(s.expected)

	if s.difference.IsNegative() && plan.MonthlyAmount.IsPositive() {
		deficit := s.difference.Abs()
		if deficit.GreaterThan(plan.TotalOpen) {
			deficit = plan.TotalOpen
		}
		months := deficit.
			Div(plan.MonthlyAmount).
			Mul(decimal.NewFromInt(int64(plan.Frequency.MonthsPerPeriod())))
		s.monthsBehind = int(months.Ceil().IntPart())
	}
	return s
}

// monthsElapsed counts whole months since the earliest invoice date,
// rounding up. Zero when there is no usable date.
func (c *Calculator) monthsElapsed(earliest *time.Time) int {
	if earliest == nil || !earliest.Before(c.asOf) {
		return 0
	}
	days := int(c.asOf.Sub(*earliest).Hours() / 24)
	return int(math.Ceil(float64(days) / avgDaysPerMonth))
}

// PlanMetrics computes the full metrics record for one plan. Returns nil for
// plans gated out by issues or without a parseable monthly amount.
func (c *Calculator) PlanMetrics(plan *models.PaymentPlan) *models.PaymentMetrics {
	if plan.HasIssues || !plan.MonthlyAmount.IsPositive() {
		return nil
	}

	s := c.standing(plan)

	percentPaid := 0.0
	if plan.TotalOriginal.IsPositive() {
		percentPaid, _ = s.actual.
			Div(plan.TotalOriginal).
			Mul(decimal.NewFromInt(100)).
			Round(1).
			Float64()
	}

	status := models.StatusCurrent
	switch {
	case plan.TotalOpen.IsZero():
		status = models.StatusCompleted
	case s.monthsBehind > 0:
		status = models.StatusBehind
	}

	monthsRemaining := monthsToPayoff(plan.TotalOpen, plan.MonthlyAmount, plan.Frequency)
	var completion *time.Time
	if monthsRemaining > 0 {
		d := c.paymentDate(monthsRemaining)
		completion = &d
	}

	m := &models.PaymentMetrics{
		CustomerName:        plan.CustomerName,
		PlanID:              plan.ID,
		MonthlyAmount:       plan.MonthlyAmount,
		Frequency:           plan.Frequency,
		TotalOriginal:       plan.TotalOriginal,
		TotalOpen:           plan.TotalOpen,
		MonthsElapsed:       s.monthsElapsed,
		ExpectedPayments:    s.expected,
		ActualPayments:      s.actual,
		PaymentDifference:   s.difference,
		MonthsBehind:        s.monthsBehind,
		PercentPaid:         percentPaid,
		Status:              status,
		MonthsRemaining:     monthsRemaining,
		ProjectedCompletion: completion,
		Class:               plan.Class,
	}
	m.Roadmap, m.RoadmapTruncated = c.roadmap(plan, monthsRemaining)
	return m
}

// CustomerMetrics computes metrics for every issue-free plan of a customer.
// Plans gated by issues simply yield no record.
func (c *Calculator) CustomerMetrics(cust *models.Customer) []*models.PaymentMetrics {
	var out []*models.PaymentMetrics
	for _, plan := range cust.Plans {
		if m := c.PlanMetrics(plan); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// roadmap schedules the remaining payments at the plan's frequency. The
// final payment pays exactly the remainder; generation stops at payoff or
// the entry cap, whichever comes first.
func (c *Calculator) roadmap(plan *models.PaymentPlan, monthsRemaining int) ([]models.RoadmapEntry, bool) {
	if monthsRemaining <= 0 {
		return nil, false
	}
	step := plan.Frequency.MonthsPerPeriod()
	balance := plan.TotalOpen
	var entries []models.RoadmapEntry

	number := 1
	for month := 1; month <= monthsRemaining; month += step {
		if !balance.IsPositive() {
			break
		}
		if number > maxRoadmapEntries {
			c.log.Warn().
				Str("plan", plan.ID).
				Str("balance_left", balance.StringFixed(2)).
				Msg("Payment roadmap truncated at entry cap")
			return entries, true
		}
		payment := plan.MonthlyAmount
		if payment.GreaterThan(balance) {
			payment = balance
		}
		remaining := balance.Sub(payment)
		entries = append(entries, models.RoadmapEntry{
			PaymentNumber:    number,
			Date:             c.paymentDate(month),
			ExpectedPayment:  payment,
			RemainingBalance: remaining,
			IsFinal:          !remaining.IsPositive(),
		})
		balance = remaining
		number++
	}
	return entries, false
}

// paymentDate is the scheduled payment date the given number of whole months
// ahead, anchored to the payment day. Month arithmetic rolls the year over
// naturally.
func (c *Calculator) paymentDate(monthsAhead int) time.Time {
	return time.Date(
		c.asOf.Year(),
		c.asOf.Month()+time.Month(monthsAhead),
		c.paymentDay,
		0, 0, 0, 0,
		c.asOf.Location(),
	)
}

// monthsToPayoff converts the payments still owed into calendar months, with
// the first payment falling one month out.
func monthsToPayoff(open, monthly decimal.Decimal, freq models.Frequency) int {
	if !monthly.IsPositive() || !open.IsPositive() {
		return 0
	}
	payments := int(open.Div(monthly).Ceil().IntPart())
	return (payments-1)*freq.MonthsPerPeriod() + 1
}

// CollectionPriority is one behind plan ranked for collections outreach.
type CollectionPriority struct {
	CustomerName        string           `json:"customer_name"`
	PlanID              string           `json:"plan_id"`
	MonthsBehind        int              `json:"months_behind"`
	TotalOwed           decimal.Decimal  `json:"total_owed"`
	MonthlyAmount       decimal.Decimal  `json:"monthly_amount"`
	Frequency           models.Frequency `json:"frequency"`
	BehindAmount        decimal.Decimal  `json:"behind_amount"`
	Class               string           `json:"class,omitempty"`
	PercentPaid         float64          `json:"percent_paid"`
	ProjectedCompletion *time.Time       `json:"projected_completion,omitempty"`
}

// PrioritizeCollections ranks behind plans by urgency: most months behind
// first, then largest balance, then largest shortfall. Capped to the top 20.
func PrioritizeCollections(metrics []*models.PaymentMetrics) []CollectionPriority {
	var behind []CollectionPriority
	for _, m := range metrics {
		if m.MonthsBehind <= 0 {
			continue
		}
		shortfall := m.PaymentDifference.Abs()
		if shortfall.GreaterThan(m.TotalOpen) {
			shortfall = m.TotalOpen
		}
		behind = append(behind, CollectionPriority{
			CustomerName:        m.CustomerName,
			PlanID:              m.PlanID,
			MonthsBehind:        m.MonthsBehind,
			TotalOwed:           m.TotalOpen,
			MonthlyAmount:       m.MonthlyAmount,
			Frequency:           m.Frequency,
			BehindAmount:        shortfall,
			Class:               m.Class,
			PercentPaid:         m.PercentPaid,
			ProjectedCompletion: m.ProjectedCompletion,
		})
	}
	sort.SliceStable(behind, func(i, j int) bool {
		if behind[i].MonthsBehind != behind[j].MonthsBehind {
			return behind[i].MonthsBehind > behind[j].MonthsBehind
		}
		if !behind[i].TotalOwed.Equal(behind[j].TotalOwed) {
			return behind[i].TotalOwed.GreaterThan(behind[j].TotalOwed)
		}
		return behind[i].BehindAmount.GreaterThan(behind[j].BehindAmount)
	})
	if len(behind) > maxPriorities {
		behind = behind[:maxPriorities]
	}
	return behind
}
