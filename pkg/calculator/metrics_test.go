package calculator

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func monthlyPlan(original, open int64) *models.PaymentPlan {
	return &models.PaymentPlan{
		ID:            "Acme Corp_plan_1",
		CustomerName:  "Acme Corp",
		MonthlyAmount: decimal.NewFromInt(150),
		Frequency:     models.FrequencyMonthly,
		TotalOriginal: decimal.NewFromInt(original),
		TotalOpen:     decimal.NewFromInt(open),
		EarliestDate:  date(2024, 1, 1),
	}
}

func TestPlanMetricsBehind(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	// 182 days elapsed rounds up to 6 months: 6 expected payments of 150,
	// only 150 actually paid.
	plan := monthlyPlan(1000, 850)
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics for clean plan")
	}

	if m.MonthsElapsed != 6 {
		t.Errorf("Expected 6 months elapsed, got %d", m.MonthsElapsed)
	}
	if !m.ExpectedPayments.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Expected 900 expected payments, got %s", m.ExpectedPayments)
	}
	if !m.ActualPayments.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected 150 actual payments, got %s", m.ActualPayments)
	}
	if !m.PaymentDifference.Equal(decimal.NewFromInt(-750)) {
		t.Errorf("Expected difference -750, got %s", m.PaymentDifference)
	}
	if m.MonthsBehind != 5 {
		t.Errorf("Expected 5 months behind, got %d", m.MonthsBehind)
	}
	if m.Status != models.StatusBehind {
		t.Errorf("Expected behind status, got %s", m.Status)
	}
	if m.PercentPaid != 15.0 {
		t.Errorf("Expected 15.0 percent paid, got %v", m.PercentPaid)
	}
}

func TestPlanMetricsBehindCappedByBalance(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	// Expected 900 against 150 paid leaves a 750 gap, but only 450 is still
	// owed; the deficit never exceeds the open balance.
	plan := monthlyPlan(600, 450)
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics for clean plan")
	}

	if !m.PaymentDifference.Equal(decimal.NewFromInt(-750)) {
		t.Errorf("Expected difference -750, got %s", m.PaymentDifference)
	}
	if m.MonthsBehind != 3 {
		t.Errorf("Expected 3 months behind (450 owed / 150 monthly), got %d", m.MonthsBehind)
	}
	if m.Status != models.StatusBehind {
		t.Errorf("Expected behind status, got %s", m.Status)
	}
}

func TestPlanMetricsCompletionDate(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	plan := &models.PaymentPlan{
		ID:            "Acme Corp_plan_1",
		CustomerName:  "Acme Corp",
		MonthlyAmount: decimal.NewFromInt(200),
		Frequency:     models.FrequencyMonthly,
		TotalOriginal: decimal.NewFromInt(600),
		TotalOpen:     decimal.NewFromInt(600),
		EarliestDate:  date(2024, 1, 1),
	}
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics")
	}

	if m.MonthsElapsed != 0 {
		t.Errorf("Expected 0 months elapsed when plan starts today, got %d", m.MonthsElapsed)
	}
	if m.Status != models.StatusCurrent {
		t.Errorf("Expected current status, got %s", m.Status)
	}
	if m.MonthsRemaining != 3 {
		t.Errorf("Expected 3 months remaining, got %d", m.MonthsRemaining)
	}
	want := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	if m.ProjectedCompletion == nil || !m.ProjectedCompletion.Equal(want) {
		t.Errorf("Expected completion %s, got %v", want.Format("2006-01-02"), m.ProjectedCompletion)
	}

	if len(m.Roadmap) != 3 {
		t.Fatalf("Expected 3 roadmap entries, got %d", len(m.Roadmap))
	}
	first := m.Roadmap[0]
	if !first.Date.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected first payment 2024-02-15, got %s", first.Date.Format("2006-01-02"))
	}
	last := m.Roadmap[2]
	if !last.IsFinal {
		t.Error("Expected last roadmap entry marked final")
	}
	if !last.RemainingBalance.IsZero() {
		t.Errorf("Expected zero balance after final payment, got %s", last.RemainingBalance)
	}
}

func TestPlanMetricsQuarterly(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	// 213 days elapsed rounds up to 7 months, which is 2 whole quarters.
	plan := &models.PaymentPlan{
		ID:            "Acme Corp_plan_1",
		CustomerName:  "Acme Corp",
		MonthlyAmount: decimal.NewFromInt(300),
		Frequency:     models.FrequencyQuarterly,
		TotalOriginal: decimal.NewFromInt(2100),
		TotalOpen:     decimal.NewFromInt(1800),
		EarliestDate:  date(2023, 12, 1),
	}
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics")
	}

	if m.MonthsElapsed != 7 {
		t.Errorf("Expected 7 months elapsed, got %d", m.MonthsElapsed)
	}
	if !m.ExpectedPayments.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Expected 600 expected over 2 quarters, got %s", m.ExpectedPayments)
	}
	if m.MonthsBehind != 3 {
		t.Errorf("Expected 3 months behind (1 missed quarter), got %d", m.MonthsBehind)
	}
	if m.MonthsRemaining != 16 {
		t.Errorf("Expected 16 months to payoff (6 quarterly payments), got %d", m.MonthsRemaining)
	}

	if len(m.Roadmap) != 6 {
		t.Fatalf("Expected 6 quarterly roadmap entries, got %d", len(m.Roadmap))
	}
	if !m.Roadmap[1].Date.Equal(time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected second payment 2024-11-15, got %s", m.Roadmap[1].Date.Format("2006-01-02"))
	}
}

func TestPlanMetricsSkipsGatedPlans(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	gated := monthlyPlan(1000, 850)
	gated.HasIssues = true
	if m := c.PlanMetrics(gated); m != nil {
		t.Error("Expected nil metrics for gated plan")
	}

	unparsed := monthlyPlan(1000, 850)
	unparsed.MonthlyAmount = decimal.Zero
	if m := c.PlanMetrics(unparsed); m != nil {
		t.Error("Expected nil metrics without a monthly amount")
	}
}

func TestPlanMetricsCompleted(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	plan := monthlyPlan(1000, 0)
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics")
	}
	if m.Status != models.StatusCompleted {
		t.Errorf("Expected completed status, got %s", m.Status)
	}
	if m.MonthsRemaining != 0 || m.ProjectedCompletion != nil {
		t.Errorf("Expected no remaining schedule, got %d months and %v", m.MonthsRemaining, m.ProjectedCompletion)
	}
	if len(m.Roadmap) != 0 {
		t.Errorf("Expected empty roadmap, got %d entries", len(m.Roadmap))
	}
}

func TestPlanMetricsAheadStaysCurrent(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	// Paid 900 against 900 expected.
	plan := monthlyPlan(1000, 100)
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics")
	}
	if m.MonthsBehind != 0 {
		t.Errorf("Expected 0 months behind, got %d", m.MonthsBehind)
	}
	if m.Status != models.StatusCurrent {
		t.Errorf("Expected current status, got %s", m.Status)
	}
}

func TestRoadmapTruncatedAtCap(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	plan := &models.PaymentPlan{
		ID:            "Acme Corp_plan_1",
		CustomerName:  "Acme Corp",
		MonthlyAmount: decimal.NewFromFloat(0.01),
		Frequency:     models.FrequencyMonthly,
		TotalOriginal: decimal.NewFromInt(100),
		TotalOpen:     decimal.NewFromInt(100),
		EarliestDate:  date(2024, 1, 1),
	}
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics")
	}
	if !m.RoadmapTruncated {
		t.Error("Expected roadmap truncated for cent-sized payments")
	}
	if len(m.Roadmap) != 60 {
		t.Errorf("Expected roadmap capped at 60 entries, got %d", len(m.Roadmap))
	}
}

func TestPaymentDateYearRollover(t *testing.T) {
	asOf := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	plan := &models.PaymentPlan{
		ID:            "Acme Corp_plan_1",
		CustomerName:  "Acme Corp",
		MonthlyAmount: decimal.NewFromInt(100),
		Frequency:     models.FrequencyMonthly,
		TotalOriginal: decimal.NewFromInt(200),
		TotalOpen:     decimal.NewFromInt(200),
		EarliestDate:  date(2024, 10, 1),
	}
	m := c.PlanMetrics(plan)
	if m == nil {
		t.Fatal("Failed to compute metrics")
	}
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	if m.ProjectedCompletion == nil || !m.ProjectedCompletion.Equal(want) {
		t.Errorf("Expected completion to roll into 2025-01-15, got %v", m.ProjectedCompletion)
	}
}

func TestPaymentDayFallback(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	for _, day := range []int{0, 29, 31, -3} {
		c := New(asOf, day, zerolog.Nop())
		m := c.PlanMetrics(monthlyPlan(1000, 850))
		if m == nil {
			t.Fatal("Failed to compute metrics")
		}
		if got := m.Roadmap[0].Date.Day(); got != 15 {
			t.Errorf("Expected payment day %d to fall back to 15, got %d", day, got)
		}
	}

	c := New(asOf, 28, zerolog.Nop())
	m := c.PlanMetrics(monthlyPlan(1000, 850))
	if got := m.Roadmap[0].Date.Day(); got != 28 {
		t.Errorf("Expected payment day 28 kept, got %d", got)
	}
}

func TestCustomerMetricsSkipsGated(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New(asOf, 15, zerolog.Nop())

	clean := monthlyPlan(1000, 850)
	gated := monthlyPlan(1000, 850)
	gated.ID = "Acme Corp_plan_2"
	gated.HasIssues = true

	cust := &models.Customer{Name: "Acme Corp", Plans: []*models.PaymentPlan{clean, gated}}
	metrics := c.CustomerMetrics(cust)

	if len(metrics) != 1 {
		t.Fatalf("Expected 1 metric record, got %d", len(metrics))
	}
	if metrics[0].PlanID != "Acme Corp_plan_1" {
		t.Errorf("Expected metrics for the clean plan only, got %s", metrics[0].PlanID)
	}
}

func TestPrioritizeCollectionsOrdering(t *testing.T) {
	mk := func(name string, behind int, owed int64, diff int64) *models.PaymentMetrics {
		return &models.PaymentMetrics{
			CustomerName:      name,
			PlanID:            name + "_plan_1",
			MonthsBehind:      behind,
			TotalOpen:         decimal.NewFromInt(owed),
			PaymentDifference: decimal.NewFromInt(diff),
			MonthlyAmount:     decimal.NewFromInt(100),
			Frequency:         models.FrequencyMonthly,
		}
	}

	priorities := PrioritizeCollections([]*models.PaymentMetrics{
		mk("Current Co", 0, 500, 0),
		mk("Two Behind", 2, 900, -200),
		mk("Five Small", 5, 1000, -500),
		mk("Five Large", 5, 2000, -500),
	})

	if len(priorities) != 3 {
		t.Fatalf("Expected 3 behind plans, got %d", len(priorities))
	}
	want := []string{"Five Large", "Five Small", "Two Behind"}
	for i, name := range want {
		if priorities[i].CustomerName != name {
			t.Errorf("Expected position %d to be %s, got %s", i, name, priorities[i].CustomerName)
		}
	}
}

func TestPrioritizeCollectionsShortfallCappedAtBalance(t *testing.T) {
	m := &models.PaymentMetrics{
		CustomerName:      "Acme Corp",
		PlanID:            "Acme Corp_plan_1",
		MonthsBehind:      10,
		TotalOpen:         decimal.NewFromInt(800),
		PaymentDifference: decimal.NewFromInt(-5000),
		MonthlyAmount:     decimal.NewFromInt(500),
		Frequency:         models.FrequencyMonthly,
	}

	priorities := PrioritizeCollections([]*models.PaymentMetrics{m})
	if len(priorities) != 1 {
		t.Fatalf("Expected 1 priority, got %d", len(priorities))
	}
	if !priorities[0].BehindAmount.Equal(decimal.NewFromInt(800)) {
		t.Errorf("Expected shortfall capped at open balance 800, got %s", priorities[0].BehindAmount)
	}
}

func TestPrioritizeCollectionsCapped(t *testing.T) {
	var metrics []*models.PaymentMetrics
	for i := 0; i < 25; i++ {
		metrics = append(metrics, &models.PaymentMetrics{
			CustomerName:      fmt.Sprintf("Customer %02d", i),
			PlanID:            fmt.Sprintf("Customer %02d_plan_1", i),
			MonthsBehind:      i + 1,
			TotalOpen:         decimal.NewFromInt(1000),
			PaymentDifference: decimal.NewFromInt(-100),
			MonthlyAmount:     decimal.NewFromInt(100),
			Frequency:         models.FrequencyMonthly,
		})
	}

	priorities := PrioritizeCollections(metrics)
	if len(priorities) != 20 {
		t.Fatalf("Expected list capped at 20, got %d", len(priorities))
	}
	if priorities[0].MonthsBehind != 25 {
		t.Errorf("Expected worst plan first, got %d months behind", priorities[0].MonthsBehind)
	}
}
