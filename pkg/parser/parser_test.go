package parser

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

var testAsOf = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func testTable(rows ...models.Row) *models.Table {
	return &models.Table{
		Source: "test.csv",
		Columns: []string{
			"_0", models.ColCustomer, models.ColNested, models.ColType, models.ColDate,
			models.ColNum, models.ColTerms, models.ColOpenBalance, models.ColAmount, models.ColClass,
		},
		Rows: rows,
	}
}

func headerRow(name string) models.Row {
	return models.Row{models.ColCustomer: name}
}

func nestedRow(name string) models.Row {
	return models.Row{models.ColNested: name}
}

func totalRow(name string) models.Row {
	return models.Row{models.ColCustomer: "Total " + name}
}

func invoiceRow(num, date, terms, open, amount, class string) models.Row {
	return models.Row{
		models.ColType:        "Invoice",
		models.ColNum:         num,
		models.ColDate:        date,
		models.ColTerms:       terms,
		models.ColOpenBalance: open,
		models.ColAmount:      amount,
		models.ColClass:       class,
	}
}

func TestParseAttributesInvoicesToHeader(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$150 monthly", "300.00", "450.00", "West"),
		invoiceRow("1002", "2024-02-01", "$150 monthly", "450.00", "450.00", "West"),
		totalRow("Acme Corp"),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	if len(res.Customers) != 1 {
		t.Fatalf("Expected 1 customer, got %d", len(res.Customers))
	}
	cust := res.Customers[0]
	if cust.Name != "Acme Corp" {
		t.Errorf("Expected customer Acme Corp, got %q", cust.Name)
	}
	if len(cust.Plans) != 1 {
		t.Fatalf("Expected 1 plan, got %d", len(cust.Plans))
	}

	plan := cust.Plans[0]
	if len(plan.Invoices) != 2 {
		t.Errorf("Expected 2 invoices, got %d", len(plan.Invoices))
	}
	if !plan.MonthlyAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected monthly amount 150, got %s", plan.MonthlyAmount)
	}
	if plan.Frequency != models.FrequencyMonthly {
		t.Errorf("Expected monthly frequency, got %s", plan.Frequency)
	}
	if !plan.TotalOpen.Equal(decimal.NewFromInt(750)) {
		t.Errorf("Expected plan open total 750, got %s", plan.TotalOpen)
	}
	if !cust.TotalOpen.Equal(plan.TotalOpen) {
		t.Errorf("Expected customer total to equal plan total, got %s vs %s", cust.TotalOpen, plan.TotalOpen)
	}
	if !cust.TotalOriginal.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Expected customer original total 900, got %s", cust.TotalOriginal)
	}
}

func TestParseRowLabelOverridesState(t *testing.T) {
	row := invoiceRow("2001", "2024-03-01", "$100 monthly", "100.00", "100.00", "")
	row[models.ColCustomer] = "Walk-In Customer"

	table := testTable(
		headerRow("Acme Corp"),
		row,
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	if len(res.Customers) != 1 {
		t.Fatalf("Expected 1 customer, got %d", len(res.Customers))
	}
	if res.Customers[0].Name != "Walk-In Customer" {
		t.Errorf("Expected invoice attributed to its own row label, got %q", res.Customers[0].Name)
	}
}

func TestParseTotalRowClearsAttribution(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$150 monthly", "150.00", "150.00", ""),
		totalRow("Acme Corp"),
		invoiceRow("9999", "2024-04-01", "$50 monthly", "50.00", "50.00", ""),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	if len(res.Customers) != 1 {
		t.Fatalf("Expected orphan invoice to be dropped, got %d customers", len(res.Customers))
	}
	if res.Stats.InvoicesUnattributed != 1 {
		t.Errorf("Expected 1 unattributed invoice, got %d", res.Stats.InvoicesUnattributed)
	}

	found := false
	for _, d := range res.Stats.Defects {
		if d.Kind == models.DefectUnattributed && d.Invoice == "9999" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a missing_customer defect naming invoice 9999")
	}
}

func TestParseZeroBalanceIgnored(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$150 monthly", "0.00", "450.00", ""),
		invoiceRow("1002", "2024-02-01", "$150 monthly", "150.00", "150.00", ""),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	if res.Stats.InvoicesProcessed != 2 {
		t.Errorf("Expected 2 invoices processed, got %d", res.Stats.InvoicesProcessed)
	}
	if res.Stats.InvoicesIgnored != 1 {
		t.Errorf("Expected 1 invoice ignored, got %d", res.Stats.InvoicesIgnored)
	}
	if res.Stats.InvoicesWithBalance != 1 {
		t.Errorf("Expected 1 invoice kept, got %d", res.Stats.InvoicesWithBalance)
	}

	if len(res.Customers) != 1 || len(res.Customers[0].Plans) != 1 {
		t.Fatalf("Expected 1 customer with 1 plan, got %+v", res.Customers)
	}
	if n := len(res.Customers[0].Plans[0].Invoices); n != 1 {
		t.Errorf("Expected paid invoice dropped from plan, got %d invoices", n)
	}
}

func TestParseNestedCustomer(t *testing.T) {
	table := testTable(
		headerRow("Parent Co"),
		invoiceRow("1001", "2024-01-01", "$100 monthly", "100.00", "100.00", ""),
		nestedRow("Parent Co:Job Site"),
		invoiceRow("1002", "2024-02-01", "$200 monthly", "200.00", "200.00", ""),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	if len(res.Customers) != 2 {
		t.Fatalf("Expected 2 customers, got %d", len(res.Customers))
	}

	nested := res.Customers[1]
	if nested.Name != "Parent Co:Job Site" {
		t.Errorf("Expected nested customer name, got %q", nested.Name)
	}
	if len(nested.Plans) != 1 {
		t.Fatalf("Expected 1 nested plan, got %d", len(nested.Plans))
	}
	if !nested.Plans[0].IsNested {
		t.Error("Expected nested plan to be marked nested")
	}
	if nested.Plans[0].ParentCustomer != "Parent Co" {
		t.Errorf("Expected parent Parent Co, got %q", nested.Plans[0].ParentCustomer)
	}
}

func TestParseMergesEquivalentTerms(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$100 monthly", "100.00", "100.00", ""),
		invoiceRow("1002", "2024-02-01", "$100 Montly", "100.00", "100.00", ""),
		invoiceRow("1003", "2024-03-01", "$100 per month", "100.00", "100.00", ""),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	cust := res.Customers[0]
	if len(cust.Plans) != 1 {
		t.Fatalf("Expected equivalent terms to merge into 1 plan, got %d", len(cust.Plans))
	}
	if len(cust.Plans[0].Invoices) != 3 {
		t.Errorf("Expected 3 invoices in merged plan, got %d", len(cust.Plans[0].Invoices))
	}
	if cust.HasMultiplePlans {
		t.Error("Expected single merged plan, got multiple")
	}
}

func TestParseDistinctTermsSplitPlans(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$100 monthly", "100.00", "100.00", ""),
		invoiceRow("1002", "2024-02-01", "$250 quarterly", "250.00", "250.00", ""),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	cust := res.Customers[0]
	if len(cust.Plans) != 2 {
		t.Fatalf("Expected 2 plans for distinct terms, got %d", len(cust.Plans))
	}
	if !cust.HasMultiplePlans {
		t.Error("Expected HasMultiplePlans set")
	}
	if cust.Plans[0].ID != "Acme Corp_plan_1" || cust.Plans[1].ID != "Acme Corp_plan_2" {
		t.Errorf("Expected ordinal plan IDs, got %q and %q", cust.Plans[0].ID, cust.Plans[1].ID)
	}
}

func TestParseDominantClassAndClassList(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$100 monthly", "100.00", "100.00", "West"),
		invoiceRow("1002", "2024-02-01", "$100 monthly", "100.00", "100.00", "West"),
		invoiceRow("1003", "2024-03-01", "$100 monthly", "100.00", "100.00", "East"),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	cust := res.Customers[0]
	if cust.Plans[0].Class != "West" {
		t.Errorf("Expected dominant class West, got %q", cust.Plans[0].Class)
	}
	if len(cust.AllClasses) != 2 || cust.AllClasses[0] != "East" || cust.AllClasses[1] != "West" {
		t.Errorf("Expected sorted class list [East West], got %v", cust.AllClasses)
	}
	if len(res.Stats.ClassesFound) != 2 {
		t.Errorf("Expected 2 classes found, got %v", res.Stats.ClassesFound)
	}
}

func TestParseTypoDefectRecordedOncePerPlan(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$200 Qtrly", "200.00", "200.00", ""),
		invoiceRow("1002", "2024-02-01", "$200 Qtrly", "200.00", "200.00", ""),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	typos := 0
	for _, d := range res.Stats.Defects {
		if d.Kind == models.DefectTypo {
			typos++
			if d.PlanID != "Acme Corp_plan_1" {
				t.Errorf("Expected defect tagged with plan ID, got %q", d.PlanID)
			}
		}
	}
	if typos != 1 {
		t.Errorf("Expected 1 typo defect per plan, got %d", typos)
	}
}

func TestParseStatsCounts(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$150 monthly", "150.00", "150.00", ""),
		totalRow("Acme Corp"),
		models.Row{},
		headerRow("Beta LLC"),
		invoiceRow("2001", "2024-01-01", "", "75.00", "75.00", ""),
	)

	res := New(testAsOf, zerolog.Nop()).Parse(table)

	if res.Stats.RowsProcessed != 6 {
		t.Errorf("Expected 6 rows processed, got %d", res.Stats.RowsProcessed)
	}
	if res.Stats.CustomersFound != 2 {
		t.Errorf("Expected 2 customers, got %d", res.Stats.CustomersFound)
	}
	if res.Stats.PlansBuilt != 2 {
		t.Errorf("Expected 2 plans, got %d", res.Stats.PlansBuilt)
	}
}

func TestParseIdempotent(t *testing.T) {
	table := testTable(
		headerRow("Acme Corp"),
		invoiceRow("1001", "2024-01-01", "$150 monthly", "300.00", "450.00", "West"),
		invoiceRow("1002", "2024-02-01", "$150 monthly", "450.00", "450.00", "West"),
	)

	p := New(testAsOf, zerolog.Nop())
	first := p.Parse(table)
	second := p.Parse(table)

	if len(first.Customers) != len(second.Customers) {
		t.Fatalf("Expected identical customer counts, got %d and %d", len(first.Customers), len(second.Customers))
	}
	if !first.Customers[0].TotalOpen.Equal(second.Customers[0].TotalOpen) {
		t.Errorf("Expected identical totals across runs, got %s and %s",
			first.Customers[0].TotalOpen, second.Customers[0].TotalOpen)
	}
	if first.Stats.RowsProcessed != second.Stats.RowsProcessed {
		t.Errorf("Expected identical row counts, got %d and %d",
			first.Stats.RowsProcessed, second.Stats.RowsProcessed)
	}
}
