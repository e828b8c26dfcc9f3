// Package parser reconstructs the customer/plan/invoice graph from the raw
// rows of a ledger export. Attribution is stateful: invoice rows belong to
// the most recent customer header unless they carry their own label.
package parser

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

// Parser runs one attribution pass over a loaded table.
type Parser struct {
	asOf time.Time
	log  zerolog.Logger
}

// New creates a Parser bound to the run's analysis instant.
func New(asOf time.Time, log zerolog.Logger) *Parser {
	return &Parser{asOf: asOf, log: log}
}

// Result is the reconstructed graph plus bookkeeping from one pass.
type Result struct {
	Customers []*models.Customer // first-seen order
	Stats     models.ParseStats
}

// planGroup accumulates the invoices sharing one normalized terms key.
type planGroup struct {
	key      string
	rawTerms string // first terms string seen for the group
	invoices []models.Invoice
}

// customerAccumulator collects one customer's plan groups in first-seen order.
type customerAccumulator struct {
	name    string
	nested  bool
	parent  string
	groups  []*planGroup
	byKey   map[string]*planGroup
	classes map[string]struct{}
}

// Parse walks the table row by row, classifies each row, attributes invoice
// rows to customers, and materializes the customer/plan graph.
func (p *Parser) Parse(table *models.Table) *Result {
	var (
		order  []*customerAccumulator
		byName = make(map[string]*customerAccumulator)
		st     State
		stats  models.ParseStats
	)

	for i, row := range table.Rows {
		stats.RowsProcessed++
		kind, next := Classify(row, st)
		if kind == RowInvoice {
			p.consumeInvoice(row, i+1, st, &stats, &order, byName)
		}
		st = next
	}

	customers := make([]*models.Customer, 0, len(order))
	for _, acc := range order {
		cust := p.materialize(acc, &stats)
		stats.PlansBuilt += len(cust.Plans)
		customers = append(customers, cust)
	}
	stats.CustomersFound = len(customers)
	stats.ClassesFound = collectClasses(customers)

	p.log.Info().
		Int("rows", stats.RowsProcessed).
		Int("customers", stats.CustomersFound).
		Int("plans", stats.PlansBuilt).
		Int("invoices_kept", stats.InvoicesWithBalance).
		Int("invoices_ignored", stats.InvoicesIgnored).
		Msg("Attribution pass complete")

	return &Result{Customers: customers, Stats: stats}
}

// consumeInvoice parses one invoice row and files it under its owner. Rows
// with no open balance are counted and dropped; rows with no resolvable
// customer are counted, logged, and dropped.
func (p *Parser) consumeInvoice(row models.Row, rowNum int, st State, stats *models.ParseStats, order *[]*customerAccumulator, byName map[string]*customerAccumulator) {
	stats.InvoicesProcessed++

	open, _ := ParseAmount(row.Get(models.ColOpenBalance))
	if !open.IsPositive() {
		stats.InvoicesIgnored++
		return
	}
	stats.InvoicesWithBalance++

	owner := st.Customer
	nested, parent := st.Nested, st.Parent
	if label := row.Get(models.ColCustomer); label != "" && !isTotalText(label) {
		owner, nested, parent = label, false, ""
	}
	if owner == "" {
		stats.InvoicesUnattributed++
		stats.Defects = append(stats.Defects, models.ParseDefect{
			Kind:    models.DefectUnattributed,
			Invoice: row.Get(models.ColNum),
			Row:     rowNum,
			Message: "Invoice row has no customer to attach to",
		})
		p.log.Warn().Int("row", rowNum).Str("invoice", row.Get(models.ColNum)).Msg("Dropping unattributable invoice")
		return
	}

	number := row.Get(models.ColNum)
	recordDefect := func(d *models.ParseDefect, field string) {
		if d == nil {
			return
		}
		d.Customer = owner
		d.Invoice = number
		d.Row = rowNum
		if d.Field == "" {
			d.Field = field
		}
		stats.Defects = append(stats.Defects, *d)
	}

	original, amountDefect := ParseAmount(row.Get(models.ColAmount))
	recordDefect(amountDefect, models.ColAmount)
	date, dateDefect := ParseDate(row.Get(models.ColDate), p.asOf)
	recordDefect(dateDefect, models.ColDate)

	rawTerms := row.Get(models.ColTerms)
	invoice := models.Invoice{
		Number:         number,
		Date:           date,
		RawTerms:       rawTerms,
		OriginalAmount: original,
		OpenBalance:    open,
		Class:          row.Get(models.ColClass),
	}

	acc := byName[owner]
	if acc == nil {
		acc = &customerAccumulator{
			name:    owner,
			nested:  nested,
			parent:  parent,
			byKey:   make(map[string]*planGroup),
			classes: make(map[string]struct{}),
		}
		byName[owner] = acc
		*order = append(*order, acc)
	}
	if invoice.Class != "" {
		acc.classes[invoice.Class] = struct{}{}
	}

	key := NormalizeTermsKey(rawTerms)
	group := acc.byKey[key]
	if group == nil {
		group = &planGroup{key: key, rawTerms: rawTerms}
		acc.byKey[key] = group
		acc.groups = append(acc.groups, group)
	}
	group.invoices = append(group.invoices, invoice)
}

// materialize turns one customer accumulator into a Customer with its plans,
// recomputing every aggregate from the invoices.
func (p *Parser) materialize(acc *customerAccumulator, stats *models.ParseStats) *models.Customer {
	cust := &models.Customer{
		Name:          acc.name,
		TotalOpen:     decimal.Zero,
		TotalOriginal: decimal.Zero,
	}

	for i, group := range acc.groups {
		plan := p.buildPlan(acc, group, i+1, stats)
		cust.Plans = append(cust.Plans, plan)
		cust.TotalOpen = cust.TotalOpen.Add(plan.TotalOpen)
		cust.TotalOriginal = cust.TotalOriginal.Add(plan.TotalOriginal)
		cust.EarliestDate = earlierOf(cust.EarliestDate, plan.EarliestDate)
		cust.LatestDate = laterOf(cust.LatestDate, plan.LatestDate)
	}

	cust.HasMultiplePlans = len(cust.Plans) > 1
	cust.AllClasses = sortedKeys(acc.classes)
	return cust
}

// buildPlan materializes one plan group: terms parsing (with typo defects
// recorded once per plan), sums, date range, and dominant class.
func (p *Parser) buildPlan(acc *customerAccumulator, group *planGroup, ordinal int, stats *models.ParseStats) *models.PaymentPlan {
	planID := fmt.Sprintf("%s_plan_%d", acc.name, ordinal)

	terms := ParseTerms(group.rawTerms)
	for _, d := range terms.Defects {
		d.Customer = acc.name
		d.PlanID = planID
		stats.Defects = append(stats.Defects, d)
	}

	plan := &models.PaymentPlan{
		ID:             planID,
		CustomerName:   acc.name,
		MonthlyAmount:  terms.MonthlyAmount,
		Frequency:      terms.Frequency,
		TotalOriginal:  decimal.Zero,
		TotalOpen:      decimal.Zero,
		Invoices:       group.invoices,
		TermsKey:       group.key,
		IsNested:       acc.nested,
		ParentCustomer: acc.parent,
	}
	if group.key != NoTermsKey {
		plan.RawTerms = group.rawTerms
	}

	for i := range group.invoices {
		inv := &group.invoices[i]
		plan.TotalOriginal = plan.TotalOriginal.Add(inv.OriginalAmount)
		plan.TotalOpen = plan.TotalOpen.Add(inv.OpenBalance)
		plan.EarliestDate = earlierOf(plan.EarliestDate, inv.Date)
		plan.LatestDate = laterOf(plan.LatestDate, inv.Date)
	}
	plan.Class = dominantClass(group.invoices)
	return plan
}

// dominantClass is the most frequent class tag among the invoices; ties go
// to the tag seen first.
func dominantClass(invoices []models.Invoice) string {
	counts := make(map[string]int)
	var seen []string
	for _, inv := range invoices {
		if inv.Class == "" {
			continue
		}
		if counts[inv.Class] == 0 {
			seen = append(seen, inv.Class)
		}
		counts[inv.Class]++
	}
	best, bestCount := "", 0
	for _, class := range seen {
		if counts[class] > bestCount {
			best, bestCount = class, counts[class]
		}
	}
	return best
}

func collectClasses(customers []*models.Customer) []string {
	set := make(map[string]struct{})
	for _, c := range customers {
		for _, class := range c.AllClasses {
			set[class] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func earlierOf(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}

func laterOf(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}
