package models

import "strings"

// Ledger export column names. Header cells with no name are assigned
// positional names (_0, _1, ...) by the loader; the export's first unnamed
// column is a row index, the second carries customer and total labels, the
// third carries nested-customer labels.
const (
	ColType        = "Type"
	ColDate        = "Date"
	ColNum         = "Num"
	ColTerms       = "FOB"
	ColOpenBalance = "Open Balance"
	ColAmount      = "Amount"
	ColClass       = "Class"
	ColCustomer    = "_1"
	ColNested      = "_2"
)

// Row is one input record keyed by column name.
type Row map[string]string

// Get returns the trimmed cell value for a column, empty when absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// IsBlank reports whether every cell in the row is empty.
func (r Row) IsBlank() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Table is a loaded ledger export: ordered columns plus data rows.
type Table struct {
	Source  string
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table shape includes the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// DefectKind categorizes parse-level defects. Unlike CustomerIssues these do
// not gate a plan out of metrics; they feed the quality report's parse
// statistics.
type DefectKind string

const (
	DefectTypo         DefectKind = "typo"
	DefectAmount       DefectKind = "amount_error"
	DefectDate         DefectKind = "date_error"
	DefectTerms        DefectKind = "unclear_terms"
	DefectUnattributed DefectKind = "missing_customer"
)

// ParseDefect is one recorded parse-level problem, attached to the smallest
// scope that identifies it.
type ParseDefect struct {
	Kind      DefectKind `json:"kind"`
	Customer  string     `json:"customer,omitempty"`
	PlanID    string     `json:"plan_id,omitempty"`
	Invoice   string     `json:"invoice,omitempty"`
	Field     string     `json:"field,omitempty"`
	Row       int        `json:"row,omitempty"` // 1-based data row in the source file
	Message   string     `json:"message"`
	Original  string     `json:"original,omitempty"`
	Corrected string     `json:"corrected,omitempty"`
}

// ParseStats is the bookkeeping from one attribution pass.
type ParseStats struct {
	RowsProcessed        int           `json:"rows_processed"`
	InvoicesProcessed    int           `json:"invoices_processed"`
	InvoicesWithBalance  int           `json:"invoices_with_open_balance"`
	InvoicesIgnored      int           `json:"invoices_ignored"` // open balance <= 0
	InvoicesUnattributed int           `json:"invoices_unattributed"`
	CustomersFound       int           `json:"customers_found"`
	PlansBuilt           int           `json:"plans_built"`
	ClassesFound         []string      `json:"classes_found,omitempty"`
	Defects              []ParseDefect `json:"defects,omitempty"`
}
