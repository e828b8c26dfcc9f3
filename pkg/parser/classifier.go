package parser

import (
	"strings"

	"github.com/Vork-21/payplan/pkg/models"
)

// RowKind classifies one input row.
type RowKind int

const (
	RowBlank RowKind = iota
	RowInvoice
	RowTotal
	RowCustomerHeader
	RowNestedHeader
	RowIgnored // carries neither data nor structure; state unchanged
)

// invoiceMarker is the row-type literal the export uses for invoice lines.
const invoiceMarker = "Invoice"

// State is the attribution context carried across rows: which customer block
// the reader is inside, and the enclosing top-level customer when that block
// is nested.
type State struct {
	Customer string
	Parent   string // most recent top-level header; set while inside its block
	Nested   bool   // Customer came from a nested-customer header
}

// isTotalText reports whether label text marks a section total.
func isTotalText(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "total")
}

// Classify assigns a row kind and returns the state to carry forward.
// Priority order: blank, invoice, total, customer header, nested header.
// A row matching none of these is ignored.
func Classify(row models.Row, st State) (RowKind, State) {
	if row.IsBlank() {
		return RowBlank, st
	}
	if row.Get(models.ColType) == invoiceMarker {
		return RowInvoice, st
	}
	label := row.Get(models.ColCustomer)
	if isTotalText(label) {
		return RowTotal, State{}
	}
	if label != "" {
		return RowCustomerHeader, State{Customer: label, Parent: label}
	}
	if nested := row.Get(models.ColNested); nested != "" && !isTotalText(nested) {
		return RowNestedHeader, State{Customer: nested, Parent: st.Parent, Nested: true}
	}
	return RowIgnored, st
}
