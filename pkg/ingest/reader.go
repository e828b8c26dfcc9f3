// Package ingest loads ledger exports into the tabular form the parser
// consumes and validates their structure before any analysis runs.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Vork-21/payplan/pkg/models"
)

// RequiredColumns must all be present before any invoice can be processed.
var RequiredColumns = []string{models.ColType, models.ColOpenBalance, models.ColAmount}

// ValidationError reports a structurally unusable table. It aborts the run
// before any partial results are produced.
type ValidationError struct {
	MissingColumns []string
	Empty          bool
}

func (e *ValidationError) Error() string {
	if e.Empty {
		return "input table is empty"
	}
	return "missing required columns: " + strings.Join(e.MissingColumns, ", ")
}

// ReadFile loads a ledger export from disk, dispatching on the extension.
func ReadFile(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadUpload(f, filepath.Base(path))
}

// ReadUpload loads an export from a stream. The filename picks the format.
func ReadUpload(r io.Reader, filename string) (*models.Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r, filename)
	case ".xlsx":
		return ReadXLSX(r, filename)
	}
	return nil, fmt.Errorf("unsupported file type %q: expected .csv or .xlsx", filepath.Ext(filename))
}

// ReadCSV reads a comma-separated export. Exports routinely have ragged
// rows, so no fixed field count is enforced.
func ReadCSV(r io.Reader, source string) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return tableFromRecords(records, source), nil
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader, source string) (*models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", source)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return tableFromRecords(rows, source), nil
}

// tableFromRecords turns raw records into a Table. The first record is the
// header; header cells with no name get positional names (_0, _1, ...) so
// the leading label columns of ledger exports stay addressable.
func tableFromRecords(records [][]string, source string) *models.Table {
	table := &models.Table{Source: source}
	if len(records) == 0 {
		return table
	}

	columns := make([]string, len(records[0]))
	for i, name := range records[0] {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("_%d", i)
		}
		columns[i] = name
	}
	table.Columns = columns

	for _, record := range records[1:] {
		row := make(models.Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// Validate fails fast when the table cannot hold any processable invoice.
func Validate(table *models.Table) error {
	if len(table.Columns) == 0 {
		return &ValidationError{Empty: true}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{MissingColumns: missing}
	}
	if len(table.Rows) == 0 {
		return &ValidationError{Empty: true}
	}
	return nil
}
