package analysis

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vork-21/payplan/pkg/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	// statusUntracked marks customers with no issue-free plan to measure.
	statusUntracked = "untracked"
)

// ListOptions filter, sort, and page the customer listing.
type ListOptions struct {
	Class    string
	Status   string // current, behind, completed, untracked, or issues
	Search   string // case-insensitive substring on the customer name
	Sort     string // name, balance, or months_behind
	Page     int
	PageSize int
}

// CustomerRow is one row of the customer listing.
type CustomerRow struct {
	Name          string          `json:"customer_name"`
	TotalPlans    int             `json:"total_plans"`
	TotalOpen     decimal.Decimal `json:"total_open"`
	TotalOriginal decimal.Decimal `json:"total_original"`
	Classes       []string        `json:"classes,omitempty"`
	HasIssues     bool            `json:"has_issues"`
	IssueCount    int             `json:"issue_count"`
	MonthsBehind  int             `json:"months_behind"`
	Status        string          `json:"status"`
	Projectable   bool            `json:"projectable"`
}

// CustomerPage is one page of the listing.
type CustomerPage struct {
	Customers  []CustomerRow `json:"customers"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// ListCustomers pages through every customer in the run.
func (r *Result) ListCustomers(opts ListOptions) *CustomerPage {
	rows := filterRows(r.customerRows(), opts)
	sortRows(rows, opts.Sort)

	size := opts.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	total := len(rows)
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return &CustomerPage{
		Customers:  rows[start:end],
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}
}

func (r *Result) customerRows() []CustomerRow {
	issueCounts := make(map[string]int, len(r.Issues))
	for _, issue := range r.Issues {
		issueCounts[issue.CustomerName]++
	}
	tracked := make(map[string][]*models.PaymentMetrics)
	for _, m := range r.Metrics {
		tracked[m.CustomerName] = append(tracked[m.CustomerName], m)
	}

	rows := make([]CustomerRow, 0, len(r.Customers))
	for _, cust := range r.Customers {
		row := CustomerRow{
			Name:          cust.Name,
			TotalPlans:    len(cust.Plans),
			TotalOpen:     cust.TotalOpen,
			TotalOriginal: cust.TotalOriginal,
			Classes:       cust.AllClasses,
			IssueCount:    issueCounts[cust.Name],
			HasIssues:     issueCounts[cust.Name] > 0,
			Status:        statusUntracked,
		}
		for _, plan := range cust.Plans {
			if plan.MonthlyAmount.IsPositive() && plan.TotalOpen.IsPositive() {
				row.Projectable = true
				break
			}
		}
		if metrics := tracked[cust.Name]; len(metrics) > 0 {
			status := models.StatusCurrent
			completed := false
			for _, m := range metrics {
				if m.MonthsBehind > row.MonthsBehind {
					row.MonthsBehind = m.MonthsBehind
				}
				switch m.Status {
				case models.StatusBehind:
					status = models.StatusBehind
				case models.StatusCompleted:
					completed = true
				}
			}
			if status != models.StatusBehind && completed {
				status = models.StatusCompleted
			}
			row.Status = string(status)
		}
		rows = append(rows, row)
	}
	return rows
}

func filterRows(rows []CustomerRow, opts ListOptions) []CustomerRow {
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	status := strings.ToLower(strings.TrimSpace(opts.Status))

	out := make([]CustomerRow, 0, len(rows))
	for _, row := range rows {
		if opts.Class != "" && !containsString(row.Classes, opts.Class) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(row.Name), search) {
			continue
		}
		switch status {
		case "":
		case "issues":
			if !row.HasIssues {
				continue
			}
		default:
			if row.Status != status {
				continue
			}
		}
		out = append(out, row)
	}
	return out
}

func sortRows(rows []CustomerRow, key string) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "balance":
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].TotalOpen.GreaterThan(rows[j].TotalOpen)
		})
	case "months_behind":
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].MonthsBehind > rows[j].MonthsBehind
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
		})
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
