package validator

import "sort"

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Category string

const (
	CategoryParse     Category = "parse"
	CategoryRequired  Category = "required"
	CategoryType      Category = "type"
	CategoryBusiness  Category = "business"
	CategoryTransform Category = "transform"
)

// Issue is a single validation finding on one row
type Issue struct {
	Severity Severity `json:"severity"`
	Row      int      `json:"row"`
	Column   string   `json:"column,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Category Category `json:"category"`
	Rule     string   `json:"rule,omitempty"`
}

// Report holds every issue of a validation run; the grouped views are derived from Issues
type Report struct {
	Rows   []int   `json:"rows"`
	Issues []Issue `json:"issues"`
}

func (r Report) Errors() []Issue {
	return r.filter(SeverityError)
}

func (r Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r Report) ErrorCount() int {
	return len(r.Errors())
}

func (r Report) WarningCount() int {
	return len(r.Warnings())
}

func (r Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// ByCategory groups issues by category
func (r Report) ByCategory() map[Category][]Issue {
	out := make(map[Category][]Issue)
	for _, i := range r.Issues {
		out[i.Category] = append(out[i.Category], i)
	}
	return out
}

// ByRow groups issues by row index
func (r Report) ByRow() map[int][]Issue {
	out := make(map[int][]Issue)
	for _, i := range r.Issues {
		out[i.Row] = append(out[i.Row], i)
	}
	return out
}

// RowGroup is one entry of the row view, ordered by row
type RowGroup struct {
	Row    int     `json:"row"`
	Issues []Issue `json:"issues"`
}

// RowView returns ByRow as a slice sorted by row index
func (r Report) RowView() []RowGroup {
	byRow := r.ByRow()
	out := make([]RowGroup, 0, len(byRow))
	for row, issues := range byRow {
		out = append(out, RowGroup{Row: row, Issues: issues})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// HasErrors reports whether a row carries at least one error
func (r Report) HasErrors(row int) bool {
	for _, i := range r.Issues {
		if i.Row == row && i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ImportableRows returns rows with zero errors, warnings notwithstanding
func (r Report) ImportableRows() []int {
	erroring := make(map[int]bool)
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			erroring[i.Row] = true
		}
	}
	out := make([]int, 0, len(r.Rows))
	for _, row := range r.Rows {
		if !erroring[row] {
			out = append(out, row)
		}
	}
	return out
}

// ErrorRows returns rows that carry at least one error
func (r Report) ErrorRows() []int {
	seen := make(map[int]bool)
	var out []int
	for _, i := range r.Issues {
		if i.Severity == SeverityError && !seen[i.Row] {
			seen[i.Row] = true
			out = append(out, i.Row)
		}
	}
	sort.Ints(out)
	return out
}
