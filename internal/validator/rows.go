package validator

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/vrp-import-service/internal/errors"
	"github.com/SAP-F-2025/vrp-import-service/internal/parser"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
)

// ValidateRows checks required presence, type conformance and business rules of
// every transformed row and folds in transform warnings and parse row errors.
func (v *Validator) ValidateRows(rows []transform.Row, s *schema.Schema, parseErrors []parser.Issue) Report {
	parseByRow := make(map[int][]parser.Issue)
	for _, pe := range parseErrors {
		parseByRow[pe.Row] = append(parseByRow[pe.Row], pe)
	}

	report := Report{Rows: make([]int, 0, len(rows))}
	for _, row := range rows {
		report.Rows = append(report.Rows, row.Index)

		for _, pe := range parseByRow[row.Index] {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Row:      row.Index,
				Column:   pe.Column,
				Message:  pe.Message,
				Category: CategoryParse,
				Rule:     "parse",
			})
		}
		if len(row.Values) == 0 && len(parseByRow[row.Index]) > 0 {
			continue
		}

		report.Issues = append(report.Issues, v.validateRow(row, s)...)

		for _, w := range row.Warnings {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityWarning,
				Row:      row.Index,
				Column:   w.Column,
				Field:    w.Field,
				Message:  w.Message,
				Category: CategoryTransform,
			})
		}
	}
	return report
}

func (v *Validator) validateRow(row transform.Row, s *schema.Schema) []Issue {
	var issues []Issue
	column := func(field string) string {
		if c, ok := row.Columns[field]; ok {
			return c
		}
		return field
	}

	for _, field := range s.RequiredFields() {
		if _, ok := row.Values[field]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Row:      row.Index,
				Column:   column(field),
				Field:    field,
				Message:  fmt.Sprintf("%s is required", field),
				Category: CategoryRequired,
				Rule:     "required",
			})
		}
	}

	typed := make(map[string]any, len(row.Values))
	for _, field := range s.Fields {
		name := field.Name
		value, ok := row.Values[name]
		if !ok {
			continue
		}
		if !conforms(value, field.Type) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Row:      row.Index,
				Column:   column(name),
				Field:    name,
				Message:  fmt.Sprintf("%s must be of type %s", name, field.Type),
				Category: CategoryType,
				Rule:     string(field.Type),
			})
			continue
		}
		typed[name] = value
	}

	issues = append(issues, v.businessIssues(row.Index, typed, s, column)...)
	return issues
}

func (v *Validator) businessIssues(index int, values map[string]any, s *schema.Schema, column func(string) string) []Issue {
	var issues []Issue
	seen := make(map[string]bool)
	add := func(field, rule, message string) {
		key := field + "|" + rule
		if seen[key] {
			return
		}
		seen[key] = true
		issues = append(issues, Issue{
			Severity: SeverityError,
			Row:      index,
			Column:   column(field),
			Field:    field,
			Message:  message,
			Category: CategoryBusiness,
			Rule:     rule,
		})
	}

	rec, err := schema.Decode(s.Table, values)
	if err != nil {
		add(s.IDField, "decode", err.Error())
		return issues
	}

	if err := v.structValidator.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				field := baseField(fe.Field())
				add(field, fe.Tag(), fmt.Sprintf("%s %s", field, errors.MessageFor(fe)))
			}
		}
	}

	for _, rule := range s.Rules {
		for _, violation := range rule(values) {
			add(violation.Field, violation.Rule, violation.Message)
		}
	}
	return issues
}

// baseField strips a dive index such as capacity[1]
func baseField(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

func conforms(value any, t schema.DataType) bool {
	switch t {
	case schema.Number:
		_, ok := value.(float64)
		return ok
	case schema.Array:
		_, ok := value.([]float64)
		return ok
	default:
		_, ok := value.(string)
		return ok
	}
}
