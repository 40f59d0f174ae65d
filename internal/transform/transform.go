package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/vrp-import-service/internal/mapping"
	"github.com/SAP-F-2025/vrp-import-service/internal/parser"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
)

// Warning is a non-blocking coercion problem on one field
type Warning struct {
	Field   string `json:"field"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

// Row is a parsed row keyed by schema field. Values hold coerced types
// (string, float64, []float64); fields that failed coercion keep their raw string.
type Row struct {
	Index    int               `json:"index"`
	Values   map[string]any    `json:"values"`
	Raw      map[string]string `json:"raw"`
	Columns  map[string]string `json:"columns"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// Transform coerces one parsed row through the accepted mappings
func Transform(row parser.Row, mappings []mapping.ColumnMapping, s *schema.Schema) Row {
	out := Row{
		Index:   row.Index,
		Values:  make(map[string]any),
		Raw:     make(map[string]string),
		Columns: make(map[string]string),
	}

	for _, m := range mappings {
		if !m.Mapped() {
			continue
		}
		field, ok := s.Field(m.TargetField)
		if !ok {
			continue
		}
		raw := strings.TrimSpace(row.Values[m.SourceColumn])
		out.Columns[field.Name] = m.SourceColumn
		if raw == "" {
			continue
		}
		out.Raw[field.Name] = raw

		value, err := coerce(raw, field.Type)
		if err != nil {
			out.Values[field.Name] = raw
			out.Warnings = append(out.Warnings, Warning{Field: field.Name, Column: m.SourceColumn, Message: err.Error()})
			continue
		}
		out.Values[field.Name] = value
	}

	for _, tw := range s.TimeWindows {
		start, okStart := schema.NumberValue(out.Values, tw.Start)
		end, okEnd := schema.NumberValue(out.Values, tw.End)
		if okStart && okEnd && start >= end {
			out.Warnings = append(out.Warnings, Warning{
				Field:   tw.Start,
				Column:  out.Columns[tw.Start],
				Message: fmt.Sprintf("%s (%v) is not before %s (%v)", tw.Start, start, tw.End, end),
			})
		}
	}
	return out
}

// TransformAll transforms every row of a parsed file
func TransformAll(file *parser.ParsedFile, mappings []mapping.ColumnMapping, s *schema.Schema) []Row {
	rows := make([]Row, len(file.Rows))
	for i, r := range file.Rows {
		rows[i] = Transform(r, mappings, s)
	}
	return rows
}

func coerce(raw string, t schema.DataType) (any, error) {
	switch t {
	case schema.Number:
		f, ok := parseFinite(raw)
		if !ok {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case schema.Array:
		return parseNumberArray(raw)
	default:
		return raw, nil
	}
}

func parseNumberArray(raw string) ([]float64, error) {
	if f, ok := parseFinite(raw); ok {
		return []float64{f}, nil
	}
	if !strings.HasPrefix(raw, "[") {
		return nil, fmt.Errorf("%q is not a JSON array of numbers", raw)
	}
	var values []float64
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("%q is not a JSON array of numbers", raw)
	}
	if values == nil {
		values = []float64{}
	}
	return values, nil
}

// parseFinite rejects NaN and infinities, which strconv accepts but JSON cannot carry
func parseFinite(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
