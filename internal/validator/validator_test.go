package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/vrp-import-service/internal/mapping"
	"github.com/SAP-F-2025/vrp-import-service/internal/parser"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
)

func validateCSV(t *testing.T, table schema.TableType, content string) Report {
	t.Helper()
	file, err := parser.Parse(context.Background(), strings.NewReader(content), "upload.csv", parser.Options{})
	require.NoError(t, err)

	s := schema.MustFor(table)
	rows := transform.TransformAll(file, mapping.GenerateMappings(file.Headers, s), s)
	return New().ValidateRows(rows, s, file.Errors)
}

func TestValidateRows_NegativeCapacity(t *testing.T) {
	report := validateCSV(t, schema.Vehicles,
		"description,capacity\nTruck 1,100\nTruck 2,-5\nTruck 3,\"[10, 20]\"\n")

	errs := report.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Row)
	assert.Equal(t, "capacity", errs[0].Field)
	assert.Equal(t, "capacity", errs[0].Column)
	assert.Equal(t, CategoryBusiness, errs[0].Category)
	assert.Equal(t, "gte", errs[0].Rule)

	assert.Equal(t, []int{1, 3}, report.ImportableRows())
	assert.Equal(t, []int{2}, report.ErrorRows())
}

func TestValidateRows_WarningsNeverBlock(t *testing.T) {
	report := validateCSV(t, schema.Jobs,
		"description,address,time_window_start,time_window_end\nStop,Main St 1,3600,1800\n")

	assert.Zero(t, report.ErrorCount())
	require.Equal(t, 1, report.WarningCount())
	assert.Equal(t, CategoryTransform, report.Warnings()[0].Category)
	assert.Equal(t, []int{1}, report.ImportableRows())
}

func TestValidateRows_RequiredAndType(t *testing.T) {
	report := validateCSV(t, schema.Vehicles,
		"description,capacity,speed_factor\n,10,fast\n")

	byCategory := report.ByCategory()
	require.Len(t, byCategory[CategoryRequired], 1)
	assert.Equal(t, "description", byCategory[CategoryRequired][0].Field)

	require.Len(t, byCategory[CategoryType], 1)
	assert.Equal(t, "speed_factor", byCategory[CategoryType][0].Field)

	// the failed coercion is also reported as a transform warning
	require.Len(t, byCategory[CategoryTransform], 1)
	assert.Empty(t, report.ImportableRows())
}

func TestValidateRows_BusinessRules(t *testing.T) {
	report := validateCSV(t, schema.Locations,
		"name,latitude,location_type\nDepot,91,depot\nHub,,spaceport\n")

	rows := report.ByRow()

	var rules []string
	for _, issue := range rows[1] {
		rules = append(rules, issue.Rule)
	}
	assert.ElementsMatch(t, []string{"lte", "paired_coordinates"}, rules)

	require.Len(t, rows[2], 1)
	assert.Equal(t, "location_type", rows[2][0].Field)
	assert.Contains(t, rows[2][0].Message, "valid location type")
}

func TestValidateRows_JobNeedsLocation(t *testing.T) {
	report := validateCSV(t, schema.Jobs, "description,priority\nStop,50\nOther,150\n")

	rows := report.ByRow()
	require.Len(t, rows[1], 1)
	assert.Equal(t, "require_one_of", rows[1][0].Rule)

	var rules []string
	for _, issue := range rows[2] {
		rules = append(rules, issue.Rule)
	}
	assert.ElementsMatch(t, []string{"lte", "require_one_of"}, rules)
}

func TestValidateRows_ParseErrorsFolded(t *testing.T) {
	report := validateCSV(t, schema.Vehicles,
		"description,capacity\nTruck 1,1\nTruck\"2,2\nTruck 3,3\n")

	require.Equal(t, 1, report.ErrorCount())
	assert.Equal(t, CategoryParse, report.Errors()[0].Category)
	assert.Equal(t, 2, report.Errors()[0].Row)
	assert.Equal(t, []int{1, 3}, report.ImportableRows())

	view := report.RowView()
	require.Len(t, view, 1)
	assert.Equal(t, 2, view[0].Row)
}

type resolutionRequest struct {
	Table     string `json:"table" validate:"required,table_type"`
	Duplicate string `json:"duplicate" validate:"omitempty,duplicate_resolution"`
	Location  string `json:"location" validate:"omitempty,location_resolution"`
}

func TestValidate_CustomTags(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(resolutionRequest{Table: "jobs", Duplicate: "replace", Location: "use_existing"}))

	err := v.Validate(resolutionRequest{Table: "drivers", Duplicate: "merge", Location: "manual_select"})
	require.Error(t, err)

	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, errs, 3)
	assert.Equal(t, "table", errs[0].Field)
	assert.Equal(t, "table_type", errs[0].Rule)
	assert.Equal(t, "duplicate", errs[1].Field)
	assert.Equal(t, "location", errs[2].Field)
}
