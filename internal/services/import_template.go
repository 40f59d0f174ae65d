package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
)

const (
	templateSheet = "Template"
	columnsSheet  = "Columns"
)

// TemplateColumns describes the importable columns of a table schema
func TemplateColumns(s *schema.Schema) []models.TemplateColumn {
	columns := make([]models.TemplateColumn, 0, len(s.Fields))
	for _, f := range s.Fields {
		description := fmt.Sprintf("%s value", f.Type)
		switch {
		case f.Type == schema.Array:
			description = "numbers separated by commas or semicolons"
		case f.Name == s.IDField:
			description = "existing id to replace; leave empty to create"
		}
		if f.Required {
			description = "required " + description
		}

		columns = append(columns, models.TemplateColumn{
			Name:        f.Name,
			Description: description,
			Required:    f.Required,
			Type:        string(f.Type),
			Example:     f.Example,
		})
	}
	return columns
}

// GenerateTemplate builds an XLSX workbook with a header row, one example row and a column guide
func (s *importService) GenerateTemplate(ctx context.Context, table string) ([]byte, error) {
	tableType, err := schema.ParseTableType(table)
	if err != nil {
		return nil, NewValidationError("table_type", err.Error(), table)
	}
	sch, err := s.tuning.Schema(tableType)
	if err != nil {
		return nil, err
	}
	columns := TemplateColumns(sch)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), templateSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// Header and example rows
	for i, col := range columns {
		header, _ := excelize.CoordinatesToCellName(i+1, 1)
		example, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(templateSheet, header, col.Name)
		f.SetCellValue(templateSheet, example, col.Example)
		if col.Required {
			f.SetCellStyle(templateSheet, header, header, bold)
		}
	}

	// Column guide
	if _, err := f.NewSheet(columnsSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	guide := []string{"Column", "Type", "Required", "Description"}
	for i, h := range guide {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(columnsSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(guide), 1)
	f.SetCellStyle(columnsSheet, "A1", last, bold)

	for r, col := range columns {
		values := []interface{}{col.Name, col.Type, col.Required, col.Description}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(columnsSheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Debug("Generated import template", "table_type", tableType, "columns", len(columns))
	return buf.Bytes(), nil
}
