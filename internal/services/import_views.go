package services

import (
	"time"

	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	"github.com/SAP-F-2025/vrp-import-service/internal/executor"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/mapping"
	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/parser"
	"github.com/SAP-F-2025/vrp-import-service/internal/similarity"
	"github.com/SAP-F-2025/vrp-import-service/internal/validator"
	"github.com/SAP-F-2025/vrp-import-service/internal/wizard"
)

// previewRows is the number of raw rows returned with a session
const previewRows = 20

// ===== REQUESTS =====

type StartImportRequest struct {
	TableType    string `json:"table_type" form:"table_type" validate:"required,table_type"`
	AllowPartial *bool  `json:"allow_partial,omitempty" form:"allow_partial"`
	// Delimiter forces the CSV separator; empty means sniff
	Delimiter string `json:"delimiter,omitempty" form:"delimiter" validate:"omitempty,len=1"`
}

type TransitionRequest struct {
	Step string `json:"step" validate:"required"`
}

type UpdateMappingRequest struct {
	SourceColumn string `json:"source_column" validate:"required"`
	// TargetField is empty to unmap the column
	TargetField string `json:"target_field"`
}

// ResolveDuplicateRequest resolves one row, or every match when Row is zero
type ResolveDuplicateRequest struct {
	Row        int    `json:"row" validate:"gte=0"`
	Resolution string `json:"resolution" validate:"required,duplicate_resolution"`
}

type ResolveLocationRequest struct {
	Row        int    `json:"row" validate:"required,gt=0"`
	Resolution string `json:"resolution" validate:"required,location_resolution"`
	LocationID string `json:"location_id,omitempty" validate:"required_if=Resolution use_existing"`
}

// ===== VIEWS =====

type ValidationView struct {
	ErrorCount     int                  `json:"error_count"`
	WarningCount   int                  `json:"warning_count"`
	ImportableRows []int                `json:"importable_rows"`
	ErrorRows      []int                `json:"error_rows"`
	Rows           []validator.RowGroup `json:"rows"`
}

// SessionView is the client-facing state of an import session
type SessionView struct {
	ID           string                     `json:"id"`
	Owner        string                     `json:"owner"`
	TableType    string                     `json:"table_type"`
	Status       models.ImportSessionStatus `json:"status"`
	Step         wizard.Step                `json:"step"`
	Revision     int                        `json:"revision"`
	CanUndo      bool                       `json:"can_undo"`
	AllowPartial bool                       `json:"allow_partial"`

	File    FileView     `json:"file"`
	Preview []parser.Row `json:"preview"`

	Mappings        []mapping.ColumnMapping `json:"mappings"`
	MissingRequired []string                `json:"missing_required"`
	Validation      ValidationView          `json:"validation"`
	Duplicates      []duplicates.Match      `json:"duplicates"`
	DuplicateBands  map[similarity.Band]int `json:"duplicate_bands"`
	Locations       []locations.Resolution  `json:"locations"`
	Execution       *executor.State         `json:"execution,omitempty"`
	Summary         models.ImportSummary    `json:"summary"`

	StartedAt time.Time `json:"started_at"`
}

type FileView struct {
	Name        string         `json:"name"`
	Format      parser.Format  `json:"format"`
	Delimiter   string         `json:"delimiter,omitempty"`
	Size        int64          `json:"size"`
	Headers     []string       `json:"headers"`
	RowCount    int            `json:"row_count"`
	ColumnCount int            `json:"column_count"`
	Errors      []parser.Issue `json:"errors"`
	Warnings    []parser.Issue `json:"warnings"`
}

// ImportReport is the issue list and outcome of a session, cached once it is terminal
type ImportReport struct {
	SessionID string                     `json:"session_id"`
	Status    models.ImportSessionStatus `json:"status"`
	Step      wizard.Step                `json:"step"`
	Summary   models.ImportSummary       `json:"summary"`
	Issues    []validator.Issue          `json:"issues"`
	Failures  []executor.RowFailure      `json:"failures,omitempty"`
	Execution *executor.State            `json:"execution,omitempty"`

	// RowErrors is set when the report is rebuilt from the audit record
	RowErrors []models.ImportRowError `json:"row_errors,omitempty"`
}

func buildSessionView(sess *importSession, snap wizard.Snapshot, revisions int) *SessionView {
	file := snap.File
	preview := file.Rows
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}

	view := &SessionView{
		ID:           sess.id,
		Owner:        sess.owner,
		TableType:    string(snap.Schema.Table),
		Status:       sess.status,
		Step:         snap.Step,
		Revision:     snap.Revision,
		CanUndo:      revisions > 1 && snap.Step.Editable(),
		AllowPartial: snap.AllowPartial,
		File: FileView{
			Name:        file.FileName,
			Format:      file.Format,
			Delimiter:   file.Delimiter,
			Size:        file.Size,
			Headers:     file.Headers,
			RowCount:    file.RowCount,
			ColumnCount: file.ColumnCount,
			Errors:      file.Errors,
			Warnings:    file.Warnings,
		},
		Preview:         preview,
		Mappings:        snap.Mappings.Mappings(),
		MissingRequired: snap.Mappings.MissingRequired(),
		Validation: ValidationView{
			ErrorCount:     snap.Report.ErrorCount(),
			WarningCount:   snap.Report.WarningCount(),
			ImportableRows: snap.Report.ImportableRows(),
			ErrorRows:      snap.Report.ErrorRows(),
			Rows:           snap.Report.RowView(),
		},
		Duplicates:     snap.Duplicates,
		DuplicateBands: make(map[similarity.Band]int),
		Locations:      snap.Locations,
		Execution:      snap.Execution,
		Summary:        buildSummary(snap),
		StartedAt:      sess.startedAt,
	}
	for band, matches := range duplicates.ByBand(snap.Duplicates) {
		view.DuplicateBands[band] = len(matches)
	}
	return view
}

func buildSummary(snap wizard.Snapshot) models.ImportSummary {
	summary := models.ImportSummary{
		TotalRows:      len(snap.Rows),
		ImportableRows: len(snap.Report.ImportableRows()),
		ErrorRows:      len(snap.Report.ErrorRows()),
		WarningCount:   snap.Report.WarningCount(),
		DuplicateCount: len(snap.Duplicates),
	}
	for _, r := range snap.Locations {
		switch r.Resolution {
		case locations.UseExisting:
			summary.LocationReused++
		case locations.CreateNew:
			summary.LocationCreated++
		}
	}
	if exec := snap.Execution; exec != nil {
		summary.LocationCreated = exec.LocationsCreated
		if exec.FinishedAt != nil {
			summary.ProcessingTime = exec.FinishedAt.Sub(exec.StartedAt)
		}
	}
	return summary
}

func buildReport(sess *importSession, snap wizard.Snapshot) *ImportReport {
	report := &ImportReport{
		SessionID: sess.id,
		Status:    sess.status,
		Step:      snap.Step,
		Summary:   buildSummary(snap),
		Issues:    snap.Report.Issues,
		Execution: snap.Execution,
	}
	if snap.Execution != nil {
		report.Failures = snap.Execution.Failures
	}
	return report
}
