package models

import "time"

// ImportSummary is stored in ImportSession.Summary
type ImportSummary struct {
	TotalRows       int           `json:"total_rows"`
	ImportableRows  int           `json:"importable_rows"`
	ErrorRows       int           `json:"error_rows"`
	WarningCount    int           `json:"warning_count"`
	DuplicateCount  int           `json:"duplicate_count"`
	LocationCreated int           `json:"location_created"`
	LocationReused  int           `json:"location_reused"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

// TemplateColumn describes one column of a downloadable import template
type TemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, array
	Example     string `json:"example"`
}
