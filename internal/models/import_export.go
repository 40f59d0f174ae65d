package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportSessionStatus string

const (
	ImportActive    ImportSessionStatus = "active"
	ImportCompleted ImportSessionStatus = "completed"
	ImportFailed    ImportSessionStatus = "failed"
	ImportAborted   ImportSessionStatus = "aborted"
)

// Terminal reports whether no further work will happen in the session
func (s ImportSessionStatus) Terminal() bool {
	return s == ImportCompleted || s == ImportFailed || s == ImportAborted
}

// ImportSession is the audit record written when a session reaches a terminal state
type ImportSession struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"` // UUID
	Owner     string `json:"owner" gorm:"not null;index;size:255"`
	TableType string `json:"table_type" gorm:"not null;size:20;index"`

	// File info
	FileName string `json:"file_name" gorm:"not null;size:255"`
	FileType string `json:"file_type" gorm:"not null;size:20"` // csv, xlsx
	FileSize int64  `json:"file_size" gorm:"not null"`

	// Session status
	Status   ImportSessionStatus `json:"status" gorm:"default:active;index"`
	Step     string              `json:"step" gorm:"size:20"`
	Progress int                 `json:"progress" gorm:"default:0"` // 0-100

	// Execution counters
	TotalRows     int `json:"total_rows"`
	ProcessedRows int `json:"processed_rows"`
	SuccessCount  int `json:"success_count"`
	ErrorCount    int `json:"error_count"`
	SkippedCount  int `json:"skipped_count"`

	// Results
	Issues  datatypes.JSON `json:"issues" gorm:"type:jsonb"` // []ImportRowError
	Summary datatypes.JSON `json:"summary" gorm:"type:jsonb"`

	// Timestamps
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ImportRowError struct {
	Row      int    `json:"row"`
	Column   string `json:"column,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
}
