package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
)

// WriteMode selects how a row is applied to its table
type WriteMode string

const (
	WriteCreate  WriteMode = "create"
	WriteReplace WriteMode = "replace"
)

// ===== SNAPSHOT SOURCES =====

// ExistingDataSource reads the current rows of a table for duplicate detection
type ExistingDataSource interface {
	FetchExisting(ctx context.Context, table schema.TableType) ([]schema.ExistingRecord, error)
}

// LocationSource reads the master location list
type LocationSource interface {
	FetchLocations(ctx context.Context) ([]locations.Candidate, error)
}

// ===== SINKS =====

// MutationSink applies one imported row; targetID is set for WriteReplace
type MutationSink interface {
	ApplyRow(ctx context.Context, table schema.TableType, values map[string]any, mode WriteMode, targetID string) error
}

// LocationSink creates master locations and returns the new id
type LocationSink interface {
	CreateLocation(ctx context.Context, loc locations.NewLocation) (string, error)
}

// ===== AUDIT =====

type ImportSessionFilters struct {
	Owner     string                      `json:"owner"`
	TableType string                      `json:"table_type"`
	Status    *models.ImportSessionStatus `json:"status"`
	DateFrom  *time.Time                  `json:"date_from"`
	DateTo    *time.Time                  `json:"date_to"`
	Limit     int                         `json:"limit"`
	Offset    int                         `json:"offset"`
}

// ImportSessionRepository persists finished import sessions
type ImportSessionRepository interface {
	Save(ctx context.Context, session *models.ImportSession) error
	GetByID(ctx context.Context, id string) (*models.ImportSession, error)
	List(ctx context.Context, filters ImportSessionFilters) ([]*models.ImportSession, int64, error)
}

// Repository groups every store the import service needs
type Repository interface {
	ExistingDataSource
	LocationSource
	MutationSink
	LocationSink
	ImportSessions() ImportSessionRepository
}
