package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
)

type ImportSessionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewImportSessionPostgreSQL(db *gorm.DB) repositories.ImportSessionRepository {
	return &ImportSessionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// Save inserts or updates the session record
func (i *ImportSessionPostgreSQL) Save(ctx context.Context, session *models.ImportSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return i.db.WithContext(ctx).Save(session).Error
}

func (i *ImportSessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.ImportSession, error) {
	var session models.ImportSession
	if err := i.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (i *ImportSessionPostgreSQL) List(ctx context.Context, filters repositories.ImportSessionFilters) ([]*models.ImportSession, int64, error) {
	var sessions []*models.ImportSession
	var total int64

	query := i.db.WithContext(ctx).Model(&models.ImportSession{})
	query = i.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = i.helpers.ApplyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)
	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (i *ImportSessionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.ImportSessionFilters) *gorm.DB {
	if filters.Owner != "" {
		query = query.Where("owner = ?", filters.Owner)
	}
	if filters.TableType != "" {
		query = query.Where("table_type = ?", filters.TableType)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}
