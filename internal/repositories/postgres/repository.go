package postgres

import (
	"gorm.io/gorm"

	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
)

// Repository combines the table, location and session stores
type Repository struct {
	*VRPPostgreSQL
	*LocationPostgreSQL
	sessions repositories.ImportSessionRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		VRPPostgreSQL:      NewVRPPostgreSQL(db),
		LocationPostgreSQL: NewLocationPostgreSQL(db),
		sessions:           NewImportSessionPostgreSQL(db),
	}
}

func (r *Repository) ImportSessions() repositories.ImportSessionRepository {
	return r.sessions
}

// AutoMigrate creates or updates every table the service owns
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Vehicle{},
		&models.Job{},
		&models.Location{},
		&models.Route{},
		&models.ImportSession{},
	)
}
