package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
)

// VRPPostgreSQL reads and writes the importable VRP tables
type VRPPostgreSQL struct {
	db *gorm.DB
}

func NewVRPPostgreSQL(db *gorm.DB) *VRPPostgreSQL {
	return &VRPPostgreSQL{db: db}
}

// FetchExisting snapshots every row of a table
func (v *VRPPostgreSQL) FetchExisting(ctx context.Context, table schema.TableType) ([]schema.ExistingRecord, error) {
	db := v.db.WithContext(ctx)
	switch table {
	case schema.Vehicles:
		return fetchAll[models.Vehicle](db)
	case schema.Jobs:
		return fetchAll[models.Job](db)
	case schema.Locations:
		return fetchAll[models.Location](db)
	case schema.Routes:
		return fetchAll[models.Route](db)
	default:
		return nil, fmt.Errorf("unknown table type %q", table)
	}
}

func fetchAll[T any, P interface {
	*T
	models.Record
}](db *gorm.DB) ([]schema.ExistingRecord, error) {
	var rows []T
	if err := db.Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch existing rows: %w", err)
	}

	out := make([]schema.ExistingRecord, 0, len(rows))
	for i := range rows {
		rec, err := schema.ToExisting(P(&rows[i]))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ApplyRow inserts a new row or overwrites targetID with the imported values
func (v *VRPPostgreSQL) ApplyRow(ctx context.Context, table schema.TableType, values map[string]any, mode repositories.WriteMode, targetID string) error {
	rec, err := schema.Decode(table, values)
	if err != nil {
		return err
	}

	db := v.db.WithContext(ctx)
	switch mode {
	case repositories.WriteReplace:
		if targetID == "" {
			return errors.New("replace requires a target id")
		}
		rec.SetID(targetID)
		result := db.Model(rec).Where("id = ?", targetID).Select("*").Omit("id", "created_at").Updates(rec)
		if result.Error != nil {
			return fmt.Errorf("failed to replace %s %s: %w", table, targetID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("failed to replace %s %s: %w", table, targetID, gorm.ErrRecordNotFound)
		}
		return nil
	default:
		if rec.GetID() == "" {
			rec.SetID(uuid.NewString())
		}
		if err := db.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}
		return nil
	}
}
