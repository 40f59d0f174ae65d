package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/models"
)

type LocationPostgreSQL struct {
	db *gorm.DB
}

func NewLocationPostgreSQL(db *gorm.DB) *LocationPostgreSQL {
	return &LocationPostgreSQL{db: db}
}

// FetchLocations snapshots the master location list
func (l *LocationPostgreSQL) FetchLocations(ctx context.Context) ([]locations.Candidate, error) {
	var rows []models.Location
	if err := l.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch locations: %w", err)
	}

	out := make([]locations.Candidate, 0, len(rows))
	for _, row := range rows {
		c := locations.Candidate{ID: row.ID, Name: row.Name, Address: row.Address}
		if row.Latitude != nil && row.Longitude != nil {
			c.Coordinates = &locations.Coordinates{Latitude: *row.Latitude, Longitude: *row.Longitude}
		}
		out = append(out, c)
	}
	return out, nil
}

// CreateLocation adds a master location and returns its id
func (l *LocationPostgreSQL) CreateLocation(ctx context.Context, loc locations.NewLocation) (string, error) {
	row := models.Location{
		ID:      uuid.NewString(),
		Name:    loc.Name,
		Address: loc.Address,
	}
	if loc.Coordinates != nil {
		lat, lon := loc.Coordinates.Latitude, loc.Coordinates.Longitude
		row.Latitude, row.Longitude = &lat, &lon
	}

	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to create location %q: %w", loc.Name, err)
	}
	return row.ID, nil
}
