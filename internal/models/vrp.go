package models

import (
	"time"

	"gorm.io/datatypes"
)

// Record is implemented by every importable VRP table row
type Record interface {
	TableName() string
	GetID() string
	SetID(id string)
}

// Vehicle mirrors a VROOM vehicle plus fleet metadata
type Vehicle struct {
	ID              string                       `json:"id" gorm:"primaryKey;size:36"`
	Description     string                       `json:"description" gorm:"not null;size:255;index" validate:"max=255"`
	Profile         string                       `json:"profile,omitempty" gorm:"size:50"`
	StartLocationID *string                      `json:"start_location_id,omitempty" gorm:"size:36;index"`
	StartAddress    string                       `json:"start_address,omitempty" gorm:"size:500"`
	StartLatitude   *float64                     `json:"start_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	StartLongitude  *float64                     `json:"start_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	EndLatitude     *float64                     `json:"end_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	EndLongitude    *float64                     `json:"end_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Capacity        datatypes.JSONSlice[float64] `json:"capacity,omitempty" gorm:"type:jsonb" validate:"dive,gte=0"`
	Skills          datatypes.JSONSlice[float64] `json:"skills,omitempty" gorm:"type:jsonb" validate:"dive,gte=0"`
	TimeWindowStart *float64                     `json:"time_window_start,omitempty" validate:"omitempty,gte=0"`
	TimeWindowEnd   *float64                     `json:"time_window_end,omitempty" validate:"omitempty,gte=0"`
	SpeedFactor     *float64                     `json:"speed_factor,omitempty" validate:"omitempty,gt=0,lte=5"`
	MaxTasks        *float64                     `json:"max_tasks,omitempty" validate:"omitempty,gte=0"`
	MaxDistance     *float64                     `json:"max_distance,omitempty" validate:"omitempty,gte=0"`
	MaxTravelTime   *float64                     `json:"max_travel_time,omitempty" validate:"omitempty,gte=0"`
	CostsFixed      *float64                     `json:"costs_fixed,omitempty" validate:"omitempty,gte=0"`
	CostsPerHour    *float64                     `json:"costs_per_hour,omitempty" validate:"omitempty,gte=0"`
	CostsPerKm      *float64                     `json:"costs_per_km,omitempty" validate:"omitempty,gte=0"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Vehicle) TableName() string { return "vehicles" }
func (v *Vehicle) GetID() string { return v.ID }
func (v *Vehicle) SetID(id string) { v.ID = id }

// Job is a single delivery/pickup/service stop
type Job struct {
	ID              string                       `json:"id" gorm:"primaryKey;size:36"`
	Description     string                       `json:"description" gorm:"not null;size:255;index" validate:"max=255"`
	LocationID      *string                      `json:"location_id,omitempty" gorm:"size:36;index"`
	Address         string                       `json:"address,omitempty" gorm:"size:500"`
	Latitude        *float64                     `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64                     `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Setup           *float64                     `json:"setup,omitempty" validate:"omitempty,gte=0"`
	Service         *float64                     `json:"service,omitempty" validate:"omitempty,gte=0"`
	Delivery        datatypes.JSONSlice[float64] `json:"delivery,omitempty" gorm:"type:jsonb" validate:"dive,gte=0"`
	Pickup          datatypes.JSONSlice[float64] `json:"pickup,omitempty" gorm:"type:jsonb" validate:"dive,gte=0"`
	Skills          datatypes.JSONSlice[float64] `json:"skills,omitempty" gorm:"type:jsonb" validate:"dive,gte=0"`
	Priority        *float64                     `json:"priority,omitempty" validate:"omitempty,gte=0,lte=100"`
	TimeWindowStart *float64                     `json:"time_window_start,omitempty" validate:"omitempty,gte=0"`
	TimeWindowEnd   *float64                     `json:"time_window_end,omitempty" validate:"omitempty,gte=0"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Job) TableName() string { return "jobs" }
func (j *Job) GetID() string { return j.ID }
func (j *Job) SetID(id string) { j.ID = id }

type LocationType string

const (
	LocationDepot     LocationType = "depot"
	LocationCustomer  LocationType = "customer"
	LocationWarehouse LocationType = "warehouse"
	LocationHub       LocationType = "hub"
	LocationOther     LocationType = "other"
)

// Location is an entry in the master location list
type Location struct {
	ID           string   `json:"id" gorm:"primaryKey;size:36"`
	Name         string   `json:"name" gorm:"not null;size:255;index" validate:"max=255"`
	Address      string   `json:"address,omitempty" gorm:"size:500;index"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	LocationType string   `json:"location_type,omitempty" gorm:"size:20" validate:"omitempty,location_type"`
	ServiceTime  *float64 `json:"service_time,omitempty" validate:"omitempty,gte=0"`
	Notes        string   `json:"notes,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Location) TableName() string { return "locations" }
func (l *Location) GetID() string { return l.ID }
func (l *Location) SetID(id string) { l.ID = id }

// Route is a planned vehicle route
type Route struct {
	ID            string                       `json:"id" gorm:"primaryKey;size:36"`
	Name          string                       `json:"name,omitempty" gorm:"size:255"`
	VehicleID     string                       `json:"vehicle_id" gorm:"not null;size:36;index"`
	JobIDs        datatypes.JSONSlice[float64] `json:"job_ids,omitempty" gorm:"type:jsonb" validate:"dive,gte=0"`
	TotalDistance *float64                     `json:"total_distance,omitempty" validate:"omitempty,gte=0"`
	TotalDuration *float64                     `json:"total_duration,omitempty" validate:"omitempty,gte=0"`
	TotalCost     *float64                     `json:"total_cost,omitempty" validate:"omitempty,gte=0"`
	Status        string                       `json:"status,omitempty" gorm:"size:20"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Route) TableName() string { return "routes" }
func (r *Route) GetID() string { return r.ID }
func (r *Route) SetID(id string) { r.ID = id }
