package schema

import (
	"fmt"
	"strings"
)

// TableType selects the schema variant for an import
type TableType string

const (
	Vehicles  TableType = "vehicles"
	Jobs      TableType = "jobs"
	Locations TableType = "locations"
	Routes    TableType = "routes"
)

// AllTables lists the importable tables in display order
var AllTables = []TableType{Vehicles, Jobs, Locations, Routes}

// ParseTableType accepts a table name in any case
func ParseTableType(s string) (TableType, error) {
	t := TableType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTables {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown table type %q", s)
}

type DataType string

const (
	String DataType = "string"
	Number DataType = "number"
	Array  DataType = "array"
)

// FieldDef describes one importable column of a table
type FieldDef struct {
	Name     string   `json:"name" yaml:"name"`
	Type     DataType `json:"type" yaml:"type"`
	Required bool     `json:"required" yaml:"required"`
	Aliases  []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Example  string   `json:"example,omitempty" yaml:"example,omitempty"`
}

// LocationRef names the fields a row uses to point at a master location
type LocationRef struct {
	IDField      string
	AddressField string
	LatField     string
	LonField     string
	NameField    string
}

// TimeWindow is a start/end field pair that must be ordered
type TimeWindow struct {
	Start string
	End   string
}

// RuleViolation is reported by a schema rule function
type RuleViolation struct {
	Field   string
	Rule    string
	Message string
}

// Rule checks cross-field constraints on a transformed row
type Rule func(values map[string]any) []RuleViolation

// Schema is the per-table variant threaded through every stage
type Schema struct {
	Table       TableType
	Fields      []FieldDef
	IDField     string
	NaturalKeys [][]string
	FuzzyFields []string
	LocationRef *LocationRef
	TimeWindows []TimeWindow
	Rules       []Rule
}

// Field looks up a field definition by name
func (s *Schema) Field(name string) (FieldDef, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// RequiredFields returns the names of required fields in schema order
func (s *Schema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// WithAliases returns a copy of the schema with extra aliases appended per field
func (s *Schema) WithAliases(extra map[string][]string) *Schema {
	if len(extra) == 0 {
		return s
	}
	cp := *s
	cp.Fields = make([]FieldDef, len(s.Fields))
	for i, f := range s.Fields {
		f.Aliases = append(append([]string(nil), f.Aliases...), extra[f.Name]...)
		cp.Fields[i] = f
	}
	return &cp
}

// For returns the schema of a table type
func For(t TableType) (*Schema, error) {
	switch t {
	case Vehicles:
		return vehicleSchema(), nil
	case Jobs:
		return jobSchema(), nil
	case Locations:
		return locationSchema(), nil
	case Routes:
		return routeSchema(), nil
	default:
		return nil, fmt.Errorf("unknown table type %q", t)
	}
}

// MustFor is For for compile-time known tables
func MustFor(t TableType) *Schema {
	s, err := For(t)
	if err != nil {
		panic(err)
	}
	return s
}

func vehicleSchema() *Schema {
	return &Schema{
		Table: Vehicles,
		Fields: []FieldDef{
			{Name: "id", Type: String, Aliases: []string{"vehicle_id", "vehicle id", "vid", "external_id"}, Example: "veh-001"},
			{Name: "description", Type: String, Required: true, Aliases: []string{"name", "vehicle_name", "vehicle", "label"}, Example: "Truck 1"},
			{Name: "profile", Type: String, Aliases: []string{"vehicle_type", "routing_profile"}, Example: "car"},
			{Name: "start_location_id", Type: String, Aliases: []string{"depot_id", "start_depot"}},
			{Name: "start_address", Type: String, Aliases: []string{"depot_address", "origin", "home_address"}, Example: "1 Depot Road"},
			{Name: "start_latitude", Type: Number, Aliases: []string{"start_lat", "depot_lat", "lat", "latitude"}, Example: "52.5200"},
			{Name: "start_longitude", Type: Number, Aliases: []string{"start_lng", "start_lon", "depot_lng", "lng", "lon", "longitude"}, Example: "13.4050"},
			{Name: "end_latitude", Type: Number, Aliases: []string{"end_lat"}},
			{Name: "end_longitude", Type: Number, Aliases: []string{"end_lng", "end_lon"}},
			{Name: "capacity", Type: Array, Required: true, Aliases: []string{"capacities", "max_load", "load_capacity"}, Example: "[100, 20]"},
			{Name: "skills", Type: Array, Aliases: []string{"skill_ids", "capabilities"}, Example: "[1, 4]"},
			{Name: "time_window_start", Type: Number, Aliases: []string{"shift_start", "available_from", "tw_start"}, Example: "28800"},
			{Name: "time_window_end", Type: Number, Aliases: []string{"shift_end", "available_until", "tw_end"}, Example: "61200"},
			{Name: "speed_factor", Type: Number, Aliases: []string{"speed"}, Example: "1.0"},
			{Name: "max_tasks", Type: Number, Aliases: []string{"max_jobs", "max_stops"}},
			{Name: "max_distance", Type: Number},
			{Name: "max_travel_time", Type: Number},
			{Name: "costs_fixed", Type: Number, Aliases: []string{"fixed_cost"}},
			{Name: "costs_per_hour", Type: Number, Aliases: []string{"cost_per_hour", "hourly_cost"}},
			{Name: "costs_per_km", Type: Number, Aliases: []string{"cost_per_km"}},
		},
		IDField:     "id",
		NaturalKeys: [][]string{{"description", "start_address"}, {"description", "profile"}},
		FuzzyFields: []string{"description"},
		LocationRef: &LocationRef{
			IDField:      "start_location_id",
			AddressField: "start_address",
			LatField:     "start_latitude",
			LonField:     "start_longitude",
			NameField:    "description",
		},
		TimeWindows: []TimeWindow{{Start: "time_window_start", End: "time_window_end"}},
		Rules: []Rule{
			PairedCoordinates("start_latitude", "start_longitude"),
			PairedCoordinates("end_latitude", "end_longitude"),
		},
	}
}

func jobSchema() *Schema {
	return &Schema{
		Table: Jobs,
		Fields: []FieldDef{
			{Name: "id", Type: String, Aliases: []string{"job_id", "order_id", "order_number", "reference"}, Example: "job-001"},
			{Name: "description", Type: String, Required: true, Aliases: []string{"name", "job_name", "customer", "customer_name", "title"}, Example: "Deliver to ACME"},
			{Name: "location_id", Type: String, Aliases: []string{"stop_id"}},
			{Name: "address", Type: String, Aliases: []string{"delivery_address", "street", "full_address", "customer_address"}, Example: "42 Main St"},
			{Name: "latitude", Type: Number, Aliases: []string{"lat"}, Example: "52.5200"},
			{Name: "longitude", Type: Number, Aliases: []string{"lng", "lon", "long"}, Example: "13.4050"},
			{Name: "setup", Type: Number, Aliases: []string{"setup_time"}},
			{Name: "service", Type: Number, Aliases: []string{"service_time", "service_duration", "duration"}, Example: "300"},
			{Name: "delivery", Type: Array, Aliases: []string{"delivery_amount", "drop", "demand", "quantity"}, Example: "[10]"},
			{Name: "pickup", Type: Array, Aliases: []string{"pickup_amount", "collect"}},
			{Name: "skills", Type: Array, Aliases: []string{"required_skills", "skill_ids"}},
			{Name: "priority", Type: Number, Aliases: []string{"importance"}, Example: "50"},
			{Name: "time_window_start", Type: Number, Aliases: []string{"window_start", "earliest", "tw_start", "ready_time"}},
			{Name: "time_window_end", Type: Number, Aliases: []string{"window_end", "latest", "tw_end", "due_time"}},
		},
		IDField:     "id",
		NaturalKeys: [][]string{{"description", "address"}, {"description", "latitude", "longitude"}},
		FuzzyFields: []string{"description", "address"},
		LocationRef: &LocationRef{
			IDField:      "location_id",
			AddressField: "address",
			LatField:     "latitude",
			LonField:     "longitude",
			NameField:    "description",
		},
		TimeWindows: []TimeWindow{{Start: "time_window_start", End: "time_window_end"}},
		Rules: []Rule{
			PairedCoordinates("latitude", "longitude"),
			RequireOneOf("location", "location_id", "address", "latitude"),
		},
	}
}

func locationSchema() *Schema {
	return &Schema{
		Table: Locations,
		Fields: []FieldDef{
			{Name: "id", Type: String, Aliases: []string{"location_id", "site_id"}, Example: "loc-001"},
			{Name: "name", Type: String, Required: true, Aliases: []string{"location_name", "site_name", "title", "label"}, Example: "Warehouse A"},
			{Name: "address", Type: String, Aliases: []string{"street_address", "full_address", "addr"}, Example: "1 Depot Road"},
			{Name: "latitude", Type: Number, Aliases: []string{"lat"}, Example: "52.5200"},
			{Name: "longitude", Type: Number, Aliases: []string{"lng", "lon", "long"}, Example: "13.4050"},
			{Name: "location_type", Type: String, Aliases: []string{"type", "category", "kind"}, Example: "depot"},
			{Name: "service_time", Type: Number, Aliases: []string{"dwell_time"}},
			{Name: "notes", Type: String, Aliases: []string{"comments", "remarks", "description"}},
		},
		IDField:     "id",
		NaturalKeys: [][]string{{"name", "address"}, {"name", "latitude", "longitude"}},
		FuzzyFields: []string{"name", "address"},
		Rules:       []Rule{PairedCoordinates("latitude", "longitude")},
	}
}

func routeSchema() *Schema {
	return &Schema{
		Table: Routes,
		Fields: []FieldDef{
			{Name: "id", Type: String, Aliases: []string{"route_id"}, Example: "route-001"},
			{Name: "name", Type: String, Aliases: []string{"route_name", "label"}, Example: "Monday North"},
			{Name: "vehicle_id", Type: String, Required: true, Aliases: []string{"vehicle", "truck_id"}, Example: "veh-001"},
			{Name: "job_ids", Type: Array, Aliases: []string{"jobs", "stops", "job_sequence"}, Example: "[1, 2, 3]"},
			{Name: "total_distance", Type: Number, Aliases: []string{"distance"}},
			{Name: "total_duration", Type: Number, Aliases: []string{"duration"}},
			{Name: "total_cost", Type: Number, Aliases: []string{"cost"}},
			{Name: "status", Type: String, Aliases: []string{"state"}, Example: "planned"},
		},
		IDField:     "id",
		NaturalKeys: [][]string{{"vehicle_id", "name"}},
		FuzzyFields: []string{"name"},
	}
}
