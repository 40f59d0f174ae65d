package schema

import (
	"encoding/json"
	"fmt"

	"github.com/SAP-F-2025/vrp-import-service/internal/models"
)

// ExistingRecord is a snapshot of a stored row, keyed by schema field name
type ExistingRecord struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// NewRecord returns an empty typed record for the table
func NewRecord(t TableType) (models.Record, error) {
	switch t {
	case Vehicles:
		return &models.Vehicle{}, nil
	case Jobs:
		return &models.Job{}, nil
	case Locations:
		return &models.Location{}, nil
	case Routes:
		return &models.Route{}, nil
	default:
		return nil, fmt.Errorf("unknown table type %q", t)
	}
}

// Decode converts transformed values into the table's typed record
func Decode(t TableType, values map[string]any) (models.Record, error) {
	rec, err := NewRecord(t)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s row: %w", t, err)
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", t, err)
	}
	return rec, nil
}

// ToExisting flattens a typed record into an ExistingRecord
func ToExisting(rec models.Record) (ExistingRecord, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return ExistingRecord{}, err
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return ExistingRecord{}, err
	}
	for k, v := range values {
		if arr, ok := v.([]any); ok {
			values[k] = toFloatSlice(arr)
		}
	}
	return ExistingRecord{ID: rec.GetID(), Values: values}, nil
}

func toFloatSlice(arr []any) any {
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		f, ok := item.(float64)
		if !ok {
			return arr
		}
		out = append(out, f)
	}
	return out
}
