package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
)

// Tuning overrides matcher thresholds and adds column aliases per table
type Tuning struct {
	Locations locations.Options              `yaml:"locations"`
	Aliases   map[string]map[string][]string `yaml:"aliases"`
}

// LoadTuning reads a tuning file; an empty path yields the defaults
func LoadTuning(path string) (*Tuning, error) {
	tuning := &Tuning{Locations: locations.DefaultOptions()}
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, tuning); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file: %w", err)
	}

	for table := range tuning.Aliases {
		if _, err := schema.ParseTableType(table); err != nil {
			return nil, fmt.Errorf("tuning file: %w", err)
		}
	}
	return tuning, nil
}

// Schema returns the table schema with the configured extra aliases
func (t *Tuning) Schema(table schema.TableType) (*schema.Schema, error) {
	s, err := schema.For(table)
	if err != nil {
		return nil, err
	}
	if extra := t.Aliases[string(table)]; len(extra) > 0 {
		s = s.WithAliases(extra)
	}
	return s, nil
}
