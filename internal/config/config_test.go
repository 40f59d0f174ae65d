package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/vrp-import-service/internal/events"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("IMPORT_CHUNK_SIZE", "25")
	t.Setenv("IMPORT_ALLOW_PARTIAL", "true")
	t.Setenv("IMPORT_SESSION_TTL", "bogus")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Import.ChunkSize)
	assert.True(t, cfg.Import.AllowPartial)
	assert.Equal(t, time.Hour, cfg.Import.SessionTTL)
	assert.Equal(t, int64(10<<20), cfg.Import.MaxFileBytes)
}

func TestEventConfig_CreateEventPublisher(t *testing.T) {
	cfg := EventConfig{Enabled: true, Publisher: "mock", KafkaBrokers: "a:9092, b:9092,"}
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.GetKafkaBrokers())

	publisher, err := cfg.CreateEventPublisher(testLogger())
	require.NoError(t, err)
	assert.IsType(t, &events.MockEventPublisher{}, publisher)
}

func TestLoadTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	content := `
locations:
  distance_threshold_km: 0.25
  max_candidates: 3
aliases:
  jobs:
    description: [stop_name]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tuning, err := LoadTuning(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, tuning.Locations.DistanceThresholdKm)
	assert.Equal(t, 3, tuning.Locations.MaxCandidates)
	// unset keys keep their defaults
	assert.Equal(t, 0.85, tuning.Locations.AddressSimilarity)

	s, err := tuning.Schema(schema.Jobs)
	require.NoError(t, err)
	field, ok := s.Field("description")
	require.True(t, ok)
	assert.Contains(t, field.Aliases, "stop_name")

	defaults, err := LoadTuning("")
	require.NoError(t, err)
	assert.Equal(t, 0.1, defaults.Locations.DistanceThresholdKm)
}

func TestLoadTuning_UnknownTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  drivers:\n    name: [driver]\n"), 0o600))

	_, err := LoadTuning(path)
	assert.Error(t, err)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
