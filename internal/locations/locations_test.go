package locations

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
)

var master = []Candidate{
	{ID: "loc-depot", Name: "Main Depot", Address: "1 Depot Road, Berlin", Coordinates: &Coordinates{Latitude: 52.5200, Longitude: 13.4050}},
	{ID: "loc-far", Name: "Far Hub", Address: "7 Harbour St, Hamburg", Coordinates: &Coordinates{Latitude: 53.5511, Longitude: 9.9937}},
	{ID: "loc-noaddr", Name: "Yard"},
}

func jobRow(index int, values map[string]any) transform.Row {
	return transform.Row{Index: index, Values: values}
}

func TestHaversine(t *testing.T) {
	a := Coordinates{Latitude: 52.5200, Longitude: 13.4050}
	b := Coordinates{Latitude: 52.52045, Longitude: 13.4050}

	assert.InDelta(t, 0.05, Haversine(a, b), 0.001)
	assert.InDelta(t, 255, Haversine(a, *master[1].Coordinates), 5)
	assert.Equal(t, 0.0, Haversine(a, a))
}

func TestResolveBatch_CoordinateWithin50mAutoResolves(t *testing.T) {
	s := schema.MustFor(schema.Jobs)
	rows := []transform.Row{
		jobRow(1, map[string]any{"description": "Drop", "latitude": 52.52045, "longitude": 13.4050}),
	}

	resolutions := ResolveBatch(rows, master, s, DefaultOptions())
	require.Len(t, resolutions, 1)

	r := resolutions[0]
	assert.Equal(t, ManualSelect, r.Resolution)
	require.Len(t, r.Matches, 1)
	assert.Equal(t, "loc-depot", r.Matches[0].LocationID)
	assert.Equal(t, MatchCoordinate, r.Matches[0].MatchType)
	require.NotNil(t, r.Matches[0].DistanceKm)
	assert.InDelta(t, 0.9, r.Matches[0].Confidence, 0.01)

	resolved := AutoResolve(resolutions, DefaultOptions())
	assert.Equal(t, UseExisting, resolved[0].Resolution)
	assert.Equal(t, "loc-depot", resolved[0].SelectedLocationID)
	assert.Nil(t, resolved[0].NewLocation)

	// the input slice is not modified
	assert.Equal(t, ManualSelect, resolutions[0].Resolution)
}

func TestResolveBatch_NonFiniteCoordinates(t *testing.T) {
	s := schema.MustFor(schema.Jobs)
	rows := []transform.Row{
		jobRow(1, map[string]any{"description": "NaN", "latitude": math.NaN(), "longitude": 13.4050}),
		jobRow(2, map[string]any{"description": "Inf", "latitude": 52.52, "longitude": math.Inf(1), "address": "1 Depot Road, Berlin"}),
		jobRow(3, map[string]any{"description": "Finite", "latitude": 52.5200, "longitude": 13.4050}),
	}
	broken := append([]Candidate{{ID: "loc-nan", Name: "Broken", Coordinates: &Coordinates{Latitude: math.NaN(), Longitude: 0}}}, master...)

	resolutions := ResolveBatch(rows, broken, s, DefaultOptions())
	require.Len(t, resolutions, 2)

	assert.Equal(t, 2, resolutions[0].ImportRowIndex)
	assert.Nil(t, resolutions[0].SourceCoordinates)
	require.Len(t, resolutions[0].Matches, 1)
	assert.Equal(t, MatchAddress, resolutions[0].Matches[0].MatchType)

	assert.Equal(t, 3, resolutions[1].ImportRowIndex)
	require.Len(t, resolutions[1].Matches, 1)
	assert.Equal(t, "loc-depot", resolutions[1].Matches[0].LocationID)

	_, err := json.Marshal(resolutions)
	assert.NoError(t, err)
}

func TestResolveBatch_AddressMatching(t *testing.T) {
	s := schema.MustFor(schema.Jobs)
	rows := []transform.Row{
		jobRow(1, map[string]any{"description": "Exact", "address": "1 depot road berlin"}),
		jobRow(2, map[string]any{"description": "Typo", "address": "1 Depot Raod, Berlin"}),
		jobRow(3, map[string]any{"description": "Nothing", "address": "99 Unknown Lane"}),
	}

	resolutions := ResolveBatch(rows, master, s, DefaultOptions())
	require.Len(t, resolutions, 3)

	assert.Equal(t, MatchAddress, resolutions[0].Matches[0].MatchType)
	assert.Equal(t, 1.0, resolutions[0].Matches[0].Confidence)

	require.Len(t, resolutions[1].Matches, 1)
	assert.Equal(t, MatchFuzzy, resolutions[1].Matches[0].MatchType)
	assert.GreaterOrEqual(t, resolutions[1].Matches[0].Confidence, 0.85)

	assert.Empty(t, resolutions[2].Matches)
	assert.Equal(t, CreateNew, resolutions[2].Resolution)
	require.NotNil(t, resolutions[2].NewLocation)
	assert.Equal(t, "Nothing", resolutions[2].NewLocation.Name)
	assert.Equal(t, "99 Unknown Lane", resolutions[2].NewLocation.Address)

	assert.Equal(t, []int{1, 2}, PendingRows(resolutions))
}

func TestResolveBatch_PassThrough(t *testing.T) {
	rows := []transform.Row{
		jobRow(1, map[string]any{"description": "Linked", "location_id": "loc-depot", "address": "1 Depot Road"}),
		jobRow(2, map[string]any{"description": "No location"}),
	}

	assert.Empty(t, ResolveBatch(rows, master, schema.MustFor(schema.Jobs), DefaultOptions()))
	assert.Nil(t, ResolveBatch(rows, master, schema.MustFor(schema.Locations), DefaultOptions()))
}

func TestAutoResolve_LowConfidenceCreatesAndSkipStays(t *testing.T) {
	resolutions := []Resolution{
		{ImportRowIndex: 1, SourceName: "A", Resolution: ManualSelect, Matches: []Match{{LocationID: "x", Confidence: 0.8}}},
		{ImportRowIndex: 2, Resolution: Skip, Matches: []Match{{LocationID: "y", Confidence: 1}}},
	}

	out := AutoResolve(resolutions, DefaultOptions())
	assert.Equal(t, CreateNew, out[0].Resolution)
	require.NotNil(t, out[0].NewLocation)
	assert.Equal(t, "A", out[0].NewLocation.Name)
	assert.Equal(t, Skip, out[1].Resolution)
	assert.Empty(t, out[1].SelectedLocationID)
}

func TestAutoResolve_KeepsUserChoices(t *testing.T) {
	resolutions := []Resolution{
		{ImportRowIndex: 1, Resolution: UseExisting, SelectedLocationID: "second",
			Matches: []Match{{LocationID: "first", Confidence: 0.95}, {LocationID: "second", Confidence: 0.85}}},
		{ImportRowIndex: 2, SourceName: "Low", Resolution: UseExisting, SelectedLocationID: "weak",
			Matches: []Match{{LocationID: "weak", Confidence: 0.5}}},
		{ImportRowIndex: 3, SourceName: "Fresh", Resolution: CreateNew, NewLocation: &NewLocation{Name: "Fresh"},
			Matches: []Match{{LocationID: "near", Confidence: 0.99}}},
		{ImportRowIndex: 4, Resolution: ManualSelect, Matches: []Match{{LocationID: "best", Confidence: 0.9}}},
	}

	out := AutoResolve(resolutions, DefaultOptions())
	assert.Equal(t, "second", out[0].SelectedLocationID)
	assert.Equal(t, UseExisting, out[1].Resolution)
	assert.Equal(t, "weak", out[1].SelectedLocationID)
	assert.Equal(t, CreateNew, out[2].Resolution)
	assert.Empty(t, out[2].SelectedLocationID)
	assert.Equal(t, UseExisting, out[3].Resolution)
	assert.Equal(t, "best", out[3].SelectedLocationID)
}

func TestManualOperations(t *testing.T) {
	resolutions := []Resolution{
		{ImportRowIndex: 3, SourceName: "Stop", SourceAddress: "Main St", Resolution: ManualSelect},
	}

	selected, err := Select(resolutions, 3, "loc-depot")
	require.NoError(t, err)
	assert.Equal(t, UseExisting, selected[0].Resolution)
	assert.Equal(t, "loc-depot", selected[0].SelectedLocationID)
	assert.Equal(t, ManualSelect, resolutions[0].Resolution)

	created, err := CreateNewFor(selected, 3)
	require.NoError(t, err)
	assert.Equal(t, CreateNew, created[0].Resolution)
	assert.Empty(t, created[0].SelectedLocationID)
	assert.Equal(t, "Main St", created[0].NewLocation.Address)

	skipped, err := SkipRow(created, 3)
	require.NoError(t, err)
	assert.Equal(t, Skip, skipped[0].Resolution)
	assert.Nil(t, skipped[0].NewLocation)

	_, err = Select(resolutions, 9, "loc-depot")
	assert.ErrorIs(t, err, ErrNoResolution)

	_, err = Select(resolutions, 3, "")
	assert.ErrorIs(t, err, ErrNoLocationID)
}
