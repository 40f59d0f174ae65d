package duplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/similarity"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
)

func row(index int, values map[string]any) transform.Row {
	return transform.Row{Index: index, Values: values}
}

func TestDetect_WarehouseSharingName(t *testing.T) {
	s := schema.MustFor(schema.Locations)
	existing := []schema.ExistingRecord{
		{ID: "loc-1", Values: map[string]any{"name": "Warehouse A", "address": "99 Harbour St"}},
		{ID: "loc-2", Values: map[string]any{"name": "Warehouse A", "address": "1 Depot Road", "latitude": 52.1}},
	}
	rows := []transform.Row{
		row(1, map[string]any{"name": "Warehouse A", "address": "1 depot road", "latitude": 52.2}),
	}

	matches := Detect(rows, existing, s)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, 1, m.ImportRowIndex)
	assert.Equal(t, "loc-2", m.ExistingRecordID)
	assert.Equal(t, MatchNaturalKey, m.MatchType)
	assert.GreaterOrEqual(t, m.Confidence, 0.8)
	assert.InDelta(t, 0.95, m.Confidence, 1e-9)
	assert.Equal(t, similarity.BandHigh, m.Band)
	assert.Equal(t, Replace, m.Suggested)
	assert.Equal(t, Unresolved, m.Resolution)
	assert.Equal(t, []string{"latitude"}, m.ConflictingFields)
}

func TestDetect_ConfidenceOrdering(t *testing.T) {
	s := schema.MustFor(schema.Locations)
	d := NewDetector(nil)

	rec := schema.ExistingRecord{ID: "loc-9", Values: map[string]any{"name": "Depot", "address": "Main St 1"}}
	r := row(1, map[string]any{"id": "loc-9", "name": "Depot", "address": "Main St 1"})

	id := IDConfidence(r, rec, s)
	natural := NaturalKeyConfidence(r, rec, s)
	fuzzy := d.FuzzyConfidence(r, rec, s)

	assert.Equal(t, 1.0, id)
	assert.Greater(t, id, natural)
	assert.Greater(t, natural, fuzzy)
	assert.Greater(t, fuzzy, 0.0)

	matches := d.Detect([]transform.Row{r}, []schema.ExistingRecord{rec}, s)
	require.Len(t, matches, 1)
	assert.Equal(t, MatchID, matches[0].MatchType)
}

func TestDetect_PartialNaturalKey(t *testing.T) {
	s := schema.MustFor(schema.Jobs)
	existing := []schema.ExistingRecord{
		{ID: "job-1", Values: map[string]any{"description": "Drop", "latitude": 52.0, "longitude": 13.0}},
	}
	rows := []transform.Row{
		row(1, map[string]any{"description": "Drop", "latitude": 52.0, "longitude": 14.0}),
	}

	matches := Detect(rows, existing, s)
	require.Len(t, matches, 1)
	assert.Equal(t, MatchNaturalKey, matches[0].MatchType)
	assert.InDelta(t, 0.875, matches[0].Confidence, 1e-9)
	assert.Equal(t, similarity.BandMedium, matches[0].Band)
	assert.Equal(t, Create, matches[0].Suggested)
}

func TestDetect_FuzzyAndNoMatch(t *testing.T) {
	s := schema.MustFor(schema.Locations)
	existing := []schema.ExistingRecord{
		{ID: "loc-1", Values: map[string]any{"name": "Warehouse B"}},
	}
	rows := []transform.Row{
		row(1, map[string]any{"name": "Warehouse A"}),
		row(2, map[string]any{"name": "Customer 17"}),
		row(3, map[string]any{"address": "nowhere"}),
	}

	matches := Detect(rows, existing, s)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, 1, m.ImportRowIndex)
	assert.Equal(t, MatchFuzzy, m.MatchType)
	assert.Less(t, m.Confidence, similarity.MediumConfidence)
	assert.InDelta(t, 0.909*similarity.FuzzyConfidenceCap, m.Confidence, 0.001)
	assert.Equal(t, similarity.BandLow, m.Band)
	assert.Equal(t, Create, m.Suggested)
}

func TestResolutionOperations(t *testing.T) {
	matches := []Match{
		{ImportRowIndex: 1, Suggested: Replace, Resolution: Unresolved},
		{ImportRowIndex: 4, Suggested: Create, Resolution: Unresolved},
	}

	resolved, err := Resolve(matches, 4, Skip)
	require.NoError(t, err)
	assert.Equal(t, Skip, resolved[1].Resolution)
	assert.Equal(t, Unresolved, matches[1].Resolution)
	assert.Len(t, Pending(resolved), 1)

	accepted := AcceptSuggestions(resolved)
	assert.Equal(t, Replace, accepted[0].Resolution)
	assert.Equal(t, Skip, accepted[1].Resolution)
	assert.Empty(t, Pending(accepted))

	all, err := ResolveAll(matches, Create)
	require.NoError(t, err)
	for _, m := range all {
		assert.Equal(t, Create, m.Resolution)
	}

	_, err = Resolve(matches, 2, Create)
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Resolve(matches, 1, Unresolved)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = ResolveAll(matches, "merge")
	assert.ErrorIs(t, err, ErrInvalidResolution)

	m, ok := ForRow(accepted, 1)
	assert.True(t, ok)
	assert.Equal(t, Replace, m.Resolution)
}
