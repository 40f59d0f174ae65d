package duplicates

import (
	stderrors "errors"
	"fmt"

	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/similarity"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
)

type MatchType string

const (
	MatchID         MatchType = "id"
	MatchNaturalKey MatchType = "natural_key"
	MatchFuzzy      MatchType = "fuzzy"
)

type Resolution string

const (
	Replace    Resolution = "replace"
	Create     Resolution = "create"
	Skip       Resolution = "skip"
	Unresolved Resolution = "unresolved"
)

var (
	ErrNoMatch           = stderrors.New("row has no duplicate match")
	ErrInvalidResolution = stderrors.New("invalid duplicate resolution")
)

// Match is the best existing-record match of one import row
type Match struct {
	ImportRowIndex    int             `json:"import_row_index"`
	ExistingRecordID  string          `json:"existing_record_id"`
	MatchType         MatchType       `json:"match_type"`
	Confidence        float64         `json:"confidence"`
	MatchedFields     []string        `json:"matched_fields,omitempty"`
	ConflictingFields []string        `json:"conflicting_fields,omitempty"`
	Band              similarity.Band `json:"band"`
	Suggested         Resolution      `json:"suggested"`
	Resolution        Resolution      `json:"resolution"`
}

// Detector finds duplicates between import rows and existing records
type Detector struct {
	scorer similarity.Scorer
}

// NewDetector returns a detector; a nil scorer uses similarity.Default
func NewDetector(scorer similarity.Scorer) *Detector {
	if scorer == nil {
		scorer = similarity.Default()
	}
	return &Detector{scorer: scorer}
}

// Detect uses the default scorer
func Detect(rows []transform.Row, existing []schema.ExistingRecord, s *schema.Schema) []Match {
	return NewDetector(nil).Detect(rows, existing, s)
}

// Detect keeps only the single best match per row; rows without a match get no entry
func (d *Detector) Detect(rows []transform.Row, existing []schema.ExistingRecord, s *schema.Schema) []Match {
	var matches []Match
	for _, row := range rows {
		best, ok := d.bestMatch(row, existing, s)
		if !ok {
			continue
		}
		best.Band = similarity.BandFor(best.Confidence)
		best.Suggested = suggestionFor(best.Band)
		best.Resolution = Unresolved
		best.ConflictingFields = conflicts(row.Values, best.ExistingRecordID, existing, s)
		matches = append(matches, best)
	}
	return matches
}

func (d *Detector) bestMatch(row transform.Row, existing []schema.ExistingRecord, s *schema.Schema) (Match, bool) {
	var best Match
	found := false
	for _, rec := range existing {
		m, ok := d.compare(row, rec, s)
		if ok && (!found || m.Confidence > best.Confidence) {
			best, found = m, true
		}
		if found && best.MatchType == MatchID {
			break
		}
	}
	return best, found
}

func (d *Detector) compare(row transform.Row, rec schema.ExistingRecord, s *schema.Schema) (Match, bool) {
	if m, ok := idMatch(row, rec, s); ok {
		return m, true
	}
	if m, ok := naturalKeyMatch(row, rec, s); ok {
		return m, true
	}
	return d.fuzzyMatch(row, rec, s)
}

// IDConfidence returns the id-match confidence of a row against a record, or 0
func IDConfidence(row transform.Row, rec schema.ExistingRecord, s *schema.Schema) float64 {
	m, _ := idMatch(row, rec, s)
	return m.Confidence
}

// NaturalKeyConfidence returns the natural-key confidence of a row against a record, or 0
func NaturalKeyConfidence(row transform.Row, rec schema.ExistingRecord, s *schema.Schema) float64 {
	m, _ := naturalKeyMatch(row, rec, s)
	return m.Confidence
}

// FuzzyConfidence returns the fuzzy confidence of a row against a record, or 0
func (d *Detector) FuzzyConfidence(row transform.Row, rec schema.ExistingRecord, s *schema.Schema) float64 {
	m, _ := d.fuzzyMatch(row, rec, s)
	return m.Confidence
}

func idMatch(row transform.Row, rec schema.ExistingRecord, s *schema.Schema) (Match, bool) {
	id, ok := schema.StringValue(row.Values, s.IDField)
	if !ok || rec.ID == "" || id != rec.ID {
		return Match{}, false
	}
	return Match{
		ImportRowIndex:   row.Index,
		ExistingRecordID: rec.ID,
		MatchType:        MatchID,
		Confidence:       similarity.ExactScore,
		MatchedFields:    []string{s.IDField},
	}, true
}

func naturalKeyMatch(row transform.Row, rec schema.ExistingRecord, s *schema.Schema) (Match, bool) {
	var best Match
	found := false
	for _, key := range s.NaturalKeys {
		if len(key) == 0 || !fieldAgrees(row.Values, rec.Values, key[0]) {
			continue
		}
		var agreeing []string
		for _, field := range key {
			if fieldAgrees(row.Values, rec.Values, field) {
				agreeing = append(agreeing, field)
			}
		}
		confidence := similarity.NaturalKeyMax
		if len(key) > 1 {
			span := similarity.NaturalKeyMax - similarity.NaturalKeyMin
			confidence = similarity.NaturalKeyMin + span*float64(len(agreeing)-1)/float64(len(key)-1)
		}
		if !found || confidence > best.Confidence {
			found = true
			best = Match{
				ImportRowIndex:   row.Index,
				ExistingRecordID: rec.ID,
				MatchType:        MatchNaturalKey,
				Confidence:       confidence,
				MatchedFields:    agreeing,
			}
		}
	}
	return best, found
}

func (d *Detector) fuzzyMatch(row transform.Row, rec schema.ExistingRecord, s *schema.Schema) (Match, bool) {
	if len(s.FuzzyFields) == 0 {
		return Match{}, false
	}
	lead := s.FuzzyFields[0]
	if _, ok := schema.StringValue(row.Values, lead); !ok {
		return Match{}, false
	}
	if _, ok := schema.StringValue(rec.Values, lead); !ok {
		return Match{}, false
	}

	var total float64
	var compared []string
	for _, field := range s.FuzzyFields {
		a, okA := schema.StringValue(row.Values, field)
		b, okB := schema.StringValue(rec.Values, field)
		if !okA || !okB {
			continue
		}
		total += d.scorer.Similarity(a, b)
		compared = append(compared, field)
	}
	score := total / float64(len(compared))
	if score < similarity.FuzzyMatchThreshold {
		return Match{}, false
	}
	return Match{
		ImportRowIndex:   row.Index,
		ExistingRecordID: rec.ID,
		MatchType:        MatchFuzzy,
		Confidence:       score * similarity.FuzzyConfidenceCap,
		MatchedFields:    compared,
	}, true
}

func fieldAgrees(a, b map[string]any, field string) bool {
	va, okA := a[field]
	vb, okB := b[field]
	return okA && okB && schema.ValuesEqual(va, vb)
}

func conflicts(values map[string]any, id string, existing []schema.ExistingRecord, s *schema.Schema) []string {
	var rec *schema.ExistingRecord
	for i := range existing {
		if existing[i].ID == id {
			rec = &existing[i]
			break
		}
	}
	if rec == nil {
		return nil
	}
	var out []string
	for _, f := range s.Fields {
		if f.Name == s.IDField {
			continue
		}
		va, okA := values[f.Name]
		vb, okB := rec.Values[f.Name]
		if okA && okB && !schema.ValuesEqual(va, vb) {
			out = append(out, f.Name)
		}
	}
	return out
}

func suggestionFor(band similarity.Band) Resolution {
	if band == similarity.BandHigh {
		return Replace
	}
	return Create
}

// Valid reports whether r is a resolution a user may choose
func (r Resolution) Valid() bool {
	return r == Replace || r == Create || r == Skip
}

// Resolve returns a copy of matches with one row's resolution set
func Resolve(matches []Match, row int, resolution Resolution) ([]Match, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}
	out := clone(matches)
	for i := range out {
		if out[i].ImportRowIndex == row {
			out[i].Resolution = resolution
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: row %d", ErrNoMatch, row)
}

// AcceptSuggestions resolves every unresolved match to its suggestion
func AcceptSuggestions(matches []Match) []Match {
	out := clone(matches)
	for i := range out {
		if out[i].Resolution == Unresolved {
			out[i].Resolution = out[i].Suggested
		}
	}
	return out
}

// ResolveAll applies one resolution to every match
func ResolveAll(matches []Match, resolution Resolution) ([]Match, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}
	out := clone(matches)
	for i := range out {
		out[i].Resolution = resolution
	}
	return out, nil
}

// Pending returns the matches still waiting for a decision
func Pending(matches []Match) []Match {
	var out []Match
	for _, m := range matches {
		if m.Resolution == Unresolved {
			out = append(out, m)
		}
	}
	return out
}

// ForRow returns the match of an import row
func ForRow(matches []Match, row int) (Match, bool) {
	for _, m := range matches {
		if m.ImportRowIndex == row {
			return m, true
		}
	}
	return Match{}, false
}

// ByBand groups matches for the review screen
func ByBand(matches []Match) map[similarity.Band][]Match {
	out := make(map[similarity.Band][]Match)
	for _, m := range matches {
		out[m.Band] = append(out[m.Band], m)
	}
	return out
}

func clone(matches []Match) []Match {
	return append([]Match(nil), matches...)
}
