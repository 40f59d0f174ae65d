package mapping

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/similarity"
)

// Unmapped is the target of a source column that feeds no field
const Unmapped = ""

var (
	ErrUnknownColumn = stderrors.New("unknown source column")
	ErrUnknownField  = stderrors.New("unknown target field")
)

type ColumnMapping struct {
	SourceColumn string          `json:"source_column"`
	TargetField  string          `json:"target_field"`
	DataType     schema.DataType `json:"data_type,omitempty"`
	IsRequired   bool            `json:"is_required"`
	Confidence   float64         `json:"confidence"`
	Manual       bool            `json:"manual"`
}

func (m ColumnMapping) Mapped() bool {
	return m.TargetField != Unmapped
}

// Suggestion ranks a candidate field for a header
type Suggestion struct {
	Field    string          `json:"field"`
	DataType schema.DataType `json:"data_type"`
	Required bool            `json:"required"`
	Score    float64         `json:"score"`
}

// Set is an immutable mapping of every source header; edits return a new Set
type Set struct {
	schema   *schema.Schema
	scorer   Scorer
	headers  []string
	mappings []ColumnMapping
}

// GenerateMappings computes automatic mappings for headers
func GenerateMappings(headers []string, s *schema.Schema) []ColumnMapping {
	return NewSet(headers, s, nil).Mappings()
}

// NewSet builds an automatically mapped set; a nil scorer uses NewHeuristicScorer
func NewSet(headers []string, s *schema.Schema, scorer Scorer) *Set {
	if scorer == nil {
		scorer = NewHeuristicScorer()
	}
	set := &Set{
		schema:  s,
		scorer:  scorer,
		headers: append([]string(nil), headers...),
	}
	set.mappings = set.assign(nil)
	return set
}

func (s *Set) Schema() *schema.Schema { return s.schema }

// Mappings returns a copy in header order
func (s *Set) Mappings() []ColumnMapping {
	return append([]ColumnMapping(nil), s.mappings...)
}

// Lookup returns the mapping of a source column
func (s *Set) Lookup(column string) (ColumnMapping, bool) {
	for _, m := range s.mappings {
		if m.SourceColumn == column {
			return m, true
		}
	}
	return ColumnMapping{}, false
}

// ColumnFor returns the source column feeding a field
func (s *Set) ColumnFor(field string) (string, bool) {
	for _, m := range s.mappings {
		if m.TargetField == field {
			return m.SourceColumn, true
		}
	}
	return "", false
}

// Update applies a manual choice. Stealing a field unmaps its previous column,
// then every non-manual column is re-suggested around the manual ones.
func (s *Set) Update(column, target string) (*Set, error) {
	idx := s.indexOf(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}

	next := s.Mappings()
	if target == Unmapped {
		next[idx] = ColumnMapping{
			SourceColumn: column,
			TargetField:  Unmapped,
			Confidence:   s.bestScore(column),
			Manual:       true,
		}
	} else {
		field, ok := s.schema.Field(target)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, target)
		}
		for i := range next {
			if i != idx && next[i].TargetField == target {
				next[i] = ColumnMapping{SourceColumn: next[i].SourceColumn, TargetField: Unmapped}
			}
		}
		next[idx] = ColumnMapping{
			SourceColumn: column,
			TargetField:  field.Name,
			DataType:     field.Type,
			IsRequired:   field.Required,
			Confidence:   similarity.ExactScore,
			Manual:       true,
		}
	}

	locked := make(map[int]ColumnMapping)
	for i, m := range next {
		if m.Manual {
			locked[i] = m
		}
	}

	return &Set{
		schema:   s.schema,
		scorer:   s.scorer,
		headers:  s.headers,
		mappings: s.assign(locked),
	}, nil
}

// AutoMap discards every manual override and recomputes
func (s *Set) AutoMap() *Set {
	return &Set{
		schema:   s.schema,
		scorer:   s.scorer,
		headers:  s.headers,
		mappings: s.assign(nil),
	}
}

// MissingRequired lists required fields without an accepted mapping
func (s *Set) MissingRequired() []string {
	var missing []string
	for _, field := range s.schema.RequiredFields() {
		found := false
		for _, m := range s.mappings {
			if m.TargetField == field && m.Confidence >= similarity.MappingAcceptThreshold {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, field)
		}
	}
	return missing
}

// Suggestions ranks schema fields for a source column
func (s *Set) Suggestions(column string) []Suggestion {
	byField := make(map[string]float64)
	for _, f := range s.schema.Fields {
		if score := s.scorer.Score(column, f); score > 0 {
			byField[f.Name] = score
		}
	}

	targets := make([]string, len(s.schema.Fields))
	for i, f := range s.schema.Fields {
		targets[i] = f.Name
	}
	query := strings.ReplaceAll(similarity.Normalize(column), " ", "_")
	for _, rank := range fuzzy.RankFindNormalizedFold(query, targets) {
		if _, ok := byField[rank.Target]; !ok {
			byField[rank.Target] = fuzzyScore(rank.Distance)
		}
	}

	out := make([]Suggestion, 0, len(byField))
	for _, f := range s.schema.Fields {
		score, ok := byField[f.Name]
		if !ok {
			continue
		}
		out = append(out, Suggestion{Field: f.Name, DataType: f.Type, Required: f.Required, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// fuzzyScore keeps subsequence-only hits below the acceptance threshold
func fuzzyScore(distance int) float64 {
	return similarity.MappingAcceptThreshold / float64(2+distance)
}

func (s *Set) indexOf(column string) int {
	for i, h := range s.headers {
		if h == column {
			return i
		}
	}
	return -1
}

func (s *Set) bestScore(column string) float64 {
	best := 0.0
	for _, f := range s.schema.Fields {
		if score := s.scorer.Score(column, f); score > best {
			best = score
		}
	}
	return best
}

type candidate struct {
	column   int
	field    int
	score    float64
	declared bool
}

// assign runs greedy assignment by descending score for every column not in locked
func (s *Set) assign(locked map[int]ColumnMapping) []ColumnMapping {
	claimed := make(map[string]bool)
	for _, m := range locked {
		if m.Mapped() {
			claimed[m.TargetField] = true
		}
	}

	var candidates []candidate
	for ci, header := range s.headers {
		if _, ok := locked[ci]; ok {
			continue
		}
		for fi, f := range s.schema.Fields {
			if score := s.scorer.Score(header, f); score >= similarity.MappingAcceptThreshold {
				candidates = append(candidates, candidate{column: ci, field: fi, score: score, declared: declared(header, f)})
			}
		}
	}
	// equal scores rank a declared alias above a substring or token hit
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].declared && !candidates[j].declared
	})

	out := make([]ColumnMapping, len(s.headers))
	assigned := make(map[int]bool)
	for _, c := range candidates {
		f := s.schema.Fields[c.field]
		if assigned[c.column] || claimed[f.Name] {
			continue
		}
		assigned[c.column] = true
		claimed[f.Name] = true
		out[c.column] = ColumnMapping{
			SourceColumn: s.headers[c.column],
			TargetField:  f.Name,
			DataType:     f.Type,
			IsRequired:   f.Required,
			Confidence:   c.score,
		}
	}

	for ci, header := range s.headers {
		if m, ok := locked[ci]; ok {
			out[ci] = m
			continue
		}
		if !assigned[ci] {
			out[ci] = ColumnMapping{SourceColumn: header, TargetField: Unmapped, Confidence: s.bestScore(header)}
		}
	}
	return out
}
