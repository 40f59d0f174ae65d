package mapping

import (
	"strings"

	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/similarity"
)

// minSubstringLen keeps short names such as "id" out of substring matching
const minSubstringLen = 3

// typoThreshold is the string similarity at which a header counts as a misspelled field name
const typoThreshold = 0.85

// Scorer rates how well a source header fits a schema field
type Scorer interface {
	Score(header string, field schema.FieldDef) float64
}

// HeuristicScorer applies the exact / alias / substring / token-overlap ladder
type HeuristicScorer struct {
	Strings similarity.Scorer
}

func NewHeuristicScorer() HeuristicScorer {
	return HeuristicScorer{Strings: similarity.Default()}
}

func (h HeuristicScorer) Score(header string, field schema.FieldDef) float64 {
	nh := similarity.Normalize(header)
	if nh == "" {
		return 0
	}
	nf := similarity.Normalize(field.Name)
	if nh == nf {
		return similarity.ExactScore
	}

	for _, alias := range field.Aliases {
		if nh == similarity.Normalize(alias) {
			return similarity.AliasScore
		}
	}

	ch, cf := compact(nh), compact(nf)
	if len(ch) >= minSubstringLen && len(cf) >= minSubstringLen && (strings.Contains(ch, cf) || strings.Contains(cf, ch)) {
		return similarity.AliasScore
	}

	best := 0.0
	candidates := append([]string{field.Name}, field.Aliases...)
	for _, c := range candidates {
		if jaccard(similarity.Tokens(header), similarity.Tokens(c)) >= 0.5 {
			best = similarity.TokenOverlapScore
			break
		}
	}

	if best == 0 && h.Strings != nil && h.Strings.Similarity(ch, cf) >= typoThreshold {
		best = similarity.TokenOverlapScore
	}
	return best
}

// declared reports whether header is the field name or one of its aliases
func declared(header string, field schema.FieldDef) bool {
	nh := similarity.Normalize(header)
	if nh == similarity.Normalize(field.Name) {
		return true
	}
	for _, alias := range field.Aliases {
		if nh == similarity.Normalize(alias) {
			return true
		}
	}
	return false
}

func compact(normalized string) string {
	return strings.ReplaceAll(normalized, " ", "")
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union := len(set)
	shared := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}
