package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Confidence bands shared by the mapper, duplicate detector and location resolver.
const (
	ExactScore        = 1.0
	AliasScore        = 0.8
	TokenOverlapScore = 0.6

	// MappingAcceptThreshold is the minimum score for an automatic column mapping.
	MappingAcceptThreshold = 0.6

	HighConfidence   = 0.95
	MediumConfidence = 0.8

	// NaturalKeyMin and NaturalKeyMax bound natural-key duplicate confidence.
	NaturalKeyMin = 0.8
	NaturalKeyMax = 0.95

	// FuzzyConfidenceCap keeps fuzzy duplicates strictly below the medium band.
	FuzzyConfidenceCap = 0.79
	// FuzzyMatchThreshold is the minimum string similarity for a fuzzy duplicate.
	FuzzyMatchThreshold = 0.6

	// AddressMatchThreshold is the default address similarity for location matching.
	AddressMatchThreshold = 0.85
	// LocationAutoResolveThreshold must be exceeded for auto-resolve to pick an existing location.
	LocationAutoResolveThreshold = 0.8
)

// Scorer compares two strings and returns a similarity in [0,1]
type Scorer interface {
	Similarity(a, b string) float64
}

// LevenshteinScorer scores 1 - distance/maxLen over normalized strings
type LevenshteinScorer struct{}

func (LevenshteinScorer) Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// Default returns the scorer used when none is configured
func Default() Scorer {
	return LevenshteinScorer{}
}

// Normalize lowercases, strips accents, turns punctuation into spaces and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Tokens splits a normalized string into words
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Band names a confidence range
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandFor maps a confidence onto its band
func BandFor(confidence float64) Band {
	switch {
	case confidence >= HighConfidence:
		return BandHigh
	case confidence >= MediumConfidence:
		return BandMedium
	default:
		return BandLow
	}
}
