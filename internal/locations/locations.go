package locations

import (
	stderrors "errors"
	"fmt"
	"math"
	"sort"

	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/similarity"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
)

// Action is the disposition of a row's location reference
type Action string

const (
	UseExisting  Action = "use_existing"
	CreateNew    Action = "create_new"
	Skip         Action = "skip"
	ManualSelect Action = "manual_select"
)

type MatchType string

const (
	MatchCoordinate MatchType = "coordinate"
	MatchAddress    MatchType = "address"
	MatchFuzzy      MatchType = "fuzzy"
)

const earthRadiusKm = 6371.0

// coordinatePenalty is the confidence lost at the edge of the distance threshold
const coordinatePenalty = 0.2

var (
	ErrNoResolution = stderrors.New("row has no location resolution")
	ErrNoLocationID = stderrors.New("location id is required")
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Candidate is an entry of the master location list
type Candidate struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Match struct {
	LocationID  string       `json:"location_id"`
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	MatchType   MatchType    `json:"match_type"`
	Confidence  float64      `json:"confidence"`
	DistanceKm  *float64     `json:"distance_km,omitempty"`
}

// NewLocation is the master entry to create for a create_new resolution
type NewLocation struct {
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Resolution struct {
	ImportRowIndex     int          `json:"import_row_index"`
	SourceName         string       `json:"source_name,omitempty"`
	SourceAddress      string       `json:"source_address,omitempty"`
	SourceCoordinates  *Coordinates `json:"source_coordinates,omitempty"`
	Matches            []Match      `json:"matches"`
	Resolution         Action       `json:"resolution"`
	SelectedLocationID string       `json:"selected_location_id,omitempty"`
	NewLocation        *NewLocation `json:"new_location,omitempty"`
}

type Options struct {
	DistanceThresholdKm float64 `json:"distance_threshold_km" yaml:"distance_threshold_km"`
	AddressSimilarity   float64 `json:"address_similarity" yaml:"address_similarity"`
	HighConfidence      float64 `json:"high_confidence" yaml:"high_confidence"`
	MaxCandidates       int     `json:"max_candidates" yaml:"max_candidates"`

	Scorer similarity.Scorer `json:"-" yaml:"-"`
}

func DefaultOptions() Options {
	return Options{
		DistanceThresholdKm: 0.1,
		AddressSimilarity:   similarity.AddressMatchThreshold,
		HighConfidence:      similarity.LocationAutoResolveThreshold,
		MaxCandidates:       5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DistanceThresholdKm <= 0 {
		o.DistanceThresholdKm = d.DistanceThresholdKm
	}
	if o.AddressSimilarity <= 0 {
		o.AddressSimilarity = d.AddressSimilarity
	}
	if o.HighConfidence <= 0 {
		o.HighConfidence = d.HighConfidence
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	if o.Scorer == nil {
		o.Scorer = similarity.Default()
	}
	return o
}

// ResolveBatch matches every row carrying an address or coordinates against the master list.
// Rows with an explicit location id, or without location data, get no resolution.
func ResolveBatch(rows []transform.Row, master []Candidate, s *schema.Schema, opts Options) []Resolution {
	ref := s.LocationRef
	if ref == nil {
		return nil
	}
	opts = opts.withDefaults()

	var out []Resolution
	for _, row := range rows {
		if _, ok := schema.StringValue(row.Values, ref.IDField); ok {
			continue
		}
		address, hasAddress := schema.StringValue(row.Values, ref.AddressField)
		coords := coordinatesOf(row.Values, ref)
		if !hasAddress && coords == nil {
			continue
		}

		res := Resolution{
			ImportRowIndex:    row.Index,
			SourceAddress:     address,
			SourceCoordinates: coords,
		}
		res.SourceName, _ = schema.StringValue(row.Values, ref.NameField)

		if coords != nil {
			res.Matches = coordinateMatches(*coords, master, opts)
		}
		if len(res.Matches) == 0 && hasAddress {
			res.Matches = addressMatches(address, master, opts)
		}
		if len(res.Matches) > opts.MaxCandidates {
			res.Matches = res.Matches[:opts.MaxCandidates]
		}

		if len(res.Matches) > 0 {
			res.Resolution = ManualSelect
		} else {
			res.Resolution = CreateNew
			res.NewLocation = newLocationFor(res)
		}
		out = append(out, res)
	}
	return out
}

func coordinatesOf(values map[string]any, ref *schema.LocationRef) *Coordinates {
	lat, okLat := schema.NumberValue(values, ref.LatField)
	lon, okLon := schema.NumberValue(values, ref.LonField)
	if !okLat || !okLon || !finite(lat) || !finite(lon) {
		return nil
	}
	return &Coordinates{Latitude: lat, Longitude: lon}
}

func coordinateMatches(src Coordinates, master []Candidate, opts Options) []Match {
	var out []Match
	for _, c := range master {
		if c.Coordinates == nil {
			continue
		}
		d := Haversine(src, *c.Coordinates)
		if math.IsNaN(d) || d > opts.DistanceThresholdKm {
			continue
		}
		dist := d
		out = append(out, Match{
			LocationID:  c.ID,
			Name:        c.Name,
			Address:     c.Address,
			Coordinates: c.Coordinates,
			MatchType:   MatchCoordinate,
			Confidence:  1 - coordinatePenalty*d/opts.DistanceThresholdKm,
			DistanceKm:  &dist,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	return out
}

func addressMatches(address string, master []Candidate, opts Options) []Match {
	normalized := similarity.Normalize(address)
	var out []Match
	for _, c := range master {
		if c.Address == "" {
			continue
		}
		m := Match{
			LocationID:  c.ID,
			Name:        c.Name,
			Address:     c.Address,
			Coordinates: c.Coordinates,
		}
		if similarity.Normalize(c.Address) == normalized {
			m.MatchType = MatchAddress
			m.Confidence = similarity.ExactScore
		} else {
			score := opts.Scorer.Similarity(address, c.Address)
			if score < opts.AddressSimilarity {
				continue
			}
			m.MatchType = MatchFuzzy
			m.Confidence = score
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Haversine returns the great-circle distance in kilometres
func Haversine(a, b Coordinates) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func newLocationFor(r Resolution) *NewLocation {
	name := r.SourceName
	if name == "" {
		name = r.SourceAddress
	}
	return &NewLocation{Name: name, Address: r.SourceAddress, Coordinates: r.SourceCoordinates}
}

// AutoResolve settles every row still awaiting a manual choice: the best existing location
// above the high-confidence cutoff, or a new location otherwise. Rows the user already
// resolved are left alone.
func AutoResolve(resolutions []Resolution, opts Options) []Resolution {
	opts = opts.withDefaults()
	out := clone(resolutions)
	for i := range out {
		r := &out[i]
		if r.Resolution != ManualSelect {
			continue
		}
		if len(r.Matches) > 0 && r.Matches[0].Confidence > opts.HighConfidence {
			r.Resolution = UseExisting
			r.SelectedLocationID = r.Matches[0].LocationID
			r.NewLocation = nil
			continue
		}
		r.Resolution = CreateNew
		r.SelectedLocationID = ""
		r.NewLocation = newLocationFor(*r)
	}
	return out
}

// Select resolves a row to an existing location
func Select(resolutions []Resolution, row int, locationID string) ([]Resolution, error) {
	if locationID == "" {
		return nil, ErrNoLocationID
	}
	return update(resolutions, row, func(r *Resolution) {
		r.Resolution = UseExisting
		r.SelectedLocationID = locationID
		r.NewLocation = nil
	})
}

// CreateNewFor resolves a row to a new master location built from the row
func CreateNewFor(resolutions []Resolution, row int) ([]Resolution, error) {
	return update(resolutions, row, func(r *Resolution) {
		r.Resolution = CreateNew
		r.SelectedLocationID = ""
		r.NewLocation = newLocationFor(*r)
	})
}

// SkipRow excludes a row, and its parent record, from the import
func SkipRow(resolutions []Resolution, row int) ([]Resolution, error) {
	return update(resolutions, row, func(r *Resolution) {
		r.Resolution = Skip
		r.SelectedLocationID = ""
		r.NewLocation = nil
	})
}

func update(resolutions []Resolution, row int, fn func(*Resolution)) ([]Resolution, error) {
	out := clone(resolutions)
	for i := range out {
		if out[i].ImportRowIndex == row {
			fn(&out[i])
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: row %d", ErrNoResolution, row)
}

// PendingRows returns rows still waiting for a manual choice
func PendingRows(resolutions []Resolution) []int {
	var out []int
	for _, r := range resolutions {
		if r.Resolution == ManualSelect {
			out = append(out, r.ImportRowIndex)
		}
	}
	return out
}

func clone(resolutions []Resolution) []Resolution {
	return append([]Resolution(nil), resolutions...)
}
