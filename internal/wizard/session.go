package wizard

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	"github.com/SAP-F-2025/vrp-import-service/internal/executor"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/mapping"
	"github.com/SAP-F-2025/vrp-import-service/internal/parser"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
	"github.com/SAP-F-2025/vrp-import-service/internal/validator"
)

var (
	ErrNothingToUndo = stderrors.New("nothing to undo")
	ErrLocked        = stderrors.New("session can no longer be edited")
)

// Snapshot is one immutable revision of a session's pipeline state
type Snapshot struct {
	Revision     int
	Step         Step
	Schema       *schema.Schema
	File         *parser.ParsedFile
	Mappings     *mapping.Set
	Rows         []transform.Row
	Report       validator.Report
	Duplicates   []duplicates.Match
	Locations    []locations.Resolution
	AllowPartial bool
	Execution    *executor.State
	CreatedAt    time.Time
}

// excluded returns the erroring rows left out under partial import
func (s Snapshot) excluded() map[int]bool {
	out := make(map[int]bool)
	if s.AllowPartial {
		for _, row := range s.Report.ErrorRows() {
			out[row] = true
		}
	}
	return out
}

// ExcludedRows lists rows the executor will skip because of validation errors
func (s Snapshot) ExcludedRows() []int {
	if !s.AllowPartial {
		return nil
	}
	return s.Report.ErrorRows()
}

// ImportableCount is the number of rows that would reach the mutation sink
func (s Snapshot) ImportableCount() int {
	excluded := s.excluded()
	for _, m := range s.Duplicates {
		if m.Resolution == duplicates.Skip {
			excluded[m.ImportRowIndex] = true
		}
	}
	for _, r := range s.Locations {
		if r.Resolution == locations.Skip {
			excluded[r.ImportRowIndex] = true
		}
	}
	n := 0
	for _, row := range s.Rows {
		if !excluded[row.Index] && !s.Report.HasErrors(row.Index) {
			n++
		}
	}
	return n
}

// Pipeline holds the stage engines a session recomputes with
type Pipeline struct {
	Validator       *validator.Validator
	Detector        *duplicates.Detector
	LocationOptions locations.Options
	Scorer          mapping.Scorer
	ChunkSize       int
}

// Inputs are the snapshot reads taken when the session starts
type Inputs struct {
	Existing []schema.ExistingRecord
	Master   []locations.Candidate
}

// Session owns the pipeline state of one import. Every edit appends a revision;
// readers only ever receive copies.
type Session struct {
	mu        sync.RWMutex
	pipeline  Pipeline
	inputs    Inputs
	revisions []Snapshot
	// execution is live progress of the importing step; stored revisions never change
	execution *executor.State
	now       func() time.Time
}

// NewSession maps the parsed file automatically and computes every downstream stage.
// The first revision sits on the upload step.
func NewSession(file *parser.ParsedFile, s *schema.Schema, inputs Inputs, pipeline Pipeline, allowPartial bool) *Session {
	if pipeline.Validator == nil {
		pipeline.Validator = validator.New()
	}
	if pipeline.Detector == nil {
		pipeline.Detector = duplicates.NewDetector(nil)
	}
	session := &Session{
		pipeline: pipeline,
		inputs:   inputs,
		now:      time.Now,
	}

	snap := Snapshot{
		Step:         StepUpload,
		Schema:       s,
		File:         file,
		AllowPartial: allowPartial,
	}
	snap = session.fromMappings(snap, mapping.NewSet(file.Headers, s, pipeline.Scorer))
	snap.CreatedAt = session.now()
	session.revisions = []Snapshot{snap}
	return session
}

// Current returns the latest revision
func (s *Session) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest()
}

// Revisions returns the number of stored revisions
func (s *Session) Revisions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revisions)
}

// Transition moves the wizard when the edge guard allows it
func (s *Session) Transition(to Step) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.latest()
	if err := Guard(snap, to); err != nil {
		return snap, err
	}
	snap.Step = to
	return s.push(snap), nil
}

// Advance moves to the next step
func (s *Session) Advance() (Snapshot, error) {
	next, ok := s.Current().Step.Next()
	if !ok {
		return s.Current(), ErrInvalidTransition
	}
	return s.Transition(next)
}

// UpdateMapping edits one column mapping and recomputes every downstream stage.
// A session past the mapping step moves back to it.
func (s *Session) UpdateMapping(column, target string) (Snapshot, error) {
	return s.editMappings(func(set *mapping.Set) (*mapping.Set, error) {
		return set.Update(column, target)
	})
}

// AutoMap recomputes every mapping, discarding manual overrides
func (s *Session) AutoMap() (Snapshot, error) {
	return s.editMappings(func(set *mapping.Set) (*mapping.Set, error) {
		return set.AutoMap(), nil
	})
}

func (s *Session) editMappings(fn func(*mapping.Set) (*mapping.Set, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.latest()
	if !snap.Step.Editable() {
		return snap, ErrLocked
	}
	set, err := fn(snap.Mappings)
	if err != nil {
		return snap, err
	}
	snap = s.fromMappings(snap, set)
	if snap.Step.index() > StepMapping.index() {
		snap.Step = StepMapping
	}
	return s.push(snap), nil
}

// ResolveDuplicate sets the resolution of one duplicate match
func (s *Session) ResolveDuplicate(row int, resolution duplicates.Resolution) (Snapshot, error) {
	return s.editDuplicates(func(m []duplicates.Match) ([]duplicates.Match, error) {
		return duplicates.Resolve(m, row, resolution)
	})
}

// ResolveAllDuplicates applies one resolution to every match
func (s *Session) ResolveAllDuplicates(resolution duplicates.Resolution) (Snapshot, error) {
	return s.editDuplicates(func(m []duplicates.Match) ([]duplicates.Match, error) {
		return duplicates.ResolveAll(m, resolution)
	})
}

// AcceptDuplicateSuggestions resolves every pending match to its suggestion
func (s *Session) AcceptDuplicateSuggestions() (Snapshot, error) {
	return s.editDuplicates(func(m []duplicates.Match) ([]duplicates.Match, error) {
		return duplicates.AcceptSuggestions(m), nil
	})
}

func (s *Session) editDuplicates(fn func([]duplicates.Match) ([]duplicates.Match, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.latest()
	if !snap.Step.Editable() {
		return snap, ErrLocked
	}
	matches, err := fn(snap.Duplicates)
	if err != nil {
		return snap, err
	}
	snap.Duplicates = matches
	return s.push(snap), nil
}

// SelectLocation resolves a row to an existing master location
func (s *Session) SelectLocation(row int, locationID string) (Snapshot, error) {
	return s.editLocations(func(r []locations.Resolution) ([]locations.Resolution, error) {
		return locations.Select(r, row, locationID)
	})
}

// CreateLocation resolves a row to a new master location
func (s *Session) CreateLocation(row int) (Snapshot, error) {
	return s.editLocations(func(r []locations.Resolution) ([]locations.Resolution, error) {
		return locations.CreateNewFor(r, row)
	})
}

// SkipLocation excludes a row through its location
func (s *Session) SkipLocation(row int) (Snapshot, error) {
	return s.editLocations(func(r []locations.Resolution) ([]locations.Resolution, error) {
		return locations.SkipRow(r, row)
	})
}

// AutoResolveLocations is the bulk "create missing locations" action
func (s *Session) AutoResolveLocations() (Snapshot, error) {
	return s.editLocations(func(r []locations.Resolution) ([]locations.Resolution, error) {
		return locations.AutoResolve(r, s.pipeline.LocationOptions), nil
	})
}

func (s *Session) editLocations(fn func([]locations.Resolution) ([]locations.Resolution, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.latest()
	if !snap.Step.Editable() {
		return snap, ErrLocked
	}
	resolutions, err := fn(snap.Locations)
	if err != nil {
		return snap, err
	}
	snap.Locations = resolutions
	return s.push(snap), nil
}

// Undo drops the latest revision
func (s *Session) Undo() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.latest()
	if !snap.Step.Editable() {
		return snap, ErrLocked
	}
	if len(s.revisions) < 2 {
		return snap, ErrNothingToUndo
	}
	s.revisions = s.revisions[:len(s.revisions)-1]
	return s.latest(), nil
}

// StartImport moves to the importing step and returns the execution plan
func (s *Session) StartImport() (executor.Plan, error) {
	snap, err := s.Transition(StepImporting)
	if err != nil {
		return executor.Plan{}, err
	}
	return executor.Plan{
		Schema:       snap.Schema,
		Rows:         snap.Rows,
		Duplicates:   snap.Duplicates,
		Locations:    snap.Locations,
		ExcludedRows: snap.ExcludedRows(),
		ChunkSize:    s.pipeline.ChunkSize,
	}, nil
}

// RecordExecution stores executor progress; a terminal state completes the wizard
func (s *Session) RecordExecution(state executor.State) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revisions[len(s.revisions)-1].Step != StepImporting {
		return s.latest()
	}
	s.execution = &state
	snap := s.latest()
	if !state.Status.Terminal() {
		return snap
	}

	snap.Step = StepComplete
	return s.push(snap)
}

// latest returns the last revision with live execution progress attached while importing
func (s *Session) latest() Snapshot {
	snap := s.revisions[len(s.revisions)-1]
	if snap.Step == StepImporting && s.execution != nil {
		state := *s.execution
		snap.Execution = &state
	}
	return snap
}

func (s *Session) push(snap Snapshot) Snapshot {
	snap.Revision = len(s.revisions)
	snap.CreatedAt = s.now()
	s.revisions = append(s.revisions, snap)
	return snap
}

func (s *Session) fromMappings(snap Snapshot, set *mapping.Set) Snapshot {
	snap.Mappings = set
	snap.Rows = transform.TransformAll(snap.File, set.Mappings(), snap.Schema)
	snap.Report = s.pipeline.Validator.ValidateRows(snap.Rows, snap.Schema, snap.File.Errors)
	snap.Duplicates = s.pipeline.Detector.Detect(snap.Rows, s.inputs.Existing, snap.Schema)
	snap.Locations = locations.ResolveBatch(snap.Rows, s.inputs.Master, snap.Schema, s.pipeline.LocationOptions)
	return snap
}
