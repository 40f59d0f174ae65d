package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
)

// DefaultChunkSize is the number of rows between progress callbacks
const DefaultChunkSize = 10

type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusAborted  Status = "aborted"
)

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusAborted
}

type RowFailure struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// State is owned by the executor; callers only ever see copies
type State struct {
	Total            int          `json:"total"`
	Processed        int          `json:"processed"`
	Successful       int          `json:"successful"`
	Errored          int          `json:"errored"`
	Skipped          int          `json:"skipped"`
	Replaced         int          `json:"replaced"`
	LocationsCreated int          `json:"locations_created"`
	Progress         int          `json:"progress"`
	Status           Status       `json:"status"`
	Failures         []RowFailure `json:"failures,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       *time.Time   `json:"finished_at,omitempty"`
}

func (s State) clone() State {
	s.Failures = append([]RowFailure(nil), s.Failures...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		s.FinishedAt = &t
	}
	return s
}

// Plan is everything the executor needs; it is not modified
type Plan struct {
	Schema     *schema.Schema
	Rows       []transform.Row
	Duplicates []duplicates.Match
	Locations  []locations.Resolution
	// ExcludedRows are rows with validation errors under partial import
	ExcludedRows []int
	ChunkSize    int
}

// ProgressFunc receives a copy of the state after every chunk
type ProgressFunc func(State)

type Executor struct {
	sink      repositories.MutationSink
	locations repositories.LocationSink
	logger    utils.Logger
	now       func() time.Time
}

func New(sink repositories.MutationSink, locationSink repositories.LocationSink, logger utils.Logger) *Executor {
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Executor{
		sink:      sink,
		locations: locationSink,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute applies every row of the plan. A failing row is recorded and the next row is
// attempted. Cancelling ctx stops before the next row and reports StatusAborted.
func (e *Executor) Execute(ctx context.Context, plan Plan, progress ProgressFunc) State {
	chunk := plan.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	state := State{
		Total:     len(plan.Rows),
		Status:    StatusRunning,
		StartedAt: e.now(),
	}
	report := func() {
		if progress != nil {
			progress(state.clone())
		}
	}

	dups := make(map[int]duplicates.Match, len(plan.Duplicates))
	for _, m := range plan.Duplicates {
		dups[m.ImportRowIndex] = m
	}
	locs := make(map[int]locations.Resolution, len(plan.Locations))
	for _, r := range plan.Locations {
		locs[r.ImportRowIndex] = r
	}
	excluded := make(map[int]bool, len(plan.ExcludedRows))
	for _, row := range plan.ExcludedRows {
		excluded[row] = true
	}

	log := e.logger.With("table", plan.Schema.Table, "rows", state.Total)
	log.InfoContext(ctx, "Import execution started")

	aborted := false
	for i, row := range plan.Rows {
		if ctx.Err() != nil {
			aborted = true
			break
		}

		switch err := e.applyRow(ctx, plan.Schema, row, dups[row.Index], locs[row.Index], excluded[row.Index], &state); {
		case err == errSkipped:
			state.Skipped++
		case err != nil:
			state.Errored++
			state.Failures = append(state.Failures, RowFailure{Row: row.Index, Message: err.Error()})
			log.WarnContext(ctx, "Import row failed", "row", row.Index, "error", err)
		default:
			state.Successful++
		}
		state.Processed++
		state.Progress = percent(state.Processed, state.Total)

		if (i+1)%chunk == 0 && i+1 < len(plan.Rows) {
			report()
		}
	}

	if aborted || ctx.Err() != nil && state.Processed < state.Total {
		state.Status = StatusAborted
	} else if attempted := state.Processed - state.Skipped; attempted > 0 && state.Errored == attempted {
		state.Status = StatusFailed
	} else {
		state.Status = StatusComplete
	}
	finished := e.now()
	state.FinishedAt = &finished
	report()

	log.InfoContext(ctx, "Import execution finished",
		"status", state.Status,
		"processed", state.Processed,
		"successful", state.Successful,
		"errored", state.Errored,
		"skipped", state.Skipped,
	)
	return state.clone()
}

var errSkipped = errors.New("row skipped")

func (e *Executor) applyRow(ctx context.Context, s *schema.Schema, row transform.Row, dup duplicates.Match, loc locations.Resolution, excluded bool, state *State) error {
	if excluded || dup.Resolution == duplicates.Skip || loc.Resolution == locations.Skip {
		return errSkipped
	}

	mode, target := repositories.WriteCreate, ""
	if dup.Resolution == duplicates.Replace {
		mode, target = repositories.WriteReplace, dup.ExistingRecordID
	}

	values := make(map[string]any, len(row.Values)+1)
	for k, v := range row.Values {
		values[k] = v
	}

	if ref := s.LocationRef; ref != nil {
		switch loc.Resolution {
		case locations.UseExisting:
			values[ref.IDField] = loc.SelectedLocationID
		case locations.CreateNew:
			if loc.NewLocation == nil {
				return fmt.Errorf("row %d: missing new location data", row.Index)
			}
			id, err := e.locations.CreateLocation(ctx, *loc.NewLocation)
			if err != nil {
				return fmt.Errorf("failed to create location: %w", err)
			}
			state.LocationsCreated++
			values[ref.IDField] = id
		case locations.ManualSelect:
			return fmt.Errorf("row %d: location needs a manual selection", row.Index)
		}
	}

	if err := e.sink.ApplyRow(ctx, s.Table, values, mode, target); err != nil {
		return err
	}
	if mode == repositories.WriteReplace {
		state.Replaced++
	}
	return nil
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
