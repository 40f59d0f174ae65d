package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/transform"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
)

// MockSink is a mock implementation of repositories.MutationSink and repositories.LocationSink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) ApplyRow(ctx context.Context, table schema.TableType, values map[string]any, mode repositories.WriteMode, targetID string) error {
	args := m.Called(ctx, table, values, mode, targetID)
	return args.Error(0)
}

func (m *MockSink) CreateLocation(ctx context.Context, loc locations.NewLocation) (string, error) {
	args := m.Called(ctx, loc)
	return args.String(0), args.Error(1)
}

// countingSink cancels the context after a fixed number of calls
type countingSink struct {
	calls    int
	cancelAt int
	cancel   context.CancelFunc
}

func (c *countingSink) ApplyRow(ctx context.Context, table schema.TableType, values map[string]any, mode repositories.WriteMode, targetID string) error {
	c.calls++
	if c.calls == c.cancelAt {
		c.cancel()
	}
	return nil
}

func (c *countingSink) CreateLocation(ctx context.Context, loc locations.NewLocation) (string, error) {
	return "", errors.New("not used")
}

func makeRows(n int) []transform.Row {
	rows := make([]transform.Row, n)
	for i := range rows {
		rows[i] = transform.Row{
			Index:  i + 1,
			Values: map[string]any{"description": fmt.Sprintf("Stop %d", i+1), "address": "Main St"},
		}
	}
	return rows
}

func quietLogger() utils.Logger {
	return utils.NewDevelopmentLogger()
}

func TestExecute_AbortAfterTenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &countingSink{cancelAt: 10, cancel: cancel}
	exec := New(sink, sink, quietLogger())

	state := exec.Execute(ctx, Plan{Schema: schema.MustFor(schema.Locations), Rows: makeRows(50)}, nil)

	assert.Equal(t, StatusAborted, state.Status)
	assert.Equal(t, 10, state.Processed)
	assert.Equal(t, 10, state.Successful)
	assert.Equal(t, 50, state.Total)
	assert.Equal(t, 20, state.Progress)
	assert.Equal(t, 10, sink.calls)
	require.NotNil(t, state.FinishedAt)
}

func TestExecute_RowFailureIsolation(t *testing.T) {
	sink := new(MockSink)
	sink.On("ApplyRow", mock.Anything, schema.Locations, mock.MatchedBy(func(v map[string]any) bool {
		return v["description"] == "Stop 2"
	}), repositories.WriteCreate, "").Return(errors.New("constraint violation")).Once()
	sink.On("ApplyRow", mock.Anything, schema.Locations, mock.Anything, repositories.WriteCreate, "").Return(nil)

	exec := New(sink, sink, quietLogger())
	state := exec.Execute(context.Background(), Plan{Schema: schema.MustFor(schema.Locations), Rows: makeRows(4)}, nil)

	assert.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, 4, state.Processed)
	assert.Equal(t, 3, state.Successful)
	assert.Equal(t, 1, state.Errored)
	require.Len(t, state.Failures, 1)
	assert.Equal(t, 2, state.Failures[0].Row)
	assert.Equal(t, "constraint violation", state.Failures[0].Message)
	sink.AssertNumberOfCalls(t, "ApplyRow", 4)
}

func TestExecute_AllRowsFail(t *testing.T) {
	sink := new(MockSink)
	sink.On("ApplyRow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("down"))

	state := New(sink, sink, quietLogger()).Execute(context.Background(),
		Plan{Schema: schema.MustFor(schema.Locations), Rows: makeRows(3), ExcludedRows: []int{3}}, nil)

	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, 2, state.Errored)
	assert.Equal(t, 1, state.Skipped)
}

func TestExecute_ResolutionsApplied(t *testing.T) {
	s := schema.MustFor(schema.Jobs)
	rows := makeRows(5)
	plan := Plan{
		Schema: s,
		Rows:   rows,
		Duplicates: []duplicates.Match{
			{ImportRowIndex: 1, ExistingRecordID: "job-1", Resolution: duplicates.Replace},
			{ImportRowIndex: 2, ExistingRecordID: "job-2", Resolution: duplicates.Skip},
		},
		Locations: []locations.Resolution{
			{ImportRowIndex: 1, Resolution: locations.UseExisting, SelectedLocationID: "loc-1"},
			{ImportRowIndex: 3, Resolution: locations.CreateNew, NewLocation: &locations.NewLocation{Name: "Stop 3", Address: "Main St"}},
			{ImportRowIndex: 4, Resolution: locations.Skip},
		},
		ExcludedRows: []int{5},
	}

	sink := new(MockSink)
	sink.On("CreateLocation", mock.Anything, locations.NewLocation{Name: "Stop 3", Address: "Main St"}).Return("loc-new", nil).Once()
	sink.On("ApplyRow", mock.Anything, schema.Jobs, mock.MatchedBy(func(v map[string]any) bool {
		return v["description"] == "Stop 1" && v["location_id"] == "loc-1"
	}), repositories.WriteReplace, "job-1").Return(nil).Once()
	sink.On("ApplyRow", mock.Anything, schema.Jobs, mock.MatchedBy(func(v map[string]any) bool {
		return v["description"] == "Stop 3" && v["location_id"] == "loc-new"
	}), repositories.WriteCreate, "").Return(nil).Once()

	state := New(sink, sink, quietLogger()).Execute(context.Background(), plan, nil)

	sink.AssertExpectations(t)
	assert.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, 2, state.Successful)
	assert.Equal(t, 3, state.Skipped)
	assert.Equal(t, 1, state.Replaced)
	assert.Equal(t, 1, state.LocationsCreated)

	// the plan rows are not modified
	assert.NotContains(t, rows[0].Values, "location_id")
}

func TestExecute_LocationCreateFailureErrorsRow(t *testing.T) {
	plan := Plan{
		Schema: schema.MustFor(schema.Jobs),
		Rows:   makeRows(1),
		Locations: []locations.Resolution{
			{ImportRowIndex: 1, Resolution: locations.CreateNew, NewLocation: &locations.NewLocation{Name: "x"}},
		},
	}

	sink := new(MockSink)
	sink.On("CreateLocation", mock.Anything, mock.Anything).Return("", errors.New("duplicate name"))

	state := New(sink, sink, quietLogger()).Execute(context.Background(), plan, nil)

	assert.Equal(t, StatusFailed, state.Status)
	require.Len(t, state.Failures, 1)
	assert.Contains(t, state.Failures[0].Message, "failed to create location")
	sink.AssertNotCalled(t, "ApplyRow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_ProgressPerChunk(t *testing.T) {
	sink := new(MockSink)
	sink.On("ApplyRow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var snapshots []State
	state := New(sink, sink, quietLogger()).Execute(context.Background(),
		Plan{Schema: schema.MustFor(schema.Locations), Rows: makeRows(25), ChunkSize: 10},
		func(s State) { snapshots = append(snapshots, s) })

	require.Len(t, snapshots, 3)
	assert.Equal(t, 10, snapshots[0].Processed)
	assert.Equal(t, StatusRunning, snapshots[0].Status)
	assert.Equal(t, 20, snapshots[1].Processed)
	assert.Equal(t, StatusComplete, snapshots[2].Status)
	assert.Equal(t, 100, state.Progress)
}
