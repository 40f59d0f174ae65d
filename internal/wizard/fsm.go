package wizard

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
)

// Step is a named state of the import wizard
type Step string

const (
	StepUpload     Step = "upload"
	StepPreview    Step = "preview"
	StepMapping    Step = "mapping"
	StepValidation Step = "validation"
	StepDuplicates Step = "duplicates"
	StepLocations  Step = "locations"
	StepImporting  Step = "importing"
	StepComplete   Step = "complete"
)

var steps = []Step{
	StepUpload,
	StepPreview,
	StepMapping,
	StepValidation,
	StepDuplicates,
	StepLocations,
	StepImporting,
	StepComplete,
}

// backTargets are the steps a user may return to before importing starts
var backTargets = map[Step]bool{
	StepPreview:    true,
	StepMapping:    true,
	StepDuplicates: true,
	StepLocations:  true,
}

var ErrInvalidTransition = stderrors.New("invalid wizard transition")

func ParseStep(s string) (Step, error) {
	for _, step := range steps {
		if string(step) == strings.ToLower(strings.TrimSpace(s)) {
			return step, nil
		}
	}
	return "", fmt.Errorf("unknown wizard step %q", s)
}

func (s Step) index() int {
	for i, step := range steps {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the following step, false on complete
func (s Step) Next() (Step, bool) {
	i := s.index()
	if i < 0 || i+1 >= len(steps) {
		return "", false
	}
	return steps[i+1], true
}

// Editable reports whether stage data may still change
func (s Step) Editable() bool {
	return s.index() < StepImporting.index()
}

// BlockingError names the rows and fields that prevent a transition
type BlockingError struct {
	Step   Step     `json:"step"`
	Reason string   `json:"reason"`
	Rows   []int    `json:"rows,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func (e *BlockingError) Error() string {
	msg := fmt.Sprintf("cannot leave %s: %s", e.Step, e.Reason)
	if len(e.Fields) > 0 {
		msg += fmt.Sprintf(" (fields: %s)", strings.Join(e.Fields, ", "))
	}
	if len(e.Rows) > 0 {
		msg += fmt.Sprintf(" (rows: %s)", joinRows(e.Rows))
	}
	return msg
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprint(r)
	}
	return strings.Join(parts, ", ")
}

// Guard decides whether the snapshot may move to the target step. It returns
// ErrInvalidTransition for an edge that does not exist and a *BlockingError when
// the edge exists but the stage still needs user action.
func Guard(snap Snapshot, to Step) error {
	from := snap.Step
	if from == StepComplete || to.index() < 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if to.index() < from.index() {
		if !from.Editable() || !backTargets[to] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		return nil
	}

	if next, ok := from.Next(); !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	switch to {
	case StepPreview:
		return canPreview(snap)
	case StepDuplicates:
		return canReviewDuplicates(snap)
	case StepImporting:
		return canImport(snap)
	case StepComplete:
		return canComplete(snap)
	}
	return nil
}

func canPreview(snap Snapshot) error {
	if snap.File == nil {
		return &BlockingError{Step: snap.Step, Reason: "no parsed file"}
	}
	return nil
}

func canReviewDuplicates(snap Snapshot) error {
	if snap.Report.ErrorCount() == 0 {
		return nil
	}
	if snap.AllowPartial && len(snap.Report.ImportableRows()) > 0 {
		return nil
	}
	return &BlockingError{
		Step:   snap.Step,
		Reason: "rows have validation errors",
		Rows:   snap.Report.ErrorRows(),
	}
}

func canImport(snap Snapshot) error {
	if missing := snap.Mappings.MissingRequired(); len(missing) > 0 {
		return &BlockingError{Step: snap.Step, Reason: "required fields are not mapped", Fields: missing}
	}

	excluded := snap.excluded()
	var pending []int
	for _, m := range duplicates.Pending(snap.Duplicates) {
		if !excluded[m.ImportRowIndex] {
			pending = append(pending, m.ImportRowIndex)
		}
	}
	if len(pending) > 0 {
		return &BlockingError{Step: snap.Step, Reason: "duplicates are unresolved", Rows: pending}
	}

	pending = nil
	for _, row := range locations.PendingRows(snap.Locations) {
		if !excluded[row] {
			pending = append(pending, row)
		}
	}
	if len(pending) > 0 {
		return &BlockingError{Step: snap.Step, Reason: "locations need a selection", Rows: pending}
	}

	if snap.ImportableCount() == 0 {
		return &BlockingError{Step: snap.Step, Reason: "no rows to import"}
	}
	return nil
}

func canComplete(snap Snapshot) error {
	if snap.Execution == nil || !snap.Execution.Status.Terminal() {
		return &BlockingError{Step: snap.Step, Reason: "import is still running"}
	}
	return nil
}
