package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/vrp-import-service/internal/cache"
	"github.com/SAP-F-2025/vrp-import-service/internal/config"
	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	apperrors "github.com/SAP-F-2025/vrp-import-service/internal/errors"
	"github.com/SAP-F-2025/vrp-import-service/internal/events"
	"github.com/SAP-F-2025/vrp-import-service/internal/executor"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/mapping"
	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/parser"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
	"github.com/SAP-F-2025/vrp-import-service/internal/validator"
	"github.com/SAP-F-2025/vrp-import-service/internal/wizard"
)

// ImportService drives import sessions through the wizard
type ImportService interface {
	// Session lifecycle
	StartSession(ctx context.Context, owner string, req *StartImportRequest, fileName string, file io.Reader) (*SessionView, error)
	GetSession(ctx context.Context, id, owner string) (*SessionView, error)
	Transition(ctx context.Context, id, owner string, req *TransitionRequest) (*SessionView, error)
	Undo(ctx context.Context, id, owner string) (*SessionView, error)
	Abort(ctx context.Context, id, owner string) (*SessionView, error)
	ListSessions(ctx context.Context, filters repositories.ImportSessionFilters) ([]*models.ImportSession, int64, error)

	// Column mapping
	UpdateMapping(ctx context.Context, id, owner string, req *UpdateMappingRequest) (*SessionView, error)
	AutoMap(ctx context.Context, id, owner string) (*SessionView, error)
	Suggestions(ctx context.Context, id, owner, column string) ([]mapping.Suggestion, error)

	// Duplicates and locations
	ResolveDuplicate(ctx context.Context, id, owner string, req *ResolveDuplicateRequest) (*SessionView, error)
	AcceptDuplicateSuggestions(ctx context.Context, id, owner string) (*SessionView, error)
	ResolveLocation(ctx context.Context, id, owner string, req *ResolveLocationRequest) (*SessionView, error)
	AutoResolveLocations(ctx context.Context, id, owner string) (*SessionView, error)

	// Execution and results
	Execute(ctx context.Context, id, owner string) (*SessionView, error)
	GetReport(ctx context.Context, id, owner string) (*ImportReport, error)
	GenerateTemplate(ctx context.Context, table string) ([]byte, error)
}

// importSession is the service-side envelope of a wizard session
type importSession struct {
	id        string
	owner     string
	wiz       *wizard.Session
	status    models.ImportSessionStatus
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	touchedAt time.Time
}

type importService struct {
	repo          repositories.Repository
	publisher     events.EventPublisher
	cache         cache.CacheService
	tuning        *config.Tuning
	cfg           config.ImportConfig
	validator     *validator.Validator
	logger        *slog.Logger
	serviceLogger *ServiceLogger

	mu       sync.Mutex
	sessions map[string]*importSession
	active   map[string]string // owner -> session id
	now      func() time.Time
}

// ImportServiceDeps groups the collaborators of the import service; Cache and Publisher are optional
type ImportServiceDeps struct {
	Repo      repositories.Repository
	Publisher events.EventPublisher
	Cache     cache.CacheService
	Tuning    *config.Tuning
	Config    config.ImportConfig
	Validator *validator.Validator
	Logger    *slog.Logger
}

func NewImportService(deps ImportServiceDeps) ImportService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Tuning == nil {
		deps.Tuning = &config.Tuning{Locations: locations.DefaultOptions()}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewMockEventPublisher(deps.Logger)
	}

	return &importService{
		repo:      deps.Repo,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		tuning:    deps.Tuning,
		cfg:       deps.Config,
		validator: deps.Validator,
		logger:    deps.Logger,
		serviceLogger: NewServiceLogger(deps.Logger, LogConfig{
			Service:   "vrp-import-service",
			Component: "import",
		}),
		sessions: make(map[string]*importSession),
		active:   make(map[string]string),
		now:      time.Now,
	}
}

// ===== SESSION LIFECYCLE =====

func (s *importService) StartSession(ctx context.Context, owner string, req *StartImportRequest, fileName string, file io.Reader) (view *SessionView, err error) {
	op := s.serviceLogger.WithOperation(ctx, "start_import", owner)
	sessionID := ""
	defer func() { op.LogResult(sessionID, err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	table, _ := schema.ParseTableType(req.TableType)

	s.mu.Lock()
	s.expireIdleLocked()
	if _, busy := s.active[owner]; busy {
		s.mu.Unlock()
		return nil, ErrSessionActive
	}
	s.mu.Unlock()

	opts := parser.Options{MaxBytes: s.cfg.MaxFileBytes}
	if req.Delimiter != "" {
		opts.Delimiter = []rune(req.Delimiter)[0]
	}
	parsed, err := parser.Parse(ctx, file, fileName, opts)
	if err != nil {
		return nil, err
	}

	sch, err := s.tuning.Schema(table)
	if err != nil {
		return nil, err
	}
	inputs, err := s.fetchInputs(ctx, sch)
	if err != nil {
		return nil, err
	}

	allowPartial := s.cfg.AllowPartial
	if req.AllowPartial != nil {
		allowPartial = *req.AllowPartial
	}
	wiz := wizard.NewSession(parsed, sch, inputs, wizard.Pipeline{
		Validator:       s.validator,
		Detector:        duplicates.NewDetector(nil),
		LocationOptions: s.tuning.Locations,
		ChunkSize:       s.cfg.ChunkSize,
	}, allowPartial)
	if _, err := wiz.Transition(wizard.StepPreview); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &importSession{
		id:        uuid.NewString(),
		owner:     owner,
		wiz:       wiz,
		status:    models.ImportActive,
		startedAt: now,
		touchedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[owner]; busy {
		return nil, ErrSessionActive
	}
	s.sessions[sess.id] = sess
	s.active[owner] = sess.id
	sessionID = sess.id

	snap := wiz.Current()
	s.serviceLogger.LogStage(ctx, sess.id, snap)
	return buildSessionView(sess, snap, wiz.Revisions()), nil
}

// fetchInputs reads the existing-data and master-location snapshots concurrently
func (s *importService) fetchInputs(ctx context.Context, sch *schema.Schema) (wizard.Inputs, error) {
	var inputs wizard.Inputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		existing, err := s.repo.FetchExisting(gctx, sch.Table)
		if err != nil {
			return fmt.Errorf("failed to fetch existing %s: %w", sch.Table, err)
		}
		inputs.Existing = existing
		return nil
	})
	if sch.LocationRef != nil {
		g.Go(func() error {
			master, err := s.repo.FetchLocations(gctx)
			if err != nil {
				return fmt.Errorf("failed to fetch locations: %w", err)
			}
			inputs.Master = master
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return wizard.Inputs{}, err
	}
	return inputs, nil
}

func (s *importService) GetSession(ctx context.Context, id, owner string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id, owner)
	if err != nil {
		return nil, err
	}
	return buildSessionView(sess, sess.wiz.Current(), sess.wiz.Revisions()), nil
}

func (s *importService) Transition(ctx context.Context, id, owner string, req *TransitionRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	step, err := wizard.ParseStep(req.Step)
	if err != nil {
		return nil, apperrors.NewValidationErrorWithRule("step", err.Error(), "step", req.Step)
	}
	if step == wizard.StepImporting {
		return s.Execute(ctx, id, owner)
	}

	return s.edit(ctx, "transition", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		return w.Transition(step)
	})
}

func (s *importService) Undo(ctx context.Context, id, owner string) (*SessionView, error) {
	return s.edit(ctx, "undo", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		return w.Undo()
	})
}

// Abort cancels a running import or ends a session that has not started executing
func (s *importService) Abort(ctx context.Context, id, owner string) (view *SessionView, err error) {
	op := s.serviceLogger.WithOperation(ctx, "abort_import", owner)
	defer func() { op.LogResult(id, err) }()

	s.mu.Lock()
	sess, err := s.getLocked(id, owner)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess.status.Terminal() {
		s.mu.Unlock()
		return nil, ErrSessionTerminated
	}

	if sess.cancel != nil {
		cancel, done := sess.cancel, sess.done
		s.mu.Unlock()

		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return s.GetSession(ctx, id, owner)
	}

	sess.status = models.ImportAborted
	delete(s.active, sess.owner)
	snap := sess.wiz.Current()
	view = buildSessionView(sess, snap, sess.wiz.Revisions())
	s.mu.Unlock()

	s.persist(ctx, sess, snap)
	s.publish(ctx, events.NewImportFinishedEvent(finishedEventData(sess, snap, string(executor.StatusAborted))))
	return view, nil
}

func (s *importService) ListSessions(ctx context.Context, filters repositories.ImportSessionFilters) ([]*models.ImportSession, int64, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	return s.repo.ImportSessions().List(ctx, filters)
}

// ===== COLUMN MAPPING =====

func (s *importService) UpdateMapping(ctx context.Context, id, owner string, req *UpdateMappingRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.edit(ctx, "update_mapping", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		return w.UpdateMapping(req.SourceColumn, req.TargetField)
	})
}

func (s *importService) AutoMap(ctx context.Context, id, owner string) (*SessionView, error) {
	return s.edit(ctx, "auto_map", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		return w.AutoMap()
	})
}

func (s *importService) Suggestions(ctx context.Context, id, owner, column string) ([]mapping.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id, owner)
	if err != nil {
		return nil, err
	}
	set := sess.wiz.Current().Mappings
	if _, ok := set.Lookup(column); !ok {
		return nil, fmt.Errorf("%w: %s", mapping.ErrUnknownColumn, column)
	}
	return set.Suggestions(column), nil
}

// ===== DUPLICATES AND LOCATIONS =====

func (s *importService) ResolveDuplicate(ctx context.Context, id, owner string, req *ResolveDuplicateRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	resolution := duplicates.Resolution(req.Resolution)
	return s.edit(ctx, "resolve_duplicate", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		if req.Row == 0 {
			return w.ResolveAllDuplicates(resolution)
		}
		return w.ResolveDuplicate(req.Row, resolution)
	})
}

func (s *importService) AcceptDuplicateSuggestions(ctx context.Context, id, owner string) (*SessionView, error) {
	return s.edit(ctx, "accept_duplicate_suggestions", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		return w.AcceptDuplicateSuggestions()
	})
}

func (s *importService) ResolveLocation(ctx context.Context, id, owner string, req *ResolveLocationRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.edit(ctx, "resolve_location", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		switch locations.Action(req.Resolution) {
		case locations.UseExisting:
			return w.SelectLocation(req.Row, req.LocationID)
		case locations.CreateNew:
			return w.CreateLocation(req.Row)
		default:
			return w.SkipLocation(req.Row)
		}
	})
}

func (s *importService) AutoResolveLocations(ctx context.Context, id, owner string) (*SessionView, error) {
	return s.edit(ctx, "auto_resolve_locations", id, owner, func(w *wizard.Session) (wizard.Snapshot, error) {
		return w.AutoResolveLocations()
	})
}

// edit runs one wizard operation on an active session and logs the result
func (s *importService) edit(ctx context.Context, operation, id, owner string, fn func(*wizard.Session) (wizard.Snapshot, error)) (view *SessionView, err error) {
	op := s.serviceLogger.WithOperation(ctx, operation, owner)
	defer func() { op.LogResult(id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id, owner)
	if err != nil {
		return nil, err
	}
	if sess.status.Terminal() {
		return nil, ErrSessionTerminated
	}
	sess.touchedAt = s.now()

	snap, err := fn(sess.wiz)
	if err != nil {
		return nil, err
	}
	s.serviceLogger.LogStage(ctx, sess.id, snap)
	return buildSessionView(sess, snap, sess.wiz.Revisions()), nil
}

// ===== EXECUTION =====

// Execute moves the session to importing and applies the rows in the background
func (s *importService) Execute(ctx context.Context, id, owner string) (view *SessionView, err error) {
	op := s.serviceLogger.WithOperation(ctx, "execute_import", owner)
	defer func() { op.LogResult(id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id, owner)
	if err != nil {
		return nil, err
	}
	if sess.status.Terminal() {
		return nil, ErrSessionTerminated
	}

	plan, err := sess.wiz.StartImport()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess.cancel = cancel
	sess.done = make(chan struct{})
	sess.touchedAt = s.now()

	snap := sess.wiz.Current()
	s.publish(ctx, events.NewImportStartedEvent(events.ImportStartedEvent{
		SessionID: sess.id,
		Owner:     sess.owner,
		TableType: string(snap.Schema.Table),
		FileName:  snap.File.FileName,
		TotalRows: len(plan.Rows),
		StartedAt: s.now(),
	}))

	go s.run(runCtx, sess, plan)

	return buildSessionView(sess, snap, sess.wiz.Revisions()), nil
}

func (s *importService) run(ctx context.Context, sess *importSession, plan executor.Plan) {
	defer close(sess.done)
	defer sess.cancel()
	defer func() {
		if r := recover(); r != nil {
			s.serviceLogger.LogRecovery(ctx, "execute_import", sess.id, r, debug.Stack())
			s.finish(ctx, sess, executor.State{Total: len(plan.Rows), Status: executor.StatusFailed})
		}
	}()

	logger := utils.NewSlogLogger(s.logger).With("session_id", sess.id)
	exec := executor.New(s.repo, s.repo, logger)
	state := exec.Execute(ctx, plan, func(progress executor.State) {
		sess.wiz.RecordExecution(progress)
	})
	s.finish(ctx, sess, state)
}

// finish records the terminal state, releases the owner and emits the outcome
func (s *importService) finish(ctx context.Context, sess *importSession, state executor.State) {
	snap := sess.wiz.RecordExecution(state)
	if snap.Execution == nil || !snap.Execution.Status.Terminal() {
		snap.Execution = &state
	}

	s.mu.Lock()
	switch state.Status {
	case executor.StatusComplete:
		sess.status = models.ImportCompleted
	case executor.StatusAborted:
		sess.status = models.ImportAborted
	default:
		sess.status = models.ImportFailed
	}
	sess.touchedAt = s.now()
	if s.active[sess.owner] == sess.id {
		delete(s.active, sess.owner)
	}
	report := buildReport(sess, snap)
	s.mu.Unlock()

	// the request context is gone; audit writes get their own deadline
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	s.persist(auditCtx, sess, snap)
	s.cacheReport(auditCtx, report)
	s.publish(auditCtx, events.NewImportFinishedEvent(finishedEventData(sess, snap, string(state.Status))))
}

// ===== RESULTS =====

func (s *importService) GetReport(ctx context.Context, id, owner string) (*ImportReport, error) {
	s.mu.Lock()
	sess, err := s.getLocked(id, owner)
	if err == nil {
		report := buildReport(sess, sess.wiz.Current())
		s.mu.Unlock()
		return report, nil
	}
	s.mu.Unlock()

	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	// sessions that expired from memory keep their report in the cache, then in the audit table
	if s.cache != nil {
		var report ImportReport
		cacheErr := s.cache.Get(ctx, reportKey(id), &report)
		if cacheErr == nil {
			return &report, nil
		}
		if !errors.Is(cacheErr, cache.ErrCacheMiss) {
			s.logger.Warn("Failed to read cached report", "session_id", id, "error", cacheErr)
		}
	}
	return s.persistedReport(ctx, id, owner)
}

func (s *importService) persistedReport(ctx context.Context, id, owner string) (*ImportReport, error) {
	record, err := s.repo.ImportSessions().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load import session %s: %w", id, err)
	}
	if record == nil {
		return nil, ErrSessionNotFound
	}
	if record.Owner != owner {
		return nil, ErrForbidden
	}

	report := &ImportReport{
		SessionID: record.ID,
		Status:    record.Status,
		Step:      wizard.Step(record.Step),
	}
	if len(record.Summary) > 0 {
		if err := json.Unmarshal(record.Summary, &report.Summary); err != nil {
			return nil, fmt.Errorf("decode summary of %s: %w", id, err)
		}
	}
	if len(record.Issues) > 0 {
		if err := json.Unmarshal(record.Issues, &report.RowErrors); err != nil {
			return nil, fmt.Errorf("decode issues of %s: %w", id, err)
		}
	}
	return report, nil
}

func reportKey(id string) string {
	return "report:" + id
}

func (s *importService) cacheReport(ctx context.Context, report *ImportReport) {
	if s.cache == nil {
		return
	}
	ttl := s.cfg.ReportTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.cache.Set(ctx, reportKey(report.SessionID), report, ttl); err != nil {
		s.logger.Warn("Failed to cache import report", "session_id", report.SessionID, "error", err)
	}
}

func (s *importService) persist(ctx context.Context, sess *importSession, snap wizard.Snapshot) {
	record := &models.ImportSession{
		ID:        sess.id,
		Owner:     sess.owner,
		TableType: string(snap.Schema.Table),
		FileName:  snap.File.FileName,
		FileType:  string(snap.File.Format),
		FileSize:  snap.File.Size,
		Status:    sess.status,
		Step:      string(snap.Step),
		TotalRows: len(snap.Rows),
		StartedAt: &sess.startedAt,
	}
	if exec := snap.Execution; exec != nil {
		record.Progress = exec.Progress
		record.ProcessedRows = exec.Processed
		record.SuccessCount = exec.Successful
		record.ErrorCount = exec.Errored
		record.SkippedCount = exec.Skipped
		record.CompletedAt = exec.FinishedAt
	} else {
		completed := s.now()
		record.CompletedAt = &completed
	}

	if issues, err := json.Marshal(rowErrors(snap)); err == nil {
		record.Issues = datatypes.JSON(issues)
	}
	if summary, err := json.Marshal(buildSummary(snap)); err == nil {
		record.Summary = datatypes.JSON(summary)
	}

	if err := s.repo.ImportSessions().Save(ctx, record); err != nil {
		s.logger.Error("Failed to persist import session", "session_id", sess.id, "error", err)
	}
}

func rowErrors(snap wizard.Snapshot) []models.ImportRowError {
	out := make([]models.ImportRowError, 0, len(snap.Report.Issues))
	for _, issue := range snap.Report.Issues {
		out = append(out, models.ImportRowError{
			Row:      issue.Row,
			Column:   issue.Column,
			Message:  issue.Message,
			Severity: string(issue.Severity),
			Code:     issue.Rule,
		})
	}
	if snap.Execution != nil {
		for _, f := range snap.Execution.Failures {
			out = append(out, models.ImportRowError{
				Row:      f.Row,
				Message:  f.Message,
				Severity: "error",
				Code:     "mutation",
			})
		}
	}
	return out
}

func (s *importService) publish(ctx context.Context, event *events.ImportEvent) {
	if err := s.publisher.PublishImportEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish import event", "event_type", event.Type, "error", err)
	}
}

func finishedEventData(sess *importSession, snap wizard.Snapshot, status string) events.ImportFinishedEvent {
	data := events.ImportFinishedEvent{
		SessionID:  sess.id,
		Owner:      sess.owner,
		TableType:  string(snap.Schema.Table),
		Status:     status,
		TotalRows:  len(snap.Rows),
		FinishedAt: time.Now(),
	}
	if exec := snap.Execution; exec != nil {
		data.Processed = exec.Processed
		data.Successful = exec.Successful
		data.Errored = exec.Errored
		data.Skipped = exec.Skipped
		data.LocationsCreated = exec.LocationsCreated
		if exec.FinishedAt != nil {
			data.FinishedAt = *exec.FinishedAt
		}
	}
	return data
}

// ===== HELPERS =====

func (s *importService) getLocked(id, owner string) (*importSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.owner != owner {
		return nil, ErrForbidden
	}
	return sess, nil
}

// expireIdleLocked drops finished sessions and aborts idle ones that never started executing
func (s *importService) expireIdleLocked() {
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-ttl)
	for id, sess := range s.sessions {
		if sess.cancel != nil && !sess.status.Terminal() {
			continue
		}
		if sess.touchedAt.After(cutoff) {
			continue
		}
		if !sess.status.Terminal() {
			s.logger.Info("Expiring idle import session", "session_id", id, "owner", sess.owner)
			sess.status = models.ImportAborted
		}
		if s.active[sess.owner] == id {
			delete(s.active, sess.owner)
		}
		delete(s.sessions, id)
	}
}
