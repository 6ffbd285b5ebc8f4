package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-student/edu-import-api/internal/importer"
	"github.com/smart-student/edu-import-api/internal/models"
	"github.com/smart-student/edu-import-api/pkg/config"
	appErrors "github.com/smart-student/edu-import-api/pkg/errors"
	"github.com/smart-student/edu-import-api/pkg/export"
	"github.com/smart-student/edu-import-api/pkg/jobs"
)

type catalogStore interface {
	CoursesForYear(ctx context.Context, year int) ([]models.Course, error)
	SubjectsForYear(ctx context.Context, year int) ([]models.Subject, error)
	StudentsForYear(ctx context.Context, year int) ([]models.Student, error)
	InsertSubjects(ctx context.Context, subjects []models.Subject) error
}

type runStore interface {
	Save(ctx context.Context, run *models.ImportRun) error
	Get(ctx context.Context, id string) (*models.ImportRun, error)
	AcquireYearLock(ctx context.Context, year int, runID string, ttl time.Duration) error
	ReleaseYearLock(ctx context.Context, year int, runID string) error
}

type yearScopedStore interface {
	DeleteByYear(ctx context.Context, year int) (int64, error)
	CountsByYear(ctx context.Context) (map[int]int, error)
}

type docStoreAdmin interface {
	DeleteByYear(ctx context.Context, kind string, year int) (int64, error)
}

type replicator interface {
	Active() bool
	Replicate(ctx context.Context, grades []models.GradeRecord, activities []models.ActivityRecord, attendance []models.AttendanceRecord, progress BatchProgressFunc) ([]models.BackendOutcome, []string)
}

// StartImportRequest carries one uploaded file into the engine.
type StartImportRequest struct {
	Kind     models.RunKind `validate:"required,oneof=grades attendance"`
	Year     int            `validate:"required,min=2000,max=2100"`
	FileName string         `validate:"required"`
	Content  []byte         `validate:"required"`
}

// runState is the live view of a run, kept in memory while it executes.
type runState struct {
	run    *models.ImportRun
	cancel context.CancelFunc
	mu     sync.Mutex
}

// ImportService owns the full lifecycle of import runs: locking, parsing,
// the normalization pipeline, replication, progress mirroring and the
// post-run exports.
type ImportService struct {
	catalogs   catalogStore
	runs       runStore
	grades     yearScopedStore
	activities yearScopedStore
	attendance yearScopedStore
	docs       docStoreAdmin
	replicate  replicator

	cfg       config.ImportConfig
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger

	queue *jobs.Queue

	mu       sync.RWMutex
	registry map[string]*runState
}

// NewImportService wires the orchestrator. Call Start before serving and
// Stop on shutdown when async runs are enabled.
func NewImportService(
	catalogs catalogStore,
	runs runStore,
	grades, activities, attendance yearScopedStore,
	docs docStoreAdmin,
	replicate replicator,
	cfg config.ImportConfig,
	v *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *ImportService {
	s := &ImportService{
		catalogs:   catalogs,
		runs:       runs,
		grades:     grades,
		activities: activities,
		attendance: attendance,
		docs:       docs,
		replicate:  replicate,
		cfg:        cfg,
		validator:  v,
		metrics:    metrics,
		logger:     logger,
		registry:   make(map[string]*runState),
	}

	s.queue = jobs.NewQueue("import-runs", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})

	return s
}

// Start launches the background queue.
func (s *ImportService) Start(ctx context.Context) {
	if s.cfg.AsyncRuns {
		s.queue.Start(ctx)
	}
}

// Stop drains the background queue.
func (s *ImportService) Stop() {
	if s.cfg.AsyncRuns {
		s.queue.Stop()
	}
}

// Queue exposes the run queue for readiness reporting. Returns nil when
// async runs are disabled.
func (s *ImportService) Queue() *jobs.Queue {
	if !s.cfg.AsyncRuns {
		return nil
	}
	return s.queue
}

// StartImport validates the upload, takes the per-year lock, parses the file
// and either runs the pipeline inline or hands it to the queue. Structural
// failures surface here, before any row is processed.
func (s *ImportService) StartImport(ctx context.Context, req StartImportRequest) (*models.ImportRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import request")
	}
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(req.Content)) > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.ErrFileTooLarge
	}

	runID := uuid.NewString()
	if err := s.runs.AcquireYearLock(ctx, req.Year, runID, s.cfg.RunLockTTL); err != nil {
		return nil, err
	}

	run := &models.ImportRun{
		ID:        runID,
		Kind:      req.Kind,
		Year:      req.Year,
		FileName:  req.FileName,
		Progress:  models.RunProgress{Phase: models.PhaseParsing},
		StartedAt: time.Now().UTC(),
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	state := &runState{run: run, cancel: cancel}

	s.mu.Lock()
	s.registry[runID] = state
	s.mu.Unlock()

	s.saveRun(ctx, state)
	s.metrics.RunStarted(req.Kind)

	table, err := parseUpload(req.FileName, req.Content)
	if err != nil {
		s.finishRun(ctx, state, models.PhaseError, nil, []string{err.Error()})
		return nil, err
	}

	resolver, err := s.buildResolver(ctx, req.Year)
	if err != nil {
		s.finishRun(ctx, state, models.PhaseError, nil, []string{err.Error()})
		return nil, err
	}

	state.mu.Lock()
	state.run.Progress = models.RunProgress{
		Phase: models.PhasePending,
		Total: len(table.Rows),
	}
	state.mu.Unlock()

	input := importer.Input{
		Kind:      req.Kind,
		Year:      req.Year,
		Table:     table,
		Resolver:  resolver,
		Scale:     s.cfg.ScoreScale,
		SliceSize: s.cfg.SliceSize,
		Now:       run.StartedAt,
	}

	if s.cfg.AsyncRuns {
		err := s.queue.Enqueue(jobs.Job{
			ID:      runID,
			Type:    string(req.Kind),
			Payload: pipelineJob{state: state, ctx: runCtx, input: input},
		})
		if err != nil {
			s.finishRun(ctx, state, models.PhaseError, nil, []string{err.Error()})
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not queue import run")
		}
		return s.snapshot(state), nil
	}

	s.execute(runCtx, state, input)
	return s.snapshot(state), nil
}

// pipelineJob is the queue payload: the run already holds its parsed table
// and resolver, the worker only drives the shared pipeline.
type pipelineJob struct {
	state *runState
	ctx   context.Context
	input importer.Input
}

func (s *ImportService) handleJob(_ context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(pipelineJob)
	if !ok {
		return fmt.Errorf("unexpected payload for job %s", job.ID)
	}
	s.execute(payload.ctx, payload.state, payload.input)
	return nil
}

// execute drives one run end to end. The queue path and the inline path both
// land here with the same input, so their behavior cannot diverge.
func (s *ImportService) execute(ctx context.Context, state *runState, input importer.Input) {
	out := importer.RunPipeline(ctx, input, func(p models.RunProgress) {
		state.mu.Lock()
		state.run.Progress = p
		state.mu.Unlock()
		s.saveRun(context.WithoutCancel(ctx), state)
	})

	s.metrics.ObserveRows(out.Processed, len(out.RowErrors))

	state.mu.Lock()
	for _, rowErr := range out.RowErrors {
		state.run.RowErrors = append(state.run.RowErrors, rowErr)
	}
	state.run.Progress.Phase = models.PhaseReplicating
	state.mu.Unlock()

	// Replication always commits the processed prefix, cancelled or not.
	commitCtx := context.WithoutCancel(ctx)
	s.saveRun(commitCtx, state)

	if len(out.PendingSubjects) > 0 {
		if err := s.catalogs.InsertSubjects(commitCtx, out.PendingSubjects); err != nil {
			s.logger.Error("flush synthesized subjects", zap.Error(err))
			state.mu.Lock()
			state.run.RowErrors = append(state.run.RowErrors, models.RowError{Reason: fmt.Sprintf("subjects not persisted: %v", err)})
			state.mu.Unlock()
		}
	}

	var outcomes []models.BackendOutcome
	var backendErrs []string
	if s.replicate.Active() {
		outcomes, backendErrs = s.replicate.Replicate(commitCtx, out.Grades, out.Activities, out.Attendance, func(backend string, done, total int) {
			state.mu.Lock()
			state.run.Progress.Current = done
			state.run.Progress.Total = total
			state.mu.Unlock()
			s.saveRun(commitCtx, state)
		})
	}

	phase := models.PhaseCompleted
	if out.Cancelled {
		phase = models.PhaseCancelled
	}
	s.finishRun(commitCtx, state, phase, outcomes, backendErrs)
}

func (s *ImportService) finishRun(ctx context.Context, state *runState, phase models.RunPhase, outcomes []models.BackendOutcome, backendErrs []string) {
	now := time.Now().UTC()

	state.mu.Lock()
	run := state.run
	run.Progress.Phase = phase

	created := 0
	for _, outcome := range outcomes {
		if outcome.Success > created {
			created = outcome.Success
		}
	}
	run.Progress.Created = created
	run.Progress.Errors = len(run.RowErrors) + len(backendErrs)
	run.Progress.Success = created

	summaryErrs := make([]string, 0, len(run.RowErrors)+len(backendErrs))
	for _, rowErr := range run.RowErrors {
		if rowErr.Row > 0 {
			summaryErrs = append(summaryErrs, fmt.Sprintf("row %d: %s", rowErr.Row, rowErr.Reason))
		} else {
			summaryErrs = append(summaryErrs, rowErr.Reason)
		}
	}
	summaryErrs = append(summaryErrs, backendErrs...)

	run.Summary = &models.RunSummary{
		Created:   created,
		Errors:    summaryErrs,
		ElapsedMs: now.Sub(run.StartedAt).Milliseconds(),
		Backends:  outcomes,
	}
	run.FinishedAt = &now
	kind := run.Kind
	year := run.Year
	id := run.ID
	startedAt := run.StartedAt
	state.mu.Unlock()

	s.saveRun(ctx, state)
	s.metrics.RunFinished(kind, phase, now.Sub(startedAt))

	if err := s.runs.ReleaseYearLock(ctx, year, id); err != nil {
		s.logger.Warn("release year lock", zap.Int("year", year), zap.Error(err))
	}

	// Terminal runs live in the mirror only; the registry stays bounded.
	s.mu.Lock()
	delete(s.registry, id)
	s.mu.Unlock()

	s.logger.Info("import run finished",
		zap.String("run_id", id),
		zap.String("kind", string(kind)),
		zap.String("phase", string(phase)),
		zap.Int("created", created),
		zap.Int("errors", len(summaryErrs)))
}

// CancelRun requests cooperative cancellation; the pipeline observes it at
// the next slice boundary and the processed prefix still commits.
func (s *ImportService) CancelRun(ctx context.Context, id string) (*models.ImportRun, error) {
	s.mu.RLock()
	state, ok := s.registry[id]
	s.mu.RUnlock()
	if !ok {
		if _, err := s.runs.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, appErrors.ErrRunNotCancellable
	}

	state.mu.Lock()
	terminal := state.run.Progress.Phase.Terminal()
	state.mu.Unlock()
	if terminal {
		return nil, appErrors.ErrRunNotCancellable
	}

	state.cancel()
	return s.snapshot(state), nil
}

// GetRun returns the live snapshot when the run is still in memory and the
// mirrored one otherwise.
func (s *ImportService) GetRun(ctx context.Context, id string) (*models.ImportRun, error) {
	s.mu.RLock()
	state, ok := s.registry[id]
	s.mu.RUnlock()
	if ok {
		return s.snapshot(state), nil
	}
	return s.runs.Get(ctx, id)
}

// ErrorReportCSV renders a run's row errors as a downloadable CSV.
func (s *ImportService) ErrorReportCSV(ctx context.Context, id string) ([]byte, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"row", "reason"}}
	for _, rowErr := range run.RowErrors {
		row := ""
		if rowErr.Row > 0 {
			row = strconv.Itoa(rowErr.Row)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{"row": row, "reason": rowErr.Reason})
	}

	return export.NewCSVExporter().Render(dataset)
}

// SummaryPDF renders a finished run's summary as a PDF document.
func (s *ImportService) SummaryPDF(ctx context.Context, id string) ([]byte, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Summary == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "import run has not finished")
	}

	summary := &export.Summary{Lines: []export.SummaryLine{
		{Label: "File", Value: run.FileName},
		{Label: "Kind", Value: string(run.Kind)},
		{Label: "Year", Value: strconv.Itoa(run.Year)},
		{Label: "Phase", Value: string(run.Progress.Phase)},
		{Label: "Records created", Value: strconv.Itoa(run.Summary.Created)},
		{Label: "Errors", Value: strconv.Itoa(len(run.Summary.Errors))},
		{Label: "Elapsed", Value: fmt.Sprintf("%d ms", run.Summary.ElapsedMs)},
	}}

	dataset := export.Dataset{Headers: []string{"backend", "success", "failed"}}
	for _, outcome := range run.Summary.Backends {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"backend": outcome.Backend,
			"success": strconv.Itoa(outcome.Success),
			"failed":  strconv.Itoa(outcome.Failed),
		})
	}

	return export.NewPDFExporter().Render(dataset, "Import run "+run.ID, summary)
}

// DeleteGradesByYear bulk-deletes grade and activity records for one year in
// every backend.
func (s *ImportService) DeleteGradesByYear(ctx context.Context, year int) (int64, error) {
	deleted, err := s.grades.DeleteByYear(ctx, year)
	if err != nil {
		return 0, err
	}
	if _, err := s.activities.DeleteByYear(ctx, year); err != nil {
		return deleted, err
	}
	if s.docs != nil {
		if _, err := s.docs.DeleteByYear(ctx, "grade", year); err != nil {
			s.logger.Warn("delete grade documents", zap.Int("year", year), zap.Error(err))
		}
		if _, err := s.docs.DeleteByYear(ctx, "activity", year); err != nil {
			s.logger.Warn("delete activity documents", zap.Int("year", year), zap.Error(err))
		}
	}
	return deleted, nil
}

// DeleteAttendanceByYear bulk-deletes attendance records for one year in
// every backend.
func (s *ImportService) DeleteAttendanceByYear(ctx context.Context, year int) (int64, error) {
	deleted, err := s.attendance.DeleteByYear(ctx, year)
	if err != nil {
		return 0, err
	}
	if s.docs != nil {
		if _, err := s.docs.DeleteByYear(ctx, "attendance", year); err != nil {
			s.logger.Warn("delete attendance documents", zap.Int("year", year), zap.Error(err))
		}
	}
	return deleted, nil
}

// Counters aggregates per-year persisted record counts for the dashboard.
func (s *ImportService) Counters(ctx context.Context) (*models.RecordCounters, error) {
	gradeCounts, err := s.grades.CountsByYear(ctx)
	if err != nil {
		return nil, err
	}
	activityCounts, err := s.activities.CountsByYear(ctx)
	if err != nil {
		return nil, err
	}
	attendanceCounts, err := s.attendance.CountsByYear(ctx)
	if err != nil {
		return nil, err
	}

	years := make(map[int]struct{})
	for year := range gradeCounts {
		years[year] = struct{}{}
	}
	for year := range activityCounts {
		years[year] = struct{}{}
	}
	for year := range attendanceCounts {
		years[year] = struct{}{}
	}

	counters := &models.RecordCounters{}
	ordered := make([]int, 0, len(years))
	for year := range years {
		ordered = append(ordered, year)
	}
	sort.Ints(ordered)

	for _, year := range ordered {
		entry := models.YearCounters{
			Year:       year,
			Grades:     gradeCounts[year],
			Activities: activityCounts[year],
			Attendance: attendanceCounts[year],
		}
		counters.Years = append(counters.Years, entry)
		counters.TotalGrades += entry.Grades
		counters.TotalActivities += entry.Activities
		counters.TotalAttendance += entry.Attendance
	}

	return counters, nil
}

func (s *ImportService) buildResolver(ctx context.Context, year int) (*importer.Resolver, error) {
	courses, err := s.catalogs.CoursesForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	subjects, err := s.catalogs.SubjectsForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	students, err := s.catalogs.StudentsForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	return importer.NewResolver(year, courses, subjects, students), nil
}

func (s *ImportService) saveRun(ctx context.Context, state *runState) {
	snapshot := s.snapshot(state)
	if err := s.runs.Save(ctx, snapshot); err != nil {
		s.logger.Warn("mirror run state", zap.String("run_id", snapshot.ID), zap.Error(err))
	}
}

// snapshot copies the run under its lock so handlers never race the worker.
func (s *ImportService) snapshot(state *runState) *models.ImportRun {
	state.mu.Lock()
	defer state.mu.Unlock()
	copied := *state.run
	copied.RowErrors = append([]models.RowError(nil), state.run.RowErrors...)
	if state.run.Summary != nil {
		summary := *state.run.Summary
		copied.Summary = &summary
	}
	return &copied
}

func parseUpload(fileName string, content []byte) (*importer.Table, error) {
	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		return importer.ParseWorkbook(bytes.NewReader(content))
	}
	return importer.ParseDelimited(importer.DecodeBytes(content))
}
