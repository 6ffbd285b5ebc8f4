package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smart-student/edu-import-api/internal/models"
)

// RecordBackend is one remote store records replicate to. Both the
// relational and the document backend satisfy it, which is what lets a
// migration run with two stores active at once.
type RecordBackend interface {
	Name() string
	InsertGrades(ctx context.Context, batch []models.GradeRecord) error
	InsertActivities(ctx context.Context, batch []models.ActivityRecord) error
	InsertAttendance(ctx context.Context, batch []models.AttendanceRecord) error
}

// BackendTarget pairs a backend with its batch size: relational stores take
// smaller parameterized batches, document stores take much larger ones.
type BackendTarget struct {
	Backend   RecordBackend
	BatchSize int
}

// BatchProgressFunc fires once per replication batch, never per record.
type BatchProgressFunc func(backend string, done, total int)

// ReplicationService pushes normalized records to every configured backend,
// best effort: a failed batch is logged, counted and skipped, and one
// backend's failure never blocks another.
type ReplicationService struct {
	targets []BackendTarget
	metrics *MetricsService
	logger  *zap.Logger
}

// NewReplicationService constructs the coordinator.
func NewReplicationService(targets []BackendTarget, metrics *MetricsService, logger *zap.Logger) *ReplicationService {
	return &ReplicationService{targets: targets, metrics: metrics, logger: logger}
}

// Active reports whether any backend is configured.
func (s *ReplicationService) Active() bool {
	return len(s.targets) > 0
}

// Replicate writes grades, activities and attendance to every backend and
// aggregates a per-backend outcome report plus row-count error strings.
func (s *ReplicationService) Replicate(ctx context.Context, grades []models.GradeRecord, activities []models.ActivityRecord, attendance []models.AttendanceRecord, progress BatchProgressFunc) ([]models.BackendOutcome, []string) {
	outcomes := make([]models.BackendOutcome, 0, len(s.targets))
	var errs []string

	total := len(grades) + len(activities) + len(attendance)

	for _, target := range s.targets {
		name := target.Backend.Name()
		outcome := models.BackendOutcome{Backend: name}
		done := 0

		report := func(count int, err error, what string) {
			if err != nil {
				outcome.Failed += count
				s.metrics.ObserveBatch(name, false)
				s.logger.Warn("replication batch failed",
					zap.String("backend", name),
					zap.String("records", what),
					zap.Int("batch_size", count),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s: %s batch of %d failed: %v", name, what, count, err))
			} else {
				outcome.Success += count
				s.metrics.ObserveBatch(name, true)
			}
			done += count
			if progress != nil {
				progress(name, done, total)
			}
		}

		for _, batch := range chunkActivities(activities, target.BatchSize) {
			report(len(batch), target.Backend.InsertActivities(ctx, batch), "activities")
		}
		for _, batch := range chunkGrades(grades, target.BatchSize) {
			report(len(batch), target.Backend.InsertGrades(ctx, batch), "grades")
		}
		for _, batch := range chunkAttendance(attendance, target.BatchSize) {
			report(len(batch), target.Backend.InsertAttendance(ctx, batch), "attendance")
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, errs
}

func chunkGrades(records []models.GradeRecord, size int) [][]models.GradeRecord {
	if size <= 0 {
		size = 500
	}
	var chunks [][]models.GradeRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

func chunkActivities(records []models.ActivityRecord, size int) [][]models.ActivityRecord {
	if size <= 0 {
		size = 500
	}
	var chunks [][]models.ActivityRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

func chunkAttendance(records []models.AttendanceRecord, size int) [][]models.AttendanceRecord {
	if size <= 0 {
		size = 500
	}
	var chunks [][]models.AttendanceRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
