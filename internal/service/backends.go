package service

import (
	"context"

	"github.com/smart-student/edu-import-api/internal/models"
)

// Backend names as reported in run summaries.
const (
	BackendSQL = "sql"
	BackendDoc = "doc"
)

type sqlGradeWriter interface {
	BulkUpsert(ctx context.Context, records []models.GradeRecord) error
}

type sqlActivityWriter interface {
	BulkUpsert(ctx context.Context, records []models.ActivityRecord) error
}

type sqlAttendanceWriter interface {
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
}

// SQLBackend adapts the relational repositories to the RecordBackend
// interface the replication coordinator works with.
type SQLBackend struct {
	grades     sqlGradeWriter
	activities sqlActivityWriter
	attendance sqlAttendanceWriter
}

// NewSQLBackend wires the relational repositories as a replication target.
func NewSQLBackend(grades sqlGradeWriter, activities sqlActivityWriter, attendance sqlAttendanceWriter) *SQLBackend {
	return &SQLBackend{grades: grades, activities: activities, attendance: attendance}
}

func (b *SQLBackend) Name() string { return BackendSQL }

func (b *SQLBackend) InsertGrades(ctx context.Context, batch []models.GradeRecord) error {
	return b.grades.BulkUpsert(ctx, batch)
}

func (b *SQLBackend) InsertActivities(ctx context.Context, batch []models.ActivityRecord) error {
	return b.activities.BulkUpsert(ctx, batch)
}

func (b *SQLBackend) InsertAttendance(ctx context.Context, batch []models.AttendanceRecord) error {
	return b.attendance.BulkUpsert(ctx, batch)
}

type docWriter interface {
	InsertGrades(ctx context.Context, records []models.GradeRecord) error
	InsertActivities(ctx context.Context, records []models.ActivityRecord) error
	InsertAttendance(ctx context.Context, records []models.AttendanceRecord) error
}

// DocBackend adapts the document store repository as a replication target.
type DocBackend struct {
	store docWriter
}

// NewDocBackend wires the document store as a replication target.
func NewDocBackend(store docWriter) *DocBackend {
	return &DocBackend{store: store}
}

func (b *DocBackend) Name() string { return BackendDoc }

func (b *DocBackend) InsertGrades(ctx context.Context, batch []models.GradeRecord) error {
	return b.store.InsertGrades(ctx, batch)
}

func (b *DocBackend) InsertActivities(ctx context.Context, batch []models.ActivityRecord) error {
	return b.store.InsertActivities(ctx, batch)
}

func (b *DocBackend) InsertAttendance(ctx context.Context, batch []models.AttendanceRecord) error {
	return b.store.InsertAttendance(ctx, batch)
}
