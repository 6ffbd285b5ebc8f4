package importer

import (
	"time"

	"github.com/smart-student/edu-import-api/internal/models"
)

// NormalizedRecord is one valid input row after extraction, normalization
// and catalog resolution. It lives only for the duration of a run.
type NormalizedRecord struct {
	RowNumber   int
	StudentID   string
	StudentName string
	CourseID    string
	SectionID   *string
	SubjectID   string
	SubjectName string
	Type        models.ActivityType
	Score       float64
	Status      models.AttendanceStatus
	Timestamp   time.Time
	DayKey      string
	TitleHint   string
	AuthorHint  string
}

// ActivityGroup collects the records of one assessment occurrence: all rows
// sharing a base key, at the same per-student occurrence index.
type ActivityGroup struct {
	BaseKey    string
	Occurrence int
	TestID     string
	Records    []NormalizedRecord
}
