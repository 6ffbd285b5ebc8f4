package models

import "time"

// ActivityType classifies an assessment.
type ActivityType string

const (
	ActivityTarea      ActivityType = "tarea"
	ActivityPrueba     ActivityType = "prueba"
	ActivityEvaluacion ActivityType = "evaluacion"
)

// AttendanceStatus is the canonical attendance vocabulary.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// GradeRecord is one student's score for one activity occurrence. ID is
// testID+"-"+studentID so re-imports of the same file upsert in place.
type GradeRecord struct {
	ID          string       `db:"id" json:"id"`
	TestID      string       `db:"test_id" json:"test_id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	StudentName string       `db:"student_name" json:"student_name"`
	Score       float64      `db:"score" json:"score"`
	CourseID    string       `db:"course_id" json:"course_id"`
	SectionID   *string      `db:"section_id" json:"section_id,omitempty"`
	SubjectID   string       `db:"subject_id" json:"subject_id"`
	Title       string       `db:"title" json:"title"`
	Type        ActivityType `db:"type" json:"type"`
	GradedAt    time.Time    `db:"graded_at" json:"graded_at"`
	Year        int          `db:"year" json:"year"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// ActivityRecord is the logical assessment a group of grade rows share.
// ID equals the group's testID.
type ActivityRecord struct {
	ID          string       `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Type        ActivityType `db:"type" json:"type"`
	SubjectID   string       `db:"subject_id" json:"subject_id"`
	SubjectName string       `db:"subject_name" json:"subject_name"`
	CourseID    string       `db:"course_id" json:"course_id"`
	SectionID   *string      `db:"section_id" json:"section_id,omitempty"`
	Author      string       `db:"author" json:"author"`
	Day         string       `db:"day" json:"day"`
	Date        time.Time    `db:"date" json:"date"`
	Year        int          `db:"year" json:"year"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord is one student's status for one calendar day. ID is
// att-<studentID>-<sectionID>-<day>, idempotent like grade IDs.
type AttendanceRecord struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName string           `db:"student_name" json:"student_name"`
	CourseID    string           `db:"course_id" json:"course_id"`
	SectionID   *string          `db:"section_id" json:"section_id,omitempty"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Day         string           `db:"day" json:"day"`
	RecordedAt  time.Time        `db:"recorded_at" json:"recorded_at"`
	Year        int              `db:"year" json:"year"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// YearCounters reports persisted record counts for one year.
type YearCounters struct {
	Year       int `db:"year" json:"year"`
	Grades     int `db:"grades" json:"grades"`
	Activities int `db:"activities" json:"activities"`
	Attendance int `db:"attendance" json:"attendance"`
}

// RecordCounters aggregates counters across years for the dashboard.
type RecordCounters struct {
	Years           []YearCounters `json:"years"`
	TotalGrades     int            `json:"total_grades"`
	TotalActivities int            `json:"total_activities"`
	TotalAttendance int            `json:"total_attendance"`
}
