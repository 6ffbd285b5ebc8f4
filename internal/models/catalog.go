package models

import "time"

// Course is a year-scoped grade level ("4to Básico") owned by the external
// catalog; the import engine only reads it.
type Course struct {
	ID       string    `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Year     int       `db:"year" json:"year"`
	Sections []Section `json:"sections,omitempty"`
}

// Section is a lettered group within a course ("A", "B").
type Section struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Name     string `db:"name" json:"name"`
}

// Subject is the one catalog entity the engine may create: first use of an
// unknown subject name in an import synthesizes a new entry.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Abbreviation string    `db:"abbreviation" json:"abbreviation"`
	Color        string    `db:"color" json:"color"`
	Year         int       `db:"year" json:"year"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Student as listed in the year's enrollment catalog. NationalID carries the
// RUT or similar document number when known.
type Student struct {
	ID         string  `db:"id" json:"id"`
	Name       string  `db:"name" json:"name"`
	NationalID *string `db:"national_id" json:"national_id,omitempty"`
	CourseID   *string `db:"course_id" json:"course_id,omitempty"`
	SectionID  *string `db:"section_id" json:"section_id,omitempty"`
	Year       int     `db:"year" json:"year"`
}
