package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/smart-student/edu-import-api/internal/models"
)

// CatalogRepository reads the year-scoped catalogs the resolver matches
// against. Subjects are the one entity the import engine also writes: new
// ones synthesized during a run are flushed here once per run.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// CoursesForYear returns the year's courses with their sections attached.
func (r *CatalogRepository) CoursesForYear(ctx context.Context, year int) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, `SELECT id, name, year FROM courses WHERE year = $1 ORDER BY name`, year); err != nil {
		return nil, fmt.Errorf("list courses for %d: %w", year, err)
	}
	if len(courses) == 0 {
		return courses, nil
	}

	courseIDs := make([]string, len(courses))
	index := make(map[string]int, len(courses))
	for i := range courses {
		courseIDs[i] = courses[i].ID
		index[courses[i].ID] = i
	}

	query, args, err := sqlx.In(`SELECT id, course_id, name FROM sections WHERE course_id IN (?) ORDER BY name`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build sections query: %w", err)
	}
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	for _, section := range sections {
		if i, ok := index[section.CourseID]; ok {
			courses[i].Sections = append(courses[i].Sections, section)
		}
	}

	return courses, nil
}

// SubjectsForYear returns the year's subject catalog.
func (r *CatalogRepository) SubjectsForYear(ctx context.Context, year int) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, `SELECT id, name, abbreviation, color, year, created_at FROM subjects WHERE year = $1 ORDER BY name`, year); err != nil {
		return nil, fmt.Errorf("list subjects for %d: %w", year, err)
	}
	return subjects, nil
}

// StudentsForYear returns the year's enrolled students.
func (r *CatalogRepository) StudentsForYear(ctx context.Context, year int) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, `SELECT id, name, national_id, course_id, section_id, year FROM students WHERE year = $1 ORDER BY name`, year); err != nil {
		return nil, fmt.Errorf("list students for %d: %w", year, err)
	}
	return students, nil
}

// InsertSubjects flushes subjects synthesized during an import run.
func (r *CatalogRepository) InsertSubjects(ctx context.Context, subjects []models.Subject) error {
	if len(subjects) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `INSERT INTO subjects (id, name, abbreviation, color, year, created_at)
        VALUES (:id, :name, :abbreviation, :color, :year, :created_at)
        ON CONFLICT (id) DO NOTHING`
	for i := range subjects {
		if _, err := tx.NamedExecContext(ctx, query, subjects[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert subject %s: %w", subjects[i].Name, err)
		}
	}

	return tx.Commit()
}
