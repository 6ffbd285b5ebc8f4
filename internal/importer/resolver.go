package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smart-student/edu-import-api/internal/models"
)

// subjectPalette provides deterministic colors for synthesized subjects,
// matching the dashboard's course palette.
var subjectPalette = []string{
	"#4F46E5", "#0891B2", "#059669", "#D97706",
	"#DC2626", "#7C3AED", "#DB2777", "#65A30D",
}

// Resolver maps loosely-specified row text to canonical catalog entities for
// one year. It is the single mutable structure of a run: subject auto-create
// appends to the in-memory catalog so later rows in the same run observe the
// new entry; pending writes are flushed once per run, not per row.
type Resolver struct {
	year int

	coursesByName  map[string]*models.Course
	subjectsByName map[string]*models.Subject
	studentsByID   map[string]*models.Student
	studentsByName map[string]*models.Student

	pendingSubjects []models.Subject
}

// NewResolver indexes the year's catalogs by normalized name.
func NewResolver(year int, courses []models.Course, subjects []models.Subject, students []models.Student) *Resolver {
	r := &Resolver{
		year:           year,
		coursesByName:  make(map[string]*models.Course, len(courses)),
		subjectsByName: make(map[string]*models.Subject, len(subjects)),
		studentsByID:   make(map[string]*models.Student, len(students)),
		studentsByName: make(map[string]*models.Student, len(students)),
	}

	for i := range courses {
		r.coursesByName[NormalizeName(courses[i].Name)] = &courses[i]
	}
	for i := range subjects {
		key := NormalizeName(subjects[i].Name)
		if _, exists := r.subjectsByName[key]; !exists {
			r.subjectsByName[key] = &subjects[i]
		}
	}
	for i := range students {
		if students[i].NationalID != nil {
			if cleaned := CleanIdentifier(*students[i].NationalID); cleaned != "" {
				r.studentsByID[cleaned] = &students[i]
			}
		}
		key := NormalizeName(students[i].Name)
		if _, exists := r.studentsByName[key]; !exists {
			r.studentsByName[key] = &students[i]
		}
	}

	return r
}

// ResolveCourse matches by exact normalized name; there is no fuzzy
// fallback, an unmatched course rejects the row.
func (r *Resolver) ResolveCourse(name string) (*models.Course, error) {
	if course, ok := r.coursesByName[NormalizeName(name)]; ok {
		return course, nil
	}
	return nil, fmt.Errorf("course %q not found", strings.TrimSpace(name))
}

// ResolveSection matches within a course's sections. A missing section is
// not an error; legacy files omit it.
func (r *Resolver) ResolveSection(course *models.Course, name string) *string {
	if name == "" {
		return nil
	}
	normalized := NormalizeName(name)
	for i := range course.Sections {
		if NormalizeName(course.Sections[i].Name) == normalized {
			id := course.Sections[i].ID
			return &id
		}
	}
	return nil
}

// ResolveSubject matches by normalized name, synthesizing a new subject on
// first use. The first occurrence of a new name in the file defines its
// canonical casing.
func (r *Resolver) ResolveSubject(name string, now time.Time) *models.Subject {
	trimmed := strings.TrimSpace(name)
	normalized := NormalizeName(trimmed)
	if subject, ok := r.subjectsByName[normalized]; ok {
		return subject
	}

	created := &models.Subject{
		ID:           uuid.NewString(),
		Name:         trimmed,
		Abbreviation: abbreviate(trimmed),
		Color:        subjectPalette[Hash32(normalized)%uint32(len(subjectPalette))],
		Year:         r.year,
		CreatedAt:    now,
	}
	r.pendingSubjects = append(r.pendingSubjects, *created)
	r.subjectsByName[normalized] = created
	return created
}

// ResolveStudent tries the cleaned identifier first, then the normalized
// full name. Unmatched students reject the row.
func (r *Resolver) ResolveStudent(identifier, name string) (*models.Student, error) {
	if identifier != "" {
		if student, ok := r.studentsByID[CleanIdentifier(identifier)]; ok {
			return student, nil
		}
	}
	if name != "" {
		if student, ok := r.studentsByName[NormalizeName(name)]; ok {
			return student, nil
		}
	}
	return nil, fmt.Errorf("student %q not found", strings.TrimSpace(name))
}

// PendingSubjects returns subjects synthesized during the run, in first-use
// order, for a single flush to the catalog store.
func (r *Resolver) PendingSubjects() []models.Subject {
	return r.pendingSubjects
}

func abbreviate(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	word := []rune(strings.ToUpper(fields[0]))
	if len(word) > 3 {
		word = word[:3]
	}
	return string(word)
}
