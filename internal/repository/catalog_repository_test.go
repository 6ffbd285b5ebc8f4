package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-student/edu-import-api/internal/models"
)

func TestCatalogRepositoryCoursesForYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery("SELECT id, name, year FROM courses WHERE year").
		WithArgs(2024).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "year"}).
			AddRow("c1", "4to Básico", 2024).
			AddRow("c2", "5to Básico", 2024))
	mock.ExpectQuery("SELECT id, course_id, name FROM sections WHERE course_id IN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "name"}).
			AddRow("sec-a", "c1", "A").
			AddRow("sec-b", "c1", "B"))

	courses, err := repo.CoursesForYear(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Len(t, courses[0].Sections, 2)
	assert.Empty(t, courses[1].Sections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryCoursesForYearEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery("SELECT id, name, year FROM courses WHERE year").
		WithArgs(2024).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "year"}))

	courses, err := repo.CoursesForYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryInsertSubjects(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO subjects").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertSubjects(context.Background(), []models.Subject{
		{ID: "sub9", Name: "Filosofía", Abbreviation: "FIL", Color: "#4F46E5", Year: 2024, CreatedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryInsertSubjectsEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	require.NoError(t, repo.InsertSubjects(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
