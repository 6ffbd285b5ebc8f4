package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smart-student/edu-import-api/internal/models"
	"github.com/smart-student/edu-import-api/pkg/config"
	appErrors "github.com/smart-student/edu-import-api/pkg/errors"
)

type mockCatalogStore struct {
	mu       sync.Mutex
	courses  []models.Course
	subjects []models.Subject
	students []models.Student
	inserted []models.Subject
	loadErr  error
}

func (m *mockCatalogStore) CoursesForYear(context.Context, int) ([]models.Course, error) {
	return m.courses, m.loadErr
}

func (m *mockCatalogStore) SubjectsForYear(context.Context, int) ([]models.Subject, error) {
	return m.subjects, m.loadErr
}

func (m *mockCatalogStore) StudentsForYear(context.Context, int) ([]models.Student, error) {
	return m.students, m.loadErr
}

func (m *mockCatalogStore) InsertSubjects(_ context.Context, subjects []models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, subjects...)
	return nil
}

func (m *mockCatalogStore) insertedSubjects() []models.Subject {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Subject(nil), m.inserted...)
}

type mockRunStore struct {
	mu    sync.Mutex
	runs  map[string]*models.ImportRun
	locks map[int]string
	saves int
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{
		runs:  make(map[string]*models.ImportRun),
		locks: make(map[int]string),
	}
}

func (m *mockRunStore) Save(_ context.Context, run *models.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.ID] = &copied
	m.saves++
	return nil
}

func (m *mockRunStore) Get(_ context.Context, id string) (*models.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, appErrors.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (m *mockRunStore) AcquireYearLock(_ context.Context, year int, runID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, held := m.locks[year]; held && holder != runID {
		return appErrors.ErrImportRunning
	}
	m.locks[year] = runID
	return nil
}

func (m *mockRunStore) ReleaseYearLock(_ context.Context, year int, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[year] == runID {
		delete(m.locks, year)
	}
	return nil
}

func (m *mockRunStore) lockHeld(year int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[year]
	return held
}

type mockYearStore struct {
	deleted     int64
	deleteErr   error
	counts      map[int]int
	deletedYear int
}

func (m *mockYearStore) DeleteByYear(_ context.Context, year int) (int64, error) {
	m.deletedYear = year
	return m.deleted, m.deleteErr
}

func (m *mockYearStore) CountsByYear(context.Context) (map[int]int, error) {
	return m.counts, nil
}

type mockDocAdmin struct {
	mu    sync.Mutex
	kinds []string
}

func (m *mockDocAdmin) DeleteByYear(_ context.Context, kind string, _ int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
	return 0, nil
}

func testCatalog() *mockCatalogStore {
	nationalID := "12.345.678-9"
	return &mockCatalogStore{
		courses: []models.Course{{
			ID:   "c1",
			Name: "4to Básico",
			Year: 2024,
			Sections: []models.Section{
				{ID: "sec-a", CourseID: "c1", Name: "A"},
				{ID: "sec-b", CourseID: "c1", Name: "B"},
			},
		}},
		subjects: []models.Subject{{ID: "sub1", Name: "Matemáticas", Year: 2024}},
		students: []models.Student{
			{ID: "stu1", Name: "Ana Pérez", NationalID: &nationalID, Year: 2024},
			{ID: "stu2", Name: "Benjamín Soto", Year: 2024},
		},
	}
}

type importFixture struct {
	svc     *ImportService
	runs    *mockRunStore
	catalog *mockCatalogStore
	backend *mockBackend
	grades  *mockYearStore
	acts    *mockYearStore
	att     *mockYearStore
	docs    *mockDocAdmin
}

func newImportFixture(async bool) *importFixture {
	f := &importFixture{
		runs:    newMockRunStore(),
		catalog: testCatalog(),
		backend: &mockBackend{name: "sql"},
		grades:  &mockYearStore{},
		acts:    &mockYearStore{},
		att:     &mockYearStore{},
		docs:    &mockDocAdmin{},
	}

	replication := NewReplicationService(
		[]BackendTarget{{Backend: f.backend, BatchSize: 100}}, nil, zap.NewNop())

	f.svc = NewImportService(
		f.catalog, f.runs, f.grades, f.acts, f.att, f.docs, replication,
		config.ImportConfig{
			SliceSize:         2,
			ScoreScale:        "percent",
			AsyncRuns:         async,
			WorkerConcurrency: 1,
			WorkerRetries:     1,
			RunLockTTL:        time.Minute,
			MaxFileSizeBytes:  1 << 20,
		},
		validator.New(), nil, zap.NewNop())

	return f
}

const gradesCSV = `rut;nombre;curso;seccion;asignatura;fecha;tipo;nota;actividad
12.345.678-9;Ana Pérez;4to Básico;A;Matemáticas;05-03-2024;prueba;85%;Prueba 1
;Benjamín Soto;4to Básico;A;Matemáticas;05-03-2024;prueba;6,5;Prueba 1
;Carla Rojas;4to Básico;A;Matemáticas;05-03-2024;prueba;90;Prueba 1
`

func startGrades(t *testing.T, f *importFixture, csv string) *models.ImportRun {
	t.Helper()
	run, err := f.svc.StartImport(context.Background(), StartImportRequest{
		Kind:     models.RunKindGrades,
		Year:     2024,
		FileName: "notas.csv",
		Content:  []byte(csv),
	})
	require.NoError(t, err)
	return run
}

func TestImportServiceGradesRun(t *testing.T) {
	f := newImportFixture(false)

	run := startGrades(t, f, gradesCSV)

	assert.Equal(t, models.PhaseCompleted, run.Progress.Phase)
	require.NotNil(t, run.Summary)
	// one activity plus two grade records reach the backend
	assert.Equal(t, 3, run.Summary.Created)
	require.Len(t, run.RowErrors, 1)
	assert.Equal(t, 4, run.RowErrors[0].Row)

	require.Len(t, f.backend.activityBatches, 1)
	assert.Equal(t, 2, f.backend.gradeCount())
	assert.False(t, f.runs.lockHeld(2024))

	mirrored, err := f.runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, mirrored.Progress.Phase)
}

func TestImportServiceSynthesizesUnknownSubjects(t *testing.T) {
	f := newImportFixture(false)

	csv := `rut;nombre;curso;asignatura;fecha;nota
12.345.678-9;Ana Pérez;4to Básico;Física;05-03-2024;70
`
	run := startGrades(t, f, csv)

	assert.Equal(t, models.PhaseCompleted, run.Progress.Phase)
	inserted := f.catalog.insertedSubjects()
	require.Len(t, inserted, 1)
	assert.Equal(t, "Física", inserted[0].Name)
	assert.NotEmpty(t, inserted[0].ID)
	assert.Equal(t, 2024, inserted[0].Year)
}

func TestImportServiceAttendanceRun(t *testing.T) {
	f := newImportFixture(false)

	csv := `rut;nombre;curso;seccion;fecha;estado
12.345.678-9;Ana Pérez;4to Básico;A;05-03-2024;presente
;Benjamín Soto;4to Básico;A;05-03-2024;ausente
`
	run, err := f.svc.StartImport(context.Background(), StartImportRequest{
		Kind:     models.RunKindAttendance,
		Year:     2024,
		FileName: "asistencia.csv",
		Content:  []byte(csv),
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCompleted, run.Progress.Phase)
	require.Len(t, f.backend.attendanceBatches, 1)
	batch := f.backend.attendanceBatches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "att-stu1-sec-a-2024-03-05", batch[0].ID)
	assert.Equal(t, models.AttendanceAbsent, batch[1].Status)
	assert.Empty(t, f.backend.gradeBatches)
}

func TestImportServiceRejectsOversizedFile(t *testing.T) {
	f := newImportFixture(false)
	f.svc.cfg.MaxFileSizeBytes = 8

	_, err := f.svc.StartImport(context.Background(), StartImportRequest{
		Kind:     models.RunKindGrades,
		Year:     2024,
		FileName: "notas.csv",
		Content:  []byte(gradesCSV),
	})

	assert.ErrorIs(t, err, appErrors.ErrFileTooLarge)
	assert.False(t, f.runs.lockHeld(2024))
}

func TestImportServiceYearLockConflict(t *testing.T) {
	f := newImportFixture(false)
	require.NoError(t, f.runs.AcquireYearLock(context.Background(), 2024, "other-run", time.Minute))

	_, err := f.svc.StartImport(context.Background(), StartImportRequest{
		Kind:     models.RunKindGrades,
		Year:     2024,
		FileName: "notas.csv",
		Content:  []byte(gradesCSV),
	})

	assert.ErrorIs(t, err, appErrors.ErrImportRunning)
	assert.True(t, f.runs.lockHeld(2024))
}

func TestImportServiceStructuralFailureReleasesLock(t *testing.T) {
	f := newImportFixture(false)

	_, err := f.svc.StartImport(context.Background(), StartImportRequest{
		Kind:     models.RunKindGrades,
		Year:     2024,
		FileName: "vacio.csv",
		Content:  []byte("   \n"),
	})

	require.Error(t, err)
	assert.False(t, f.runs.lockHeld(2024))
}

func TestImportServiceValidation(t *testing.T) {
	f := newImportFixture(false)

	_, err := f.svc.StartImport(context.Background(), StartImportRequest{
		Kind:     "homework",
		Year:     2024,
		FileName: "notas.csv",
		Content:  []byte(gradesCSV),
	})

	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestImportServiceAsyncRun(t *testing.T) {
	f := newImportFixture(true)
	f.svc.Start(context.Background())
	defer f.svc.Stop()

	run := startGrades(t, f, gradesCSV)
	assert.False(t, run.Progress.Phase.Terminal())

	require.Eventually(t, func() bool {
		current, err := f.svc.GetRun(context.Background(), run.ID)
		return err == nil && current.Progress.Phase.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	final, err := f.svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, final.Progress.Phase)
	require.NotNil(t, final.Summary)
	assert.Equal(t, 3, final.Summary.Created)
	assert.False(t, f.runs.lockHeld(2024))
}

func TestImportServiceCancelRun(t *testing.T) {
	f := newImportFixture(false)

	run := startGrades(t, f, gradesCSV)

	_, err := f.svc.CancelRun(context.Background(), run.ID)
	assert.ErrorIs(t, err, appErrors.ErrRunNotCancellable)

	_, err = f.svc.CancelRun(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrRunNotFound)
}

func TestImportServiceErrorReportCSV(t *testing.T) {
	f := newImportFixture(false)

	run := startGrades(t, f, gradesCSV)

	report, err := f.svc.ErrorReportCSV(context.Background(), run.ID)
	require.NoError(t, err)

	text := string(report)
	assert.True(t, strings.HasPrefix(text, "row,reason"))
	assert.Contains(t, text, "4,")
}

func TestImportServiceSummaryPDF(t *testing.T) {
	f := newImportFixture(false)

	run := startGrades(t, f, gradesCSV)

	pdf, err := f.svc.SummaryPDF(context.Background(), run.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
}

func TestImportServiceDeleteGradesByYear(t *testing.T) {
	f := newImportFixture(false)
	f.grades.deleted = 42

	deleted, err := f.svc.DeleteGradesByYear(context.Background(), 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	assert.Equal(t, 2023, f.grades.deletedYear)
	assert.Equal(t, 2023, f.acts.deletedYear)
	assert.ElementsMatch(t, []string{"grade", "activity"}, f.docs.kinds)
}

func TestImportServiceDeleteAttendanceByYear(t *testing.T) {
	f := newImportFixture(false)
	f.att.deleted = 7

	deleted, err := f.svc.DeleteAttendanceByYear(context.Background(), 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	assert.Equal(t, 2023, f.att.deletedYear)
	assert.Equal(t, []string{"attendance"}, f.docs.kinds)
}

func TestImportServiceCounters(t *testing.T) {
	f := newImportFixture(false)
	f.grades.counts = map[int]int{2023: 10, 2024: 20}
	f.acts.counts = map[int]int{2024: 5}
	f.att.counts = map[int]int{2022: 7}

	counters, err := f.svc.Counters(context.Background())
	require.NoError(t, err)

	require.Len(t, counters.Years, 3)
	assert.Equal(t, 2022, counters.Years[0].Year)
	assert.Equal(t, 2024, counters.Years[2].Year)
	assert.Equal(t, 30, counters.TotalGrades)
	assert.Equal(t, 5, counters.TotalActivities)
	assert.Equal(t, 7, counters.TotalAttendance)
}
