package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-student/edu-import-api/internal/models"
)

func pipelineInput(t *testing.T, kind models.RunKind, text string) Input {
	t.Helper()
	table, err := ParseDelimited(text)
	require.NoError(t, err)
	return Input{
		Kind:     kind,
		Year:     2024,
		Table:    table,
		Resolver: testResolver(),
		Scale:    ScaleOneTo10,
		Now:      time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Location: time.UTC,
	}
}

func TestRunPipelineEndToEnd(t *testing.T) {
	in := pipelineInput(t, models.RunKindGrades,
		"nombre,curso,seccion,asignatura,tipo,fecha,nota\n"+
			"Ana Pérez,4to Básico,A,Matemáticas,prueba,2024-03-05,8.5")

	out := RunPipeline(context.Background(), in, nil)

	require.Empty(t, out.RowErrors)
	require.Len(t, out.Grades, 1)
	require.Len(t, out.Activities, 1)

	grade := out.Grades[0]
	assert.InDelta(t, 85.0, grade.Score, 0.001)
	assert.Equal(t, models.ActivityPrueba, grade.Type)
	assert.Equal(t, "stu1", grade.StudentID)
	assert.Equal(t, "c1", grade.CourseID)
	require.NotNil(t, grade.SectionID)
	assert.Equal(t, "sec-a", *grade.SectionID)
	assert.Equal(t, "sub1", grade.SubjectID)
	assert.Equal(t, 12, grade.GradedAt.Hour())
	assert.Equal(t, "2024-03-05", DayKey(grade.GradedAt))

	activity := out.Activities[0]
	assert.Equal(t, activity.ID, grade.TestID)
	assert.Equal(t, activity.ID+"-"+grade.StudentID, grade.ID)
	assert.Equal(t, "Matemáticas 2024-03-05", activity.Title)
	assert.Equal(t, DefaultAuthor, activity.Author)
}

func TestRunPipelineRowErrorsDoNotAbort(t *testing.T) {
	in := pipelineInput(t, models.RunKindGrades,
		"nombre,curso,asignatura,fecha,nota\n"+
			"Ana Pérez,4to Básico,Matemáticas,2024-03-05,8.5\n"+
			"Desconocido,4to Básico,Matemáticas,2024-03-05,7\n"+
			"Benjamín Soto,4to Básico,Matemáticas,2024-03-05,9999\n"+
			"Benjamín Soto,4to Básico,Matemáticas,2024-03-06,6")

	out := RunPipeline(context.Background(), in, nil)

	assert.Len(t, out.Grades, 2)
	require.Len(t, out.RowErrors, 2)
	assert.Equal(t, 3, out.RowErrors[0].Row)
	assert.Contains(t, out.RowErrors[0].Reason, "not found")
	assert.Equal(t, 4, out.RowErrors[1].Row)
}

func TestRunPipelineIdempotentIDs(t *testing.T) {
	text := "nombre,curso,asignatura,tipo,fecha,nota\n" +
		"Ana Pérez,4to Básico,Matemáticas,prueba,2024-03-05,8.5\n" +
		"Benjamín Soto,4to Básico,Matemáticas,prueba,2024-03-05,7"

	first := RunPipeline(context.Background(), pipelineInput(t, models.RunKindGrades, text), nil)
	second := RunPipeline(context.Background(), pipelineInput(t, models.RunKindGrades, text), nil)

	require.Equal(t, len(first.Grades), len(second.Grades))
	for i := range first.Grades {
		assert.Equal(t, first.Grades[i].ID, second.Grades[i].ID)
		assert.Equal(t, first.Grades[i].TestID, second.Grades[i].TestID)
	}
}

func TestRunPipelineSameDayOccurrences(t *testing.T) {
	in := pipelineInput(t, models.RunKindGrades,
		"nombre,curso,asignatura,tipo,fecha,nota\n"+
			"Ana Pérez,4to Básico,Matemáticas,prueba,2024-03-05 08:00:00,6\n"+
			"Ana Pérez,4to Básico,Matemáticas,prueba,2024-03-05 14:00:00,7")

	out := RunPipeline(context.Background(), in, nil)

	require.Len(t, out.Activities, 2)
	require.Len(t, out.Grades, 2)
	assert.Equal(t, out.Activities[0].ID+"-i2", out.Activities[1].ID)
}

func TestRunPipelineSubjectAutoCreateVisibleWithinRun(t *testing.T) {
	in := pipelineInput(t, models.RunKindGrades,
		"nombre,curso,asignatura,fecha,nota\n"+
			"Ana Pérez,4to Básico,Filosofía,2024-03-05,6\n"+
			"Benjamín Soto,4to Básico,filosofia,2024-03-05,7")

	out := RunPipeline(context.Background(), in, nil)

	require.Len(t, out.PendingSubjects, 1)
	require.Len(t, out.Grades, 2)
	assert.Equal(t, out.Grades[0].SubjectID, out.Grades[1].SubjectID)
}

func TestRunPipelineCancellationPrefix(t *testing.T) {
	var rows strings.Builder
	rows.WriteString("nombre,curso,asignatura,fecha,nota\n")
	for i := 0; i < 10; i++ {
		rows.WriteString(fmt.Sprintf("Ana Pérez,4to Básico,Matemáticas,2024-03-%02d,7\n", i+1))
	}

	in := pipelineInput(t, models.RunKindGrades, rows.String())
	in.SliceSize = 4

	ctx, cancel := context.WithCancel(context.Background())
	out := RunPipeline(ctx, in, func(p models.RunProgress) {
		if p.Current >= 4 {
			cancel()
		}
	})

	assert.True(t, out.Cancelled)
	assert.Equal(t, 4, out.Processed)
	// The processed prefix is still grouped and returned.
	assert.Len(t, out.Grades, 4)
}

func TestRunPipelineProgressSnapshots(t *testing.T) {
	var rows strings.Builder
	rows.WriteString("nombre,curso,asignatura,fecha,nota\n")
	for i := 0; i < 6; i++ {
		rows.WriteString("Ana Pérez,4to Básico,Matemáticas,2024-03-05,7\n")
	}

	in := pipelineInput(t, models.RunKindGrades, rows.String())
	in.SliceSize = 2

	var snapshots []models.RunProgress
	RunPipeline(context.Background(), in, func(p models.RunProgress) {
		snapshots = append(snapshots, p)
	})

	require.Len(t, snapshots, 3)
	assert.Equal(t, 2, snapshots[0].Current)
	assert.Equal(t, 6, snapshots[2].Current)
	assert.Equal(t, 6, snapshots[2].Total)
	assert.Equal(t, models.PhaseProcessing, snapshots[0].Phase)
}

func TestRunPipelineAttendance(t *testing.T) {
	in := pipelineInput(t, models.RunKindAttendance,
		"fecha,nombre,curso,seccion,estado\n"+
			"2024-03-05,Ana Pérez,4to Básico,A,presente\n"+
			"2024-03-05,Benjamín Soto,4to Básico,A,atraso\n"+
			"2024-03-05,Ana Pérez,4to Básico,A,ausente\n"+
			"2024-03-05,Benjamín Soto,4to Básico,A,desconocido")

	out := RunPipeline(context.Background(), in, nil)

	require.Len(t, out.RowErrors, 1)
	assert.Contains(t, out.RowErrors[0].Reason, "attendance status")

	// The repeated Ana row overwrote the first one: same id, last status.
	require.Len(t, out.Attendance, 2)
	ana := out.Attendance[0]
	assert.Equal(t, "att-stu1-sec-a-2024-03-05", ana.ID)
	assert.Equal(t, models.AttendanceAbsent, ana.Status)
	assert.Equal(t, models.AttendanceLate, out.Attendance[1].Status)
}
