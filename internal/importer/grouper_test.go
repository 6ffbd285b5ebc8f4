package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-student/edu-import-api/internal/models"
)

func day(hour int) time.Time {
	return time.Date(2024, 3, 5, hour, 0, 0, 0, time.UTC)
}

func gradeRow(student string, ts time.Time) NormalizedRecord {
	return NormalizedRecord{
		StudentID:   student,
		StudentName: student,
		CourseID:    "c1",
		SubjectID:   "s1",
		SubjectName: "Matemáticas",
		Type:        models.ActivityPrueba,
		Score:       70,
		Timestamp:   ts,
		DayKey:      DayKey(ts),
	}
}

func TestHashKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, HashKey("prueba|matematicas|c1||2024-03-05"), HashKey("prueba|matematicas|c1||2024-03-05"))
	assert.NotEqual(t, HashKey("a"), HashKey("b"))
}

func TestTestIDSuffix(t *testing.T) {
	base := "prueba|matematicas|c1||2024-03-05"
	assert.Equal(t, HashKey(base), TestID(base, 1))
	assert.Equal(t, HashKey(base)+"-i2", TestID(base, 2))
}

func TestBuildGroupsSingleOccurrence(t *testing.T) {
	groups := BuildGroups([]NormalizedRecord{
		gradeRow("stu1", day(9)),
		gradeRow("stu2", day(9)),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].Occurrence)
	assert.Len(t, groups[0].Records, 2)
}

func TestBuildGroupsOccurrenceNumbering(t *testing.T) {
	second := gradeRow("stu1", day(14))
	first := gradeRow("stu1", day(9))

	// Rows out of order on purpose: numbering follows timestamps, not input
	// order.
	groups := BuildGroups([]NormalizedRecord{second, first})

	require.Len(t, groups, 2)
	assert.Equal(t, TestID(groups[0].BaseKey, 1), groups[0].TestID)
	assert.Equal(t, TestID(groups[0].BaseKey, 2), groups[1].TestID)
	assert.Equal(t, day(9), groups[0].Records[0].Timestamp)
	assert.Equal(t, day(14), groups[1].Records[0].Timestamp)
}

func TestBuildGroupsSplitsOnTitleHint(t *testing.T) {
	a := gradeRow("stu1", day(9))
	a.TitleHint = "Fracciones"
	b := gradeRow("stu1", day(9))
	b.TitleHint = "Geometría"

	groups := BuildGroups([]NormalizedRecord{a, b})
	require.Len(t, groups, 2)
	assert.NotEqual(t, groups[0].TestID, groups[1].TestID)
}

func TestRepresentativeTieBreak(t *testing.T) {
	a := gradeRow("stu-b", day(9))
	a.AuthorHint = "Profesora B"
	b := gradeRow("stu-a", day(9))
	b.AuthorHint = "Profesora A"

	// Same timestamp: the smaller student ID is the representative whichever
	// row came first.
	groups := BuildGroups([]NormalizedRecord{a, b})
	require.Len(t, groups, 1)
	assert.Equal(t, "stu-a", groups[0].Representative().StudentID)

	groups = BuildGroups([]NormalizedRecord{b, a})
	require.Len(t, groups, 1)
	assert.Equal(t, "stu-a", groups[0].Representative().StudentID)
}
