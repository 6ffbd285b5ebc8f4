package importer

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/smart-student/edu-import-api/internal/models"
)

// DefaultSliceSize bounds how many rows are normalized between yields.
const DefaultSliceSize = 500

// DefaultAuthor labels activities when no teacher hint field is present.
const DefaultAuthor = "System"

// Input carries everything one run needs. The resolver is the only mutable
// piece; a run owns it exclusively.
type Input struct {
	Kind      models.RunKind
	Year      int
	Table     *Table
	Resolver  *Resolver
	Scale     string
	SliceSize int
	Now       time.Time
	Location  *time.Location
}

// Output is the full result of a run before replication.
type Output struct {
	Grades          []models.GradeRecord
	Activities      []models.ActivityRecord
	Attendance      []models.AttendanceRecord
	PendingSubjects []models.Subject
	RowErrors       []models.RowError
	Processed       int
	Cancelled       bool
}

// ProgressFunc receives a snapshot after every slice.
type ProgressFunc func(models.RunProgress)

// RunPipeline normalizes, resolves and groups every row of a parsed table.
// It is a plain function over plain data: the synchronous handler path and
// the background queue path both call it, so the two cannot diverge.
//
// Row failures never abort the run; they are recorded and skipped.
// Cancellation is observed only at slice boundaries and the processed prefix
// is kept.
func RunPipeline(ctx context.Context, in Input, progress ProgressFunc) Output {
	out := Output{}
	if in.SliceSize <= 0 {
		in.SliceSize = DefaultSliceSize
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if in.Location == nil {
		in.Location = time.Local
	}

	total := len(in.Table.Rows)
	normalized := make([]NormalizedRecord, 0, total)

	for start := 0; start < total; start += in.SliceSize {
		if ctx.Err() != nil {
			out.Cancelled = true
			break
		}

		end := start + in.SliceSize
		if end > total {
			end = total
		}

		for i := start; i < end; i++ {
			rec, err := in.normalizeRow(i)
			if err != nil {
				out.RowErrors = append(out.RowErrors, models.RowError{Row: i + 2, Reason: err.Error()})
				continue
			}
			normalized = append(normalized, rec)
		}
		out.Processed = end

		if progress != nil {
			progress(models.RunProgress{
				Phase:   models.PhaseProcessing,
				Current: end,
				Total:   total,
				Created: len(normalized),
				Errors:  len(out.RowErrors),
			})
		}

		// Give other goroutines a turn between slices.
		runtime.Gosched()
	}

	switch in.Kind {
	case models.RunKindAttendance:
		out.Attendance = buildAttendance(normalized, in)
	default:
		out.Grades, out.Activities = buildGrades(normalized, in)
	}
	out.PendingSubjects = in.Resolver.PendingSubjects()

	return out
}

// normalizeRow turns one raw row into a NormalizedRecord or a rejection
// reason. It is pure apart from subject auto-creation on the resolver.
func (in Input) normalizeRow(index int) (NormalizedRecord, error) {
	headers := in.Table.Headers
	row := in.Table.RowMap(index)

	studentName := RepairMojibake(ExtractField(headers, row, studentNameAliases))
	studentID := ExtractField(headers, row, studentIDAliases)
	if studentName == "" && studentID == "" {
		return NormalizedRecord{}, fmt.Errorf("student is missing")
	}

	student, err := in.Resolver.ResolveStudent(studentID, studentName)
	if err != nil {
		return NormalizedRecord{}, err
	}

	courseName := RepairMojibake(ExtractField(headers, row, courseAliases))
	if courseName == "" {
		return NormalizedRecord{}, fmt.Errorf("course is missing")
	}
	course, err := in.Resolver.ResolveCourse(courseName)
	if err != nil {
		return NormalizedRecord{}, err
	}
	sectionID := in.Resolver.ResolveSection(course, ExtractField(headers, row, sectionAliases))

	timestamp := NormalizeDate(ExtractField(headers, row, dateAliases), in.Now, in.Location)

	rec := NormalizedRecord{
		RowNumber:   index + 2,
		StudentID:   student.ID,
		StudentName: student.Name,
		CourseID:    course.ID,
		SectionID:   sectionID,
		Timestamp:   timestamp,
		DayKey:      DayKey(timestamp),
	}

	if in.Kind == models.RunKindAttendance {
		status, ok := ParseAttendanceStatus(ExtractField(headers, row, statusAliases))
		if !ok {
			return NormalizedRecord{}, fmt.Errorf("unknown attendance status %q", ExtractField(headers, row, statusAliases))
		}
		rec.Status = status
		return rec, nil
	}

	subjectName := RepairMojibake(ExtractField(headers, row, subjectAliases))
	if subjectName == "" {
		return NormalizedRecord{}, fmt.Errorf("subject is missing")
	}
	subject := in.Resolver.ResolveSubject(subjectName, in.Now)
	rec.SubjectID = subject.ID
	rec.SubjectName = subject.Name

	score, err := NormalizeScore(ExtractField(headers, row, scoreAliases), in.Scale)
	if err != nil {
		return NormalizedRecord{}, err
	}
	rec.Score = score

	rec.Type = ClassifyType(ExtractField(headers, row, typeAliases))

	if topic := ExtractField(headers, row, topicAliases); topic != "" {
		rec.TitleHint = RepairMojibake(topic)
	} else if title := ExtractField(headers, row, titleAliases); title != "" {
		rec.TitleHint = RepairMojibake(title)
	}
	rec.AuthorHint = RepairMojibake(ExtractField(headers, row, teacherAliases))

	return rec, nil
}

func buildGrades(records []NormalizedRecord, in Input) ([]models.GradeRecord, []models.ActivityRecord) {
	groups := BuildGroups(records)

	grades := make([]models.GradeRecord, 0, len(records))
	activities := make([]models.ActivityRecord, 0, len(groups))

	for _, group := range groups {
		rep := group.Representative()

		title := rep.TitleHint
		if title == "" {
			title = fmt.Sprintf("%s %s", rep.SubjectName, rep.DayKey)
		}
		author := rep.AuthorHint
		if author == "" {
			author = DefaultAuthor
		}

		activities = append(activities, models.ActivityRecord{
			ID:          group.TestID,
			Title:       title,
			Type:        rep.Type,
			SubjectID:   rep.SubjectID,
			SubjectName: rep.SubjectName,
			CourseID:    rep.CourseID,
			SectionID:   rep.SectionID,
			Author:      author,
			Day:         rep.DayKey,
			Date:        rep.Timestamp,
			Year:        in.Year,
			CreatedAt:   in.Now,
			UpdatedAt:   in.Now,
		})

		for _, rec := range group.Records {
			grades = append(grades, models.GradeRecord{
				ID:          group.TestID + "-" + rec.StudentID,
				TestID:      group.TestID,
				StudentID:   rec.StudentID,
				StudentName: rec.StudentName,
				Score:       rec.Score,
				CourseID:    rec.CourseID,
				SectionID:   rec.SectionID,
				SubjectID:   rec.SubjectID,
				Title:       title,
				Type:        rec.Type,
				GradedAt:    rec.Timestamp,
				Year:        in.Year,
				CreatedAt:   in.Now,
				UpdatedAt:   in.Now,
			})
		}
	}

	return grades, activities
}

func buildAttendance(records []NormalizedRecord, in Input) []models.AttendanceRecord {
	seen := make(map[string]int, len(records))
	result := make([]models.AttendanceRecord, 0, len(records))

	for _, rec := range records {
		scope := rec.CourseID
		if rec.SectionID != nil {
			scope = *rec.SectionID
		}
		id := fmt.Sprintf("att-%s-%s-%s", rec.StudentID, scope, rec.DayKey)

		entry := models.AttendanceRecord{
			ID:          id,
			StudentID:   rec.StudentID,
			StudentName: rec.StudentName,
			CourseID:    rec.CourseID,
			SectionID:   rec.SectionID,
			Status:      rec.Status,
			Day:         rec.DayKey,
			RecordedAt:  rec.Timestamp,
			Year:        in.Year,
			CreatedAt:   in.Now,
			UpdatedAt:   in.Now,
		}

		// Last row wins for a repeated student+scope+day, same as an upsert
		// replay would.
		if pos, dup := seen[id]; dup {
			result[pos] = entry
			continue
		}
		seen[id] = len(result)
		result = append(result, entry)
	}

	return result
}
