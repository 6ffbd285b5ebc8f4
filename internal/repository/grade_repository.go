package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/smart-student/edu-import-api/internal/models"
)

// GradeRepository persists imported grade records in the relational backend.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeUpsertQuery = `INSERT INTO grade_records (id, test_id, student_id, student_name, score, course_id, section_id, subject_id, title, type, graded_at, year, created_at, updated_at)
        VALUES (:id, :test_id, :student_id, :student_name, :score, :course_id, :section_id, :subject_id, :title, :type, :graded_at, :year, :created_at, :updated_at)
        ON CONFLICT (id)
        DO UPDATE SET score = EXCLUDED.score, student_name = EXCLUDED.student_name, title = EXCLUDED.title, type = EXCLUDED.type, graded_at = EXCLUDED.graded_at, updated_at = EXCLUDED.updated_at`

// BulkUpsert writes a batch of grade records in one transaction. Record IDs
// are deterministic, so replaying a file updates rows in place.
func (r *GradeRepository) BulkUpsert(ctx context.Context, records []models.GradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range records {
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, gradeUpsertQuery, records[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert grade record %s: %w", records[i].ID, err)
		}
	}

	return tx.Commit()
}

// DeleteByYear removes every grade record for one year and reports how many
// rows went away.
func (r *GradeRepository) DeleteByYear(ctx context.Context, year int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM grade_records WHERE year = $1`, year)
	if err != nil {
		return 0, fmt.Errorf("delete grade records for %d: %w", year, err)
	}
	return result.RowsAffected()
}

// CountsByYear returns per-year grade record counts for the dashboard.
func (r *GradeRepository) CountsByYear(ctx context.Context) (map[int]int, error) {
	rows := []struct {
		Year  int `db:"year"`
		Count int `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT year, COUNT(*) AS count FROM grade_records GROUP BY year ORDER BY year`); err != nil {
		return nil, fmt.Errorf("count grade records: %w", err)
	}
	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.Year] = row.Count
	}
	return counts, nil
}
