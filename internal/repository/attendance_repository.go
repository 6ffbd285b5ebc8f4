package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/smart-student/edu-import-api/internal/models"
)

// AttendanceRepository persists imported attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceUpsertQuery = `INSERT INTO attendance_records (id, student_id, student_name, course_id, section_id, status, day, recorded_at, year, created_at, updated_at)
        VALUES (:id, :student_id, :student_name, :course_id, :section_id, :status, :day, :recorded_at, :year, :created_at, :updated_at)
        ON CONFLICT (id)
        DO UPDATE SET status = EXCLUDED.status, recorded_at = EXCLUDED.recorded_at, updated_at = EXCLUDED.updated_at`

// BulkUpsert writes a batch of attendance records in one transaction.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
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
		if _, err := tx.NamedExecContext(ctx, attendanceUpsertQuery, records[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert attendance record %s: %w", records[i].ID, err)
		}
	}

	return tx.Commit()
}

// DeleteByYear removes every attendance record for one year.
func (r *AttendanceRepository) DeleteByYear(ctx context.Context, year int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE year = $1`, year)
	if err != nil {
		return 0, fmt.Errorf("delete attendance records for %d: %w", year, err)
	}
	return result.RowsAffected()
}

// CountsByYear returns per-year attendance record counts.
func (r *AttendanceRepository) CountsByYear(ctx context.Context) (map[int]int, error) {
	rows := []struct {
		Year  int `db:"year"`
		Count int `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT year, COUNT(*) AS count FROM attendance_records GROUP BY year ORDER BY year`); err != nil {
		return nil, fmt.Errorf("count attendance records: %w", err)
	}
	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.Year] = row.Count
	}
	return counts, nil
}
