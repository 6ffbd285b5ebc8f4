package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/smart-student/edu-import-api/internal/models"
)

// ActivityRepository persists the logical activities grade rows group into.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityUpsertQuery = `INSERT INTO activity_records (id, title, type, subject_id, subject_name, course_id, section_id, author, day, date, year, created_at, updated_at)
        VALUES (:id, :title, :type, :subject_id, :subject_name, :course_id, :section_id, :author, :day, :date, :year, :created_at, :updated_at)
        ON CONFLICT (id)
        DO UPDATE SET title = EXCLUDED.title, type = EXCLUDED.type, author = EXCLUDED.author, date = EXCLUDED.date, updated_at = EXCLUDED.updated_at`

// BulkUpsert writes a batch of activity records in one transaction.
func (r *ActivityRepository) BulkUpsert(ctx context.Context, records []models.ActivityRecord) error {
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
		if _, err := tx.NamedExecContext(ctx, activityUpsertQuery, records[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert activity record %s: %w", records[i].ID, err)
		}
	}

	return tx.Commit()
}

// DeleteByYear removes every activity record for one year.
func (r *ActivityRepository) DeleteByYear(ctx context.Context, year int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activity_records WHERE year = $1`, year)
	if err != nil {
		return 0, fmt.Errorf("delete activity records for %d: %w", year, err)
	}
	return result.RowsAffected()
}

// CountsByYear returns per-year activity record counts.
func (r *ActivityRepository) CountsByYear(ctx context.Context) (map[int]int, error) {
	rows := []struct {
		Year  int `db:"year"`
		Count int `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT year, COUNT(*) AS count FROM activity_records GROUP BY year ORDER BY year`); err != nil {
		return nil, fmt.Errorf("count activity records: %w", err)
	}
	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.Year] = row.Count
	}
	return counts, nil
}
