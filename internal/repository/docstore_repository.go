package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smart-student/edu-import-api/internal/models"
)

// DocStoreRepository is the document backend: records are stored as JSON
// documents keyed by their deterministic IDs, with per-year index sets so
// delete-by-year stays cheap. Writes are pipelined, which is what lets this
// backend take much larger batches than the relational one.
type DocStoreRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewDocStoreRepository constructs a document store repository.
func NewDocStoreRepository(client *redis.Client, logger *zap.Logger) *DocStoreRepository {
	return &DocStoreRepository{client: client, logger: logger}
}

func gradeDocKey(id string) string      { return "doc:grade:" + id }
func activityDocKey(id string) string   { return "doc:activity:" + id }
func attendanceDocKey(id string) string { return "doc:attendance:" + id }

func yearIndexKey(kind string, year int) string {
	return "doc:index:" + kind + ":" + strconv.Itoa(year)
}

// InsertGrades writes a batch of grade documents in one pipeline.
func (r *DocStoreRepository) InsertGrades(ctx context.Context, records []models.GradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for i := range records {
		payload, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("marshal grade document %s: %w", records[i].ID, err)
		}
		key := gradeDocKey(records[i].ID)
		pipe.Set(ctx, key, payload, 0)
		pipe.SAdd(ctx, yearIndexKey("grade", records[i].Year), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert grade documents: %w", err)
	}
	return nil
}

// InsertActivities writes a batch of activity documents in one pipeline.
func (r *DocStoreRepository) InsertActivities(ctx context.Context, records []models.ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for i := range records {
		payload, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("marshal activity document %s: %w", records[i].ID, err)
		}
		key := activityDocKey(records[i].ID)
		pipe.Set(ctx, key, payload, 0)
		pipe.SAdd(ctx, yearIndexKey("activity", records[i].Year), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert activity documents: %w", err)
	}
	return nil
}

// InsertAttendance writes a batch of attendance documents in one pipeline.
func (r *DocStoreRepository) InsertAttendance(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for i := range records {
		payload, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("marshal attendance document %s: %w", records[i].ID, err)
		}
		key := attendanceDocKey(records[i].ID)
		pipe.Set(ctx, key, payload, 0)
		pipe.SAdd(ctx, yearIndexKey("attendance", records[i].Year), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert attendance documents: %w", err)
	}
	return nil
}

// DeleteByYear removes all documents of one kind for a year via its index
// set. Returns the number of documents removed.
func (r *DocStoreRepository) DeleteByYear(ctx context.Context, kind string, year int) (int64, error) {
	indexKey := yearIndexKey(kind, year)
	keys, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("read year index %s: %w", indexKey, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete %s documents for %d: %w", kind, year, err)
	}

	r.logger.Info("deleted documents by year",
		zap.String("kind", kind),
		zap.Int("year", year),
		zap.Int("count", len(keys)))
	return int64(len(keys)), nil
}
