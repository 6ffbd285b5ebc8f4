package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smart-student/edu-import-api/internal/models"
	appErrors "github.com/smart-student/edu-import-api/pkg/errors"
)

// RunRepository mirrors import run state to Redis so the dashboard can poll
// progress, and owns the per-year run lock that keeps concurrent imports
// from interleaving catalog mutations.
type RunRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewRunRepository constructs a run repository.
func NewRunRepository(client *redis.Client, retention time.Duration) *RunRepository {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RunRepository{client: client, retention: retention}
}

func runKey(id string) string { return "import:run:" + id }

func yearLockKey(year int) string { return "import:lock:" + strconv.Itoa(year) }

// Save stores the current run snapshot.
func (r *RunRepository) Save(ctx context.Context, run *models.ImportRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	if err := r.client.Set(ctx, runKey(run.ID), payload, r.retention).Err(); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads a run snapshot.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.ImportRun, error) {
	raw, err := r.client.Get(ctx, runKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrRunNotFound
		}
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	var run models.ImportRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", id, err)
	}
	return &run, nil
}

// AcquireYearLock takes the per-year import lock. Returns ErrImportRunning
// when another run already holds it.
func (r *RunRepository) AcquireYearLock(ctx context.Context, year int, runID string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, yearLockKey(year), runID, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire year lock %d: %w", year, err)
	}
	if !ok {
		return appErrors.ErrImportRunning
	}
	return nil
}

// ReleaseYearLock frees the lock if this run still holds it.
func (r *RunRepository) ReleaseYearLock(ctx context.Context, year int, runID string) error {
	holder, err := r.client.Get(ctx, yearLockKey(year)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("read year lock %d: %w", year, err)
	}
	if holder != runID {
		return nil
	}
	if err := r.client.Del(ctx, yearLockKey(year)).Err(); err != nil {
		return fmt.Errorf("release year lock %d: %w", year, err)
	}
	return nil
}
