// Package cache keeps a short-lived snapshot of every in-flight job in Redis
// so the status endpoint can answer poll ticks without hitting Postgres on
// every request. The cache is write-through and advisory: a miss falls back
// to the job repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studio/internal/domain"
)

const snapshotTTL = 10 * time.Minute

// ErrMiss is returned when no snapshot is cached for the job.
var ErrMiss = errors.New("jobcache: miss")

// JobCache stores serialized job snapshots keyed by job id.
type JobCache struct {
	client *redis.Client
}

// New parses the redis URL and returns a cache. An empty URL returns a nil
// cache; all methods on a nil cache are no-ops so callers need no branching.
func New(redisURL string) (*JobCache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("jobcache: parse redis url: %w", err)
	}
	return &JobCache{client: redis.NewClient(opts)}, nil
}

type cachedSnapshot struct {
	Status    domain.JobStatus `json:"status"`
	Progress  float64          `json:"progress"`
	ResultRef string           `json:"result_ref,omitempty"`
	Message   string           `json:"message,omitempty"`
	Attempts  int              `json:"attempts"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Put stores the latest snapshot for a job.
func (c *JobCache) Put(ctx context.Context, jobID string, snap domain.Snapshot, attempts int) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(cachedSnapshot{
		Status:    snap.Status,
		Progress:  snap.Progress,
		ResultRef: snap.ResultRef,
		Message:   snap.Message,
		Attempts:  attempts,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("jobcache: encode snapshot: %w", err)
	}
	return c.client.Set(ctx, key(jobID), payload, snapshotTTL).Err()
}

// Get returns the cached snapshot for a job, or ErrMiss.
func (c *JobCache) Get(ctx context.Context, jobID string) (domain.Snapshot, int, error) {
	if c == nil || c.client == nil {
		return domain.Snapshot{}, 0, ErrMiss
	}
	raw, err := c.client.Get(ctx, key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, 0, ErrMiss
		}
		return domain.Snapshot{}, 0, fmt.Errorf("jobcache: get: %w", err)
	}
	var cached cachedSnapshot
	if err := json.Unmarshal(raw, &cached); err != nil {
		return domain.Snapshot{}, 0, ErrMiss
	}
	return domain.Snapshot{
		Status:    cached.Status,
		Progress:  cached.Progress,
		ResultRef: cached.ResultRef,
		Message:   cached.Message,
	}, cached.Attempts, nil
}

// Close releases the underlying connection.
func (c *JobCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func key(jobID string) string {
	return "job:snapshot:" + jobID
}
