package domain

import (
	"context"
	"time"
)

// JobRepository persists generation jobs so a worker restart can resume
// in-flight polling instead of abandoning jobs.
//
// ClaimRunnable grants the caller an exclusive lease on the returned job;
// while the lease holds, no other claim returns the same row. The lease must
// cover the caller's whole polling budget. ReleaseLease hands the job back
// early, for a worker shutting down mid-poll.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	GetForUser(ctx context.Context, jobID, userID string) (*GenerationJob, error)
	UpdateSnapshot(ctx context.Context, jobID string, snap Snapshot, attempts int) error
	ClaimRunnable(ctx context.Context, lease time.Duration) (*GenerationJob, error)
	ReleaseLease(ctx context.Context, jobID string) error
}

// AssetRepository records metadata for persisted artifacts.
type AssetRepository interface {
	Insert(ctx context.Context, asset *Asset) error
	ListByJob(ctx context.Context, jobID, userID string) ([]Asset, error)
}

// StatsRepository aggregates generation activity for the dashboard.
type StatsRepository interface {
	RecordRequest(ctx context.Context, kind JobKind, country string) error
	Daily(ctx context.Context) (map[string]int64, error)
}
