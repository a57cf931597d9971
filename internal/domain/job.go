package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation media kinds.
type JobKind string

const (
	JobKindImage JobKind = "image"
	JobKindVideo JobKind = "video"
	JobKindAudio JobKind = "audio"
)

// JobStatus enumerates the normalized lifecycle states. Provider-specific
// vocabularies ("submitted", "succeed", "Request Moderated", ...) are mapped
// onto this set by each provider adapter.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusReady      JobStatus = "ready"
	JobStatusFailed     JobStatus = "failed"
	JobStatusModerated  JobStatus = "moderated"
	JobStatusNotFound   JobStatus = "not_found"
	JobStatusTimedOut   JobStatus = "timed_out"
)

// Terminal reports whether no further polling may occur for this status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusReady, JobStatusFailed, JobStatusModerated, JobStatusNotFound, JobStatusTimedOut:
		return true
	}
	return false
}

// GenerationJob is one request to an external generation provider. The row is
// created when the provider accepts the submission and is mutated only by the
// lifecycle poller until a terminal status is reached.
type GenerationJob struct {
	ID              string
	UserID          string
	Kind            JobKind
	Provider        string
	ProviderJobID   string
	Status          JobStatus
	Progress        float64
	Attempts        int
	SubmittedParams json.RawMessage
	ResultRef       string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Snapshot is the per-tick view of a job as reported by a provider adapter.
type Snapshot struct {
	Status    JobStatus
	Progress  float64
	ResultRef string
	Message   string
}

// Asset is a persisted artifact produced by a ready job.
type Asset struct {
	ID         string
	JobID      string
	UserID     string
	StorageKey string
	SourceURL  string
	MIME       string
	Bytes      int64
	Width      int
	Height     int
	CreatedAt  time.Time
}
