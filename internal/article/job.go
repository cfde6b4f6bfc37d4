package article

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether a job state is final.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// NewJobID returns a fresh 26-char job identifier.
func NewJobID() string {
	return ulid.Make().String()
}

// JobContext is one dequeued unit of work, built from the raw queue payload.
type JobContext struct {
	JobID     string          `json:"jobId"`
	ArticleID string          `json:"articleId"`
	UserID    *uint64         `json:"userId,omitempty"`
	Inputs    GenerationInput `json:"inputs"`
	CreatedAt time.Time       `json:"createdAt"`
}

// EncodeJob serializes a job for the queue wire format.
func EncodeJob(job *JobContext) ([]byte, error) {
	return json.Marshal(job)
}

// DecodeJob parses and validates a raw queue payload. Malformed payloads
// fail with a *ValidationError so the worker can drop them without retry.
func DecodeJob(raw []byte) (*JobContext, error) {
	var job JobContext
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, &ValidationError{Reason: "job payload is not valid JSON: " + err.Error()}
	}
	if job.JobID == "" {
		return nil, &ValidationError{Reason: "job payload missing jobId"}
	}
	if job.ArticleID == "" {
		return nil, &ValidationError{Reason: "job payload missing articleId"}
	}
	if err := job.Inputs.validate(); err != nil {
		return nil, &ValidationError{Reason: "job payload inputs invalid: " + err.Error()}
	}
	return &job, nil
}

// JobStatus is the ephemeral, overwritten-in-place progress record for one
// job. It expires on its own schedule and says nothing about the durable
// article state.
type JobStatus struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"articleId"`
	Status    JobState  `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusPatch merge-updates a JobStatus; nil fields leave the stored values
// untouched, so a progress write never clobbers a previously recorded error.
type StatusPatch struct {
	ArticleID *string
	Status    *JobState
	Progress  *int
	Message   *string
	Error     *string
}

// Apply folds a patch into the status. A terminal status never regresses to
// a non-terminal one; such a patch still updates the other fields.
func (s *JobStatus) Apply(p StatusPatch, now time.Time) {
	if p.ArticleID != nil {
		s.ArticleID = *p.ArticleID
	}
	if p.Status != nil && !(s.Status.Terminal() && !p.Status.Terminal()) {
		s.Status = *p.Status
	}
	if p.Progress != nil {
		s.Progress = *p.Progress
	}
	if p.Message != nil {
		s.Message = *p.Message
	}
	if p.Error != nil {
		s.Error = p.Error
	}
	s.UpdatedAt = now
}
