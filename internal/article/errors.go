package article

import (
	"context"
	"errors"
	"fmt"
)

// DuplicateError reports that an equivalent non-deleted article already
// exists inside the duplicate window. ExistingJob carries the live queue
// status when one is still available, so the caller can decide whether to
// resubmit with force.
type DuplicateError struct {
	ArticleID   string
	ExistingJob *JobStatus
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate submission: article %s already exists", e.ArticleID)
}

// EnqueueError reports that the article was persisted but its job never
// reached the queue. The article stays running with no backing job; callers
// must surface this rather than retry blindly.
type EnqueueError struct {
	ArticleID string
	JobID     string
	Err       error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue job %s for article %s: %v", e.JobID, e.ArticleID, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

// ValidationError marks a malformed queue payload. Such jobs are dropped
// and logged, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ErrGenerationStepFailed marks a run where the engine reported an internal
// step failure without returning a hard error.
var ErrGenerationStepFailed = errors.New("generation step failed")

// ClassifyEngineError maps a generation failure to a short human-readable
// message for the job status channel. Raw error chains stay in the logs.
func ClassifyEngineError(err error) string {
	switch {
	case err == nil:
		return "generation failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	case errors.Is(err, context.Canceled):
		return "generation canceled"
	case errors.Is(err, ErrGenerationStepFailed):
		return "generation step failed"
	default:
		return "generation failed"
	}
}
