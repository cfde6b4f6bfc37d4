package article

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/readerlab/reader-platform/internal/engine"
)

// UsageStore persists usage records. *Repo satisfies it.
type UsageStore interface {
	InsertUsage(ctx context.Context, rec *UsageRecord) error
}

// Tracker multiplexes the two observers of one job's run: a progress
// reporter bound to the queue status slot, and a usage recorder bound to
// the owner's durable usage records. Both are observability: their failures
// are logged and never fail the run.
type Tracker struct {
	jobID     string
	articleID string
	userID    *uint64

	queue  StatusStore
	usage  UsageStore
	logger *slog.Logger

	stepFailed bool
}

// StepFailed reports whether the engine flagged an internal step failure
// during the run, distinct from a hard error.
func (t *Tracker) StepFailed() bool { return t.stepFailed }

// Step implements engine.ProgressSink.
func (t *Tracker) Step(ctx context.Context, progress int, message string) {
	running := JobRunning
	patch := StatusPatch{Status: &running, Progress: &progress, Message: &message}
	if err := t.queue.UpdateStatus(ctx, t.jobID, patch); err != nil {
		t.logger.Warn("progress update failed", "job_id", t.jobID, "error", err)
	}
}

// Failed implements engine.ProgressSink.
func (t *Tracker) Failed(ctx context.Context, message string) {
	t.stepFailed = true
	patch := StatusPatch{Error: &message}
	if err := t.queue.UpdateStatus(ctx, t.jobID, patch); err != nil {
		t.logger.Warn("step failure update failed", "job_id", t.jobID, "error", err)
	}
}

func (t *Tracker) recordUsage(ctx context.Context, u engine.StepUsage) {
	if t.userID == nil {
		return
	}
	rec := &UsageRecord{
		UserID:          *t.userID,
		Operation:       u.Operation,
		Model:           u.Model,
		PromptUnits:     u.PromptUnits,
		CompletionUnits: u.CompletionUnits,
		TotalUnits:      u.TotalUnits,
		EstimatedCost:   u.EstimatedCost,
		ArticleID:       &t.articleID,
	}
	if meta, err := json.Marshal(map[string]string{"step": u.Step, "job_id": t.jobID}); err == nil {
		s := string(meta)
		rec.Metadata = &s
	}
	if err := t.usage.InsertUsage(ctx, rec); err != nil {
		t.logger.Warn("usage record failed",
			"job_id", t.jobID, "article_id", t.articleID, "step", u.Step, "error", err)
	}
}

// WithTracking runs fn with the job's observers in place. The usage recorder
// is installed as the engine's process-wide hook only when the job has an
// owner; anonymous runs install nil so nothing is recorded. Whatever hook
// was installed before is restored on every exit path, including panics, so
// one job's recorder can never capture another job's calls.
func WithTracking(
	ctx context.Context,
	queue StatusStore,
	usage UsageStore,
	logger *slog.Logger,
	jobID string,
	userID *uint64,
	articleID string,
	fn func(t *Tracker) error,
) (stepFailed bool, err error) {
	t := &Tracker{
		jobID:     jobID,
		articleID: articleID,
		userID:    userID,
		queue:     queue,
		usage:     usage,
		logger:    logger,
	}

	var hook engine.UsageHook
	if userID != nil && usage != nil {
		hook = t.recordUsage
	}
	prev := engine.SetUsageHook(hook)
	defer engine.SetUsageHook(prev)

	err = fn(t)
	return t.stepFailed, err
}
