package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SubmitResult is the caller-facing success payload of a submission.
type SubmitResult struct {
	JobID     string `json:"job_id"`
	ArticleID string `json:"article_id"`
}

// SubmissionService accepts generation requests: it suppresses duplicates,
// creates the durable article record, and hands a job to the queue.
type SubmissionService struct {
	repo   *Repo
	queue  Queue
	logger *slog.Logger
	window time.Duration
}

func NewSubmissionService(repo *Repo, queue Queue, logger *slog.Logger, windowHours int) *SubmissionService {
	if windowHours <= 0 {
		windowHours = 24
	}
	return &SubmissionService{
		repo:   repo,
		queue:  queue,
		logger: logger,
		window: time.Duration(windowHours) * time.Hour,
	}
}

// Submit creates one article plus its queued job. Without force, an
// equivalent recent submission fails with *DuplicateError carrying the
// existing article and, when still live, its job status. A queue failure
// after the article was persisted surfaces as *EnqueueError.
func (s *SubmissionService) Submit(ctx context.Context, inputs GenerationInput, userID *uint64, force bool) (*SubmitResult, error) {
	if err := inputs.validate(); err != nil {
		return nil, err
	}

	if !force {
		dup, err := s.repo.FindDuplicate(ctx, inputs, userID, s.window)
		if err != nil {
			return nil, fmt.Errorf("find duplicate: %w", err)
		}
		if dup != nil {
			var existing *JobStatus
			if dup.JobID != "" {
				existing, err = s.queue.GetStatus(ctx, dup.JobID)
				if err != nil {
					s.logger.Warn("fetch duplicate job status failed",
						"job_id", dup.JobID, "error", err)
					existing = nil
				}
			}
			return nil, &DuplicateError{ArticleID: dup.ID, ExistingJob: existing}
		}
	}

	jobID := NewJobID()
	art := New(inputs, userID, jobID)
	if err := s.repo.Create(ctx, art); err != nil {
		return nil, fmt.Errorf("persist article: %w", err)
	}

	// Status slot is written before the push so a worker racing the push
	// never observes a missing status.
	queued := JobQueued
	zero := 0
	msg := "waiting for a worker"
	patch := StatusPatch{ArticleID: &art.ID, Status: &queued, Progress: &zero, Message: &msg}
	if err := s.queue.UpdateStatus(ctx, jobID, patch); err != nil {
		return nil, &EnqueueError{ArticleID: art.ID, JobID: jobID, Err: err}
	}

	job := &JobContext{
		JobID:     jobID,
		ArticleID: art.ID,
		UserID:    userID,
		Inputs:    inputs,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// The article stays running with no backing job. Surfaced, not
		// swallowed; there is no reconciliation sweep.
		return nil, &EnqueueError{ArticleID: art.ID, JobID: jobID, Err: err}
	}

	s.logger.Info("article submitted", "job_id", jobID, "article_id", art.ID, "force", force)
	return &SubmitResult{JobID: jobID, ArticleID: art.ID}, nil
}
