package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/readerlab/reader-platform/internal/article"
)

// EventPublisher receives terminal job outcomes. Publish failure never
// affects the job.
type EventPublisher interface {
	PublishArticleEvent(ctx context.Context, jobID, articleID, status, errMsg string) error
}

// Worker is the long-running loop: it blocks on the queue, processes one job
// fully before dequeuing the next, and survives any single job's failure.
type Worker struct {
	queue  article.Queue
	repo   *article.Repo
	gen    *article.GenerationService
	events EventPublisher // optional
	logger *slog.Logger

	dequeueTimeout time.Duration
	retryBackoff   time.Duration
}

func New(
	queue article.Queue,
	repo *article.Repo,
	gen *article.GenerationService,
	events EventPublisher,
	logger *slog.Logger,
	dequeueTimeout time.Duration,
) *Worker {
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	return &Worker{
		queue:          queue,
		repo:           repo,
		gen:            gen,
		events:         events,
		logger:         logger,
		dequeueTimeout: dequeueTimeout,
		retryBackoff:   3 * time.Second,
	}
}

// Run loops until ctx is canceled. Queue connection loss is logged and
// retried with backoff; malformed payloads are dropped; nothing a single job
// does terminates the loop.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "dequeue_timeout", w.dequeueTimeout)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			var verr *article.ValidationError
			if errors.As(err, &verr) {
				// Malformed, not transient. Drop it.
				w.logger.Error("dropping malformed job payload", "error", verr)
				continue
			}
			if ctx.Err() != nil {
				w.logger.Info("worker shutting down")
				return
			}
			w.logger.Error("dequeue failed", "error", err, "retry_in", w.retryBackoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryBackoff):
			}
			continue
		}
		if job == nil {
			continue // timeout; re-check shutdown
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *article.JobContext) {
	logger := w.logger.With("job_id", job.JobID, "article_id", job.ArticleID)
	if job.UserID != nil {
		logger = logger.With("user_id", *job.UserID)
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r, "cost", time.Since(start))
			w.markFailed(ctx, job, logger, "generation failed")
		}
	}()

	running := article.JobRunning
	zero := 0
	msg := "generation started"
	if err := w.queue.UpdateStatus(ctx, job.JobID,
		article.StatusPatch{Status: &running, Progress: &zero, Message: &msg}); err != nil {
		logger.Warn("status update failed", "error", err)
	}

	art, err := w.repo.GetByID(ctx, job.ArticleID)
	if err != nil {
		logger.Error("load article failed", "error", err)
		w.markFailed(ctx, job, logger, "article not found")
		return
	}

	ok, err := w.gen.Generate(ctx, art, job)
	if !ok {
		logger.Error("job failed", "error", err, "cost", time.Since(start))
		w.markFailed(ctx, job, logger, article.ClassifyEngineError(err))
		return
	}

	if err := w.repo.UpdateStatus(ctx, job.ArticleID, article.StatusCompleted); err != nil {
		logger.Warn("article status update failed", "error", err)
	}
	completed := article.JobCompleted
	hundred := 100
	done := "generation complete"
	if err := w.queue.UpdateStatus(ctx, job.JobID,
		article.StatusPatch{Status: &completed, Progress: &hundred, Message: &done}); err != nil {
		logger.Warn("status update failed", "error", err)
	}
	w.publish(ctx, job, logger, article.StatusCompleted, "")

	logger.Info("job completed", "cost", time.Since(start))
}

// markFailed records the terminal failure in both stores. Neither write
// failing changes the outcome; this is best-effort bookkeeping of a job that
// already failed.
func (w *Worker) markFailed(ctx context.Context, job *article.JobContext, logger *slog.Logger, msg string) {
	if err := w.repo.UpdateStatus(ctx, job.ArticleID, article.StatusFailed); err != nil {
		logger.Warn("article status update failed", "error", err)
	}
	failed := article.JobFailed
	if err := w.queue.UpdateStatus(ctx, job.JobID,
		article.StatusPatch{Status: &failed, Error: &msg}); err != nil {
		logger.Warn("status update failed", "error", err)
	}
	w.publish(ctx, job, logger, article.StatusFailed, msg)
}

func (w *Worker) publish(ctx context.Context, job *article.JobContext, logger *slog.Logger, status article.Status, errMsg string) {
	if w.events == nil {
		return
	}
	if err := w.events.PublishArticleEvent(ctx, job.JobID, job.ArticleID, string(status), errMsg); err != nil {
		logger.Warn("event publish failed", "error", err)
	}
}
