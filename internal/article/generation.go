package article

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/readerlab/reader-platform/internal/engine"
	"github.com/readerlab/reader-platform/internal/vocab"
)

// VocabularySource supplies known terms for the hint. *vocab.Repo satisfies it.
type VocabularySource interface {
	KnownTerms(ctx context.Context, userID uint64, language, maxLevel string, limit int) ([]string, error)
}

// GenerationService drives one article through the engine: it gathers the
// vocabulary hint, runs the engine under tracking, applies the result to the
// domain model, and persists it.
type GenerationService struct {
	repo      *Repo
	queue     StatusStore
	engine    engine.Engine
	vocab     VocabularySource
	hintLimit int
	logger    *slog.Logger
}

func NewGenerationService(
	repo *Repo,
	queue StatusStore,
	eng engine.Engine,
	vocabSource VocabularySource,
	hintLimit int,
	logger *slog.Logger,
) *GenerationService {
	if hintLimit <= 0 {
		hintLimit = 50
	}
	return &GenerationService{
		repo:      repo,
		queue:     queue,
		engine:    eng,
		vocab:     vocabSource,
		hintLimit: hintLimit,
		logger:    logger,
	}
}

// Generate returns true only when the article completed and was persisted.
// On false the returned error carries the failure detail for classification;
// no content is ever persisted on a failed run.
func (s *GenerationService) Generate(ctx context.Context, art *Article, job *JobContext) (bool, error) {
	hint := s.vocabularyHint(ctx, art)

	var result *engine.Result
	stepFailed, err := WithTracking(ctx, s.queue, s.repo, s.logger, job.JobID, art.UserID, art.ID,
		func(t *Tracker) error {
			res, err := s.engine.Generate(ctx, engine.Request{
				Language:       art.Inputs.Language,
				Level:          art.Inputs.Level,
				Length:         art.Inputs.Length,
				Topic:          art.Inputs.Topic,
				VocabularyHint: hint,
				JobID:          job.JobID,
				ArticleID:      art.ID,
				Progress:       t,
			})
			result = res
			return err
		})
	if err != nil {
		return false, fmt.Errorf("engine: %w", err)
	}
	if stepFailed || result == nil {
		return false, ErrGenerationStepFailed
	}

	if err := art.Complete(result.Content, result.Source, result.EditHistory); err != nil {
		return false, fmt.Errorf("apply result: %w", err)
	}
	if err := s.repo.Save(ctx, art); err != nil {
		s.logger.Warn("persist completed article failed",
			"job_id", job.JobID, "article_id", art.ID, "error", err)
		return false, fmt.Errorf("persist article: %w", err)
	}

	total := 0
	for _, step := range result.Steps {
		total += step.TotalUnits
	}
	s.logger.Info("generation finished",
		"job_id", job.JobID, "article_id", art.ID, "steps", len(result.Steps), "total_units", total)
	return true, nil
}

// vocabularyHint fetches the user's known terms one CEFR step above the
// requested level at most. Fetch failure is non-fatal; the hint is then empty.
func (s *GenerationService) vocabularyHint(ctx context.Context, art *Article) []string {
	if art.UserID == nil || s.vocab == nil {
		return nil
	}
	maxLevel := vocab.NextLevel(art.Inputs.Level)
	terms, err := s.vocab.KnownTerms(ctx, *art.UserID, art.Inputs.Language, maxLevel, s.hintLimit)
	if err != nil {
		s.logger.Warn("vocabulary hint fetch failed",
			"article_id", art.ID, "language", art.Inputs.Language, "error", err)
		return nil
	}
	return terms
}
