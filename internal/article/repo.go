package article

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, a *Article) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// Save writes the whole article back, including content and provenance.
func (r *Repo) Save(ctx context.Context, a *Article) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Article, error) {
	var a Article
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateStatus moves a running article to a terminal state. Writes against
// an article that already left the running state match nothing, which keeps
// the transition one-directional and the call idempotent.
func (r *Repo) UpdateStatus(ctx context.Context, id string, status Status) error {
	return r.db.WithContext(ctx).Model(&Article{}).
		Where("id = ? AND status = ?", id, StatusRunning).
		Update("status", status).Error
}

// SoftDelete marks the article deleted from any non-deleted state.
func (r *Repo) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&Article{}).
		Where("id = ? AND status <> ?", id, StatusDeleted).
		Update("status", StatusDeleted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindDuplicate looks for a non-deleted article with identical inputs from
// the same owner (or anonymous) created within the window. Returns nil when
// there is none.
func (r *Repo) FindDuplicate(ctx context.Context, inputs GenerationInput, userID *uint64, window time.Duration) (*Article, error) {
	q := r.db.WithContext(ctx).
		Where("status <> ?", StatusDeleted).
		Where("language = ? AND level = ? AND length = ? AND topic = ?",
			inputs.Language, inputs.Level, inputs.Length, inputs.Topic).
		Where("created_at >= ?", time.Now().Add(-window))
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	} else {
		q = q.Where("user_id IS NULL")
	}

	var a Article
	err := q.Order("created_at DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) InsertUsage(ctx context.Context, rec *UsageRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repo) ListUsageByArticle(ctx context.Context, articleID string) ([]UsageRecord, error) {
	var recs []UsageRecord
	if err := r.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("id ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
