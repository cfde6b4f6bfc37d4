package vocab

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, item *VocabularyItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// KnownTerms returns up to limit of the user's known terms for a language,
// restricted to CEFR levels at or below maxLevel, newest first.
func (r *Repo) KnownTerms(ctx context.Context, userID uint64, language, maxLevel string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	levels := LevelsAtOrBelow(maxLevel)
	if len(levels) == 0 {
		return nil, nil
	}

	var terms []string
	err := r.db.WithContext(ctx).
		Model(&VocabularyItem{}).
		Where("user_id = ? AND language = ? AND level IN ?", userID, language, levels).
		Order("id DESC").
		Limit(limit).
		Pluck("term", &terms).Error
	if err != nil {
		return nil, err
	}
	return terms, nil
}
