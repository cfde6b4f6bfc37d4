package article

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDeleted   Status = "deleted"
)

// GenerationInput is the immutable request an article was generated from.
type GenerationInput struct {
	Language string `gorm:"type:varchar(32);not null" json:"language"`
	Level    string `gorm:"type:varchar(8);not null" json:"level"`
	Length   string `gorm:"type:varchar(16);not null" json:"length"`
	Topic    string `gorm:"type:varchar(128);not null" json:"topic"`
}

func (in GenerationInput) validate() error {
	if strings.TrimSpace(in.Language) == "" {
		return errors.New("language is required")
	}
	if strings.TrimSpace(in.Level) == "" {
		return errors.New("level is required")
	}
	if strings.TrimSpace(in.Topic) == "" {
		return errors.New("topic is required")
	}
	return nil
}

// Article is the durable record of one generation request and its output.
// Content is set only on completion; JobID points at the most recently
// associated queue entry and may outlive it.
type Article struct {
	ID     string  `gorm:"primaryKey;size:36" json:"id"`
	UserID *uint64 `gorm:"index" json:"-"` // nil = anonymous

	Inputs GenerationInput `gorm:"embedded" json:"inputs"`

	Status  Status  `gorm:"type:varchar(16);index;not null" json:"status"`
	Content *string `gorm:"type:text" json:"content,omitempty"`

	// Provenance, filled on completion. EditHistory is a JSON array of
	// intermediate drafts.
	Source      *string `gorm:"type:varchar(128)" json:"source,omitempty"`
	EditHistory *string `gorm:"type:text" json:"edit_history,omitempty"`

	JobID string `gorm:"size:26;index" json:"job_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Article) TableName() string { return "articles" }

// New builds an article in the running state with a fresh identity.
func New(inputs GenerationInput, userID *uint64, jobID string) *Article {
	return &Article{
		ID:     uuid.NewString(),
		UserID: userID,
		Inputs: inputs,
		Status: StatusRunning,
		JobID:  jobID,
	}
}

var ErrInvalidTransition = errors.New("invalid article status transition")

// Complete transitions running -> completed and attaches the generated
// content plus its provenance. Content must be non-empty: the completed
// state implies content exists.
func (a *Article) Complete(content, source string, editHistory []string) error {
	if a.Status != StatusRunning {
		return ErrInvalidTransition
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("completed article requires content")
	}
	a.Status = StatusCompleted
	a.Content = &content
	if source != "" {
		a.Source = &source
	}
	if len(editHistory) > 0 {
		if b, err := json.Marshal(editHistory); err == nil {
			s := string(b)
			a.EditHistory = &s
		}
	}
	return nil
}

// Fail transitions running -> failed and clears any content.
func (a *Article) Fail() error {
	if a.Status != StatusRunning {
		return ErrInvalidTransition
	}
	a.Status = StatusFailed
	a.Content = nil
	return nil
}

// Delete soft-deletes the article. Reachable from any non-deleted state.
func (a *Article) Delete() error {
	if a.Status == StatusDeleted {
		return ErrInvalidTransition
	}
	a.Status = StatusDeleted
	return nil
}

// UsageRecord is the durable cost record of one resource-consuming engine
// step. Several records may share an article; aggregation happens at read
// time.
type UsageRecord struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"index;not null" json:"-"`

	Operation string `gorm:"type:varchar(64);not null" json:"operation"`
	Model     string `gorm:"type:varchar(64);not null" json:"model"`

	PromptUnits     int     `json:"prompt_units"`
	CompletionUnits int     `json:"completion_units"`
	TotalUnits      int     `json:"total_units"`
	EstimatedCost   float64 `json:"estimated_cost"`

	ArticleID *string `gorm:"size:36;index" json:"article_id,omitempty"`
	Metadata  *string `gorm:"type:text" json:"metadata,omitempty"` // JSON, e.g. {"step":"draft"}

	CreatedAt time.Time `json:"created_at"`
}

func (UsageRecord) TableName() string { return "usage_records" }
