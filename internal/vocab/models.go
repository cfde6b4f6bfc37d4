package vocab

import "time"

// VocabularyItem is a term a user is known to understand in a language.
type VocabularyItem struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint64 `gorm:"index:idx_vocab_user_lang,priority:1;not null" json:"-"`
	Language string `gorm:"type:varchar(32);index:idx_vocab_user_lang,priority:2;not null" json:"language"`
	Term     string `gorm:"type:varchar(128);not null" json:"term"`
	Level    string `gorm:"type:varchar(4);index;not null" json:"level"`

	CreatedAt time.Time `json:"created_at"`
}

func (VocabularyItem) TableName() string { return "vocabulary_items" }
