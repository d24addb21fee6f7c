package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserPreferences drives personalized feeds. A row older than the configured
// retention window is treated as absent and the user re-onboards.
type UserPreferences struct {
	UserID    uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"user_id"`
	Topics    datatypes.JSONSlice[string] `json:"topics"`
	Sources   datatypes.JSONSlice[string] `json:"sources,omitempty"`
	Sentiment *Sentiment                  `gorm:"type:text" json:"sentiment,omitempty"`
	CreatedAt time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"not null" json:"updated_at"`
}

func (UserPreferences) TableName() string { return "user_preferences" }

func (p *UserPreferences) Empty() bool {
	return p == nil || (len(p.Topics) == 0 && len(p.Sources) == 0 && p.Sentiment == nil)
}

func (p *UserPreferences) ExpiredAt(now time.Time, retention time.Duration) bool {
	if p == nil {
		return true
	}
	return retention > 0 && now.Sub(p.UpdatedAt) > retention
}
