package domain

import "time"

type EngagementAction string

const (
	ActionView  EngagementAction = "view"
	ActionLike  EngagementAction = "like"
	ActionShare EngagementAction = "share"
)

func ValidEngagementAction(a EngagementAction) bool {
	switch a {
	case ActionView, ActionLike, ActionShare:
		return true
	}
	return false
}

// EngagementRecord mirrors the per-article counter hash kept in Redis.
// Counters only grow within the record's retention window.
type EngagementRecord struct {
	ArticleID string    `json:"article_id"`
	Views     int64     `json:"views"`
	Likes     int64     `json:"likes"`
	Shares    int64     `json:"shares"`
	UpdatedAt time.Time `json:"updated_at"`
}
