package engagement

import (
	"context"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
)

// Weights scale the per-action counters into a single engagement score.
// Policy values, not invariants; configured at wiring time.
type Weights struct {
	View  float64
	Like  float64
	Share float64
}

func DefaultWeights() Weights {
	return Weights{View: 1, Like: 2, Share: 3}
}

// ColdStartScore keeps unengaged articles rankable instead of zeroing them out.
const ColdStartScore = 1.0

// ScoreOf computes the weighted engagement score for a present record.
func ScoreOf(rec *domain.EngagementRecord, w Weights) float64 {
	if rec == nil {
		return ColdStartScore
	}
	return float64(rec.Views)*w.View + float64(rec.Likes)*w.Like + float64(rec.Shares)*w.Share
}

// Tracker records per-article interactions with bounded retention. Increments
// are atomic at the store; expiry of a record reverts the article to the
// cold-start baseline.
type Tracker interface {
	RecordEvent(ctx context.Context, articleID string, action domain.EngagementAction) error
	Record(ctx context.Context, articleID string) (*domain.EngagementRecord, error)
	Score(ctx context.Context, articleID string) (float64, error)
	ScoreMany(ctx context.Context, articleIDs []string) (map[string]float64, error)
}

func validateEvent(articleID string, action domain.EngagementAction) error {
	if articleID == "" {
		return pkgerrors.Validation("article_id", "required")
	}
	if !domain.ValidEngagementAction(action) {
		return pkgerrors.Validation("action", "must be view, like or share")
	}
	return nil
}

const DefaultRetention = 7 * 24 * time.Hour
