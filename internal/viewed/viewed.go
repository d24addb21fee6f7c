package viewed

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Set is the per-user record of already-shown articles. Membership is
// monotonic: once added, an article stays excluded from that user's feed
// until the whole set expires or is cleared.
type Set interface {
	Add(ctx context.Context, userID uuid.UUID, articleID string) error
	Contains(ctx context.Context, userID uuid.UUID, articleID string) (bool, error)
	Members(ctx context.Context, userID uuid.UUID) ([]string, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// DefaultRetention is independent from the preferences retention window.
const DefaultRetention = 30 * 24 * time.Hour
