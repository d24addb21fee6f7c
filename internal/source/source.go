package source

import (
	"context"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
)

// Fetcher produces one finite batch of raw articles per call. An empty slice
// with a nil error means the source had nothing new this cycle.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.RawArticle, error)
}
