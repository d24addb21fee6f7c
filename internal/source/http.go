package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/ctxutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/envutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

type httpFetcher struct {
	log        *logger.Logger
	feedURL    string
	batchLimit int
	httpClient *http.Client
}

// NewHTTPFetcher pulls raw articles from a JSON feed endpoint. The endpoint
// returns an array of objects shaped like domain.RawArticle.
func NewHTTPFetcher(log *logger.Logger) (Fetcher, error) {
	feedURL := envutil.String("SOURCE_FEED_URL", "")
	if feedURL == "" {
		return nil, fmt.Errorf("missing SOURCE_FEED_URL")
	}
	return &httpFetcher{
		log:        log.With("service", "SourceFetcher"),
		feedURL:    feedURL,
		batchLimit: envutil.Int("SOURCE_BATCH_LIMIT", 50),
		httpClient: &http.Client{Timeout: envutil.Duration("SOURCE_TIMEOUT", 30*time.Second)},
	}, nil
}

func (f *httpFetcher) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed: status=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}

	var items []domain.RawArticle
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.Body) == "" {
			continue
		}
		out = append(out, it)
		if len(out) >= f.batchLimit {
			break
		}
	}
	f.log.Debug("fetched source batch", "received", len(items), "usable", len(out))
	return out, nil
}
