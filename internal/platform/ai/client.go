package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/httpx"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/envutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

// Analysis is what the enrichment provider derives from an article body.
type Analysis struct {
	Summary   string           `json:"summary"`
	Sentiment domain.Sentiment `json:"sentiment"`
	Keywords  []string         `json:"keywords"`
	Topics    []string         `json:"topics"`
}

// Client is the AI provider boundary. Analyze failures surface as
// ErrEnrichmentUnavailable and Embed failures as ErrEmbeddingUnavailable so
// the ingestion pipeline can retry them per-article.
type Client interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	embedDim   int
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.String("AI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}

	timeout := envutil.Duration("AI_TIMEOUT", 60*time.Second)

	return &client{
		log:        log.With("service", "AIClient"),
		baseURL:    strings.TrimRight(envutil.String("AI_BASE_URL", "https://api.openai.com"), "/"),
		apiKey:     apiKey,
		model:      envutil.String("AI_MODEL", "gpt-4o-mini"),
		embedModel: envutil.String("AI_EMBED_MODEL", "text-embedding-3-small"),
		embedDim:   envutil.Int("EMBEDDING_DIM", 768),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: envutil.Int("AI_MAX_RETRIES", 3),
	}, nil
}

const analyzeSystemPrompt = `You annotate news articles. Reply with a single JSON object:
{"summary": "<=3 sentence summary",
 "sentiment": "positive" | "negative" | "neutral",
 "keywords": ["up to 8 keywords"],
 "topics": ["1-3 topic labels, lowercase, most specific first"]}`

func (c *client) Analyze(ctx context.Context, text string) (*Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, pkgerrors.Validation("text", "required")
	}

	req := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{"role": "system", "content": analyzeSystemPrompt},
			{"role": "user", "content": text},
		},
		"response_format": map[string]any{"type": "json_object"},
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.doJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrEnrichmentUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", pkgerrors.ErrEnrichmentUnavailable)
	}

	var out Analysis
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, fmt.Errorf("%w: decode analysis: %v", pkgerrors.ErrEnrichmentUnavailable, err)
	}
	out.Sentiment = normalizeSentiment(out.Sentiment)
	return &out, nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	req := map[string]any{
		"model":      c.embedModel,
		"input":      inputs,
		"dimensions": c.embedDim,
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, "/v1/embeddings", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", pkgerrors.ErrEmbeddingUnavailable, len(inputs), len(resp.Data))
	}

	out := make([][]float32, len(inputs))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", pkgerrors.ErrEmbeddingUnavailable, item.Index)
		}
		if len(item.Embedding) != c.embedDim {
			return nil, fmt.Errorf("%w: dimension mismatch: expected=%d got=%d", pkgerrors.ErrEmbeddingUnavailable, c.embedDim, len(item.Embedding))
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

type apiCallError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *apiCallError) Error() string {
	return fmt.Sprintf("ai provider status=%d body=%q", e.status, e.body)
}

func (e *apiCallError) HTTPStatusCode() int { return e.status }

func (c *client) doJSON(ctx context.Context, path string, in, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := httpx.Backoff(500*time.Millisecond, 8*time.Second, attempt-1)
			// A provider-directed Retry-After overrides the computed backoff.
			var ace *apiCallError
			if errors.As(lastErr, &ace) && ace.retryAfter > 0 {
				delay = ace.retryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = c.doJSONOnce(ctx, path, in, out)
		if lastErr == nil {
			return nil
		}
		if !httpx.IsRetryableError(lastErr) {
			return lastErr
		}
		c.log.Warn("ai call retrying", "path", path, "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}

func (c *client) doJSONOnce(ctx context.Context, path string, in, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > 512 {
			body = body[:512] + "..."
		}
		return &apiCallError{
			status:     resp.StatusCode,
			body:       body,
			retryAfter: httpx.RetryAfterDuration(resp, 0, 8*time.Second),
		}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func normalizeSentiment(s domain.Sentiment) domain.Sentiment {
	normalized := domain.Sentiment(strings.ToLower(strings.TrimSpace(string(s))))
	if domain.ValidSentiment(normalized) {
		return normalized
	}
	return domain.SentimentNeutral
}
