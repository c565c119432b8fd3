package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"siem-mcp/internal/siemerr"

	"github.com/rs/zerolog"
)

const (
	DefaultCollection     = "ELK-doc-v1"
	DefaultTopK           = 3
	DefaultScoreThreshold = 0.35
)

// Hit is one retrieved documentation chunk.
type Hit struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Searcher finds documentation chunks similar to a piece of text.
type Searcher interface {
	Search(ctx context.Context, text string, topK int) ([]Hit, error)
}

// Qdrant searches a Qdrant collection over its REST API.
type Qdrant struct {
	baseURL        string
	apiKey         string
	collection     string
	scoreThreshold float64
	embedder       Embedder
	client         *http.Client
	logger         zerolog.Logger
}

// QdrantConfig configures a Qdrant searcher.
type QdrantConfig struct {
	URL            string
	APIKey         string
	Collection     string
	ScoreThreshold float64
}

// NewQdrant creates a searcher. Empty collection and zero threshold select
// the defaults.
func NewQdrant(cfg QdrantConfig, embedder Embedder, client *http.Client, logger zerolog.Logger) (*Qdrant, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, siemerr.Config("qdrant URL is required", nil)
	}
	if embedder == nil {
		return nil, siemerr.Config("qdrant searcher needs an embedder", nil)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	return &Qdrant{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		apiKey:         cfg.APIKey,
		collection:     cfg.Collection,
		scoreThreshold: cfg.ScoreThreshold,
		embedder:       embedder,
		client:         client,
		logger:         logger,
	}, nil
}

type queryRequest struct {
	Query          []float32 `json:"query"`
	Limit          int       `json:"limit"`
	ScoreThreshold float64   `json:"score_threshold"`
	WithPayload    bool      `json:"with_payload"`
}

type queryResponse struct {
	Result struct {
		Points []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	} `json:"result"`
	Status any `json:"status"`
}

// Search embeds text and returns up to topK chunks above the score threshold.
func (q *Qdrant) Search(ctx context.Context, text string, topK int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(queryRequest{
		Query:          vector,
		Limit:          topK,
		ScoreThreshold: q.scoreThreshold,
		WithPayload:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal qdrant query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points/query", q.baseURL, url.PathEscape(q.collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, siemerr.Transport("create qdrant request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, siemerr.Transport("qdrant query failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, siemerr.Transport("read qdrant response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, siemerr.Transport(fmt.Sprintf("qdrant returned status %d: %s", resp.StatusCode, string(raw)), nil)
	}

	var out queryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, siemerr.Transport("decode qdrant response", err)
	}

	hits := make([]Hit, 0, len(out.Result.Points))
	for _, p := range out.Result.Points {
		h := Hit{ID: fmt.Sprint(p.ID), Score: p.Score}
		if t, ok := p.Payload["text"].(string); ok {
			h.Text = t
		}
		if m, ok := p.Payload["metadata"].(map[string]any); ok {
			h.Metadata = m
		}
		hits = append(hits, h)
	}

	q.logger.Debug().Str("collection", q.collection).Int("hits", len(hits)).Msg("example search")
	return hits, nil
}

// FormatExamples joins hit texts for use in a prompt.
func FormatExamples(hits []Hit) string {
	var sb strings.Builder
	for i, h := range hits {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] (score %.2f)\n%s", i+1, h.Score, text)
	}
	return sb.String()
}
