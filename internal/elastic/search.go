package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"siem-mcp/internal/constants"
	"siem-mcp/internal/deeplink"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Outcome error kinds
const (
	ErrKindInvalidRequest = "invalid_request"
	ErrKindHTTP           = "http_error"
	ErrKindDecode         = "decode_error"
	ErrKindPersistence    = "persistence_error"
)

// QueryRequest describes one search. QueryBody and Sort are forwarded as-is.
type QueryRequest struct {
	IndexPattern   string         `json:"index_pattern" validate:"required"`
	QueryBody      map[string]any `json:"query_body" validate:"required"`
	Size           int            `json:"size" validate:"min=0"`
	From           int            `json:"from" validate:"min=0"`
	Sort           any            `json:"sort,omitempty"`
	OnlySource     bool           `json:"only_source,omitempty"`
	SourceIncludes []string       `json:"source_includes,omitempty"`
}

// OutcomeError is a structured failure carried inside a SearchOutcome.
type OutcomeError struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// SearchOutcome is always returned by Execute, even on failure.
type SearchOutcome struct {
	IndexPattern string         `json:"index_pattern"`
	Query        map[string]any `json:"query"`
	HasData      bool           `json:"has_data"`
	TotalHits    int64          `json:"total_hits"`
	SavedFile    string         `json:"saved_file,omitempty"`
	DeepLink     string         `json:"deep_link,omitempty"`
	Error        *OutcomeError  `json:"error,omitempty"`
}

// ResultSaver persists raw responses and returns the file path.
type ResultSaver interface {
	Save(tag string, payload any) (string, error)
}

// Executor runs searches, classifies the response and persists hits.
type Executor struct {
	client   *Client
	saver    ResultSaver
	links    *deeplink.Builder
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewExecutor creates an Executor. links may be nil.
func NewExecutor(client *Client, saver ResultSaver, links *deeplink.Builder, logger zerolog.Logger) *Executor {
	return &Executor{
		client:   client,
		saver:    saver,
		links:    links,
		logger:   logger,
		validate: validator.New(),
	}
}

type searchResponse struct {
	Hits struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Execute normalizes the index pattern, runs the search and reports a
// structured outcome. It never returns a Go error: failures are carried in
// SearchOutcome.Error.
func (e *Executor) Execute(ctx context.Context, req QueryRequest) SearchOutcome {
	pattern := NormalizeIndexPattern(req.IndexPattern)
	out := SearchOutcome{IndexPattern: pattern, Query: req.QueryBody}

	if err := e.validate.Struct(req); err != nil {
		out.Error = &OutcomeError{Kind: ErrKindInvalidRequest, Detail: err.Error()}
		return out
	}

	params := url.Values{}
	if req.OnlySource {
		params.Set("filter_path", "hits.hits._source")
	}

	log := e.logger.With().Str("index_pattern", pattern).Logger()
	log.Info().Int("size", req.Size).Int("from", req.From).Bool("only_source", req.OnlySource).Msg("running elasticsearch query")

	raw, err := e.client.do(ctx, http.MethodPost, indexPath(constants.EndpointElasticSearch, pattern), params, BuildSearchBody(req), "")
	if err != nil {
		log.Warn().Err(err).Msg("elasticsearch query failed")
		out.Error = &OutcomeError{Kind: ErrKindHTTP, Detail: err.Error()}
		return out
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		out.Error = &OutcomeError{Kind: ErrKindDecode, Detail: fmt.Sprintf("failed to decode search response: %v", err)}
		return out
	}

	total, err := TotalHits(resp.Hits.Total, e.client.cfg.HitsTotal)
	if err != nil {
		log.Warn().Err(err).Str("mode", e.client.cfg.HitsTotal).Msg("unexpected hits.total shape")
	}
	out.TotalHits = total

	if req.OnlySource {
		// filter_path drops hits.total, so count the returned sources.
		var n int64
		for _, h := range resp.Hits.Hits {
			if hasSource(h.Source) {
				n++
			}
		}
		out.HasData = n > 0
		if out.TotalHits == 0 {
			out.TotalHits = n
		}
	} else {
		out.HasData = total > 0
	}

	if e.links != nil {
		out.DeepLink = e.links.Discover(pattern, req.QueryBody)
	}

	if !out.HasData {
		log.Info().Msg("no results found, nothing saved")
		return out
	}

	path, err := e.saver.Save(constants.TagElastic, json.RawMessage(raw))
	if err != nil {
		log.Error().Err(err).Msg("failed to save elasticsearch response")
		out.Error = &OutcomeError{Kind: ErrKindPersistence, Detail: err.Error()}
		return out
	}
	out.SavedFile = path
	log.Info().Int64("total_hits", out.TotalHits).Str("saved_file", path).Msg("elasticsearch results saved")
	return out
}

// BuildSearchBody assembles the _search request body.
func BuildSearchBody(req QueryRequest) map[string]any {
	body := map[string]any{
		"query": req.QueryBody,
		"size":  req.Size,
		"from":  req.From,
	}
	if req.Sort != nil {
		body["sort"] = req.Sort
	}
	if len(req.SourceIncludes) > 0 {
		body["_source"] = map[string]any{"includes": req.SourceIncludes}
	}
	return body
}

// TotalHits reads hits.total in either the scalar or the {value, relation}
// shape. In a fixed mode a mismatched shape yields 0 and an error.
func TotalHits(raw json.RawMessage, mode string) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	isObject := raw[0] == '{'
	switch mode {
	case HitsTotalObject:
		if !isObject {
			return 0, fmt.Errorf("expected object hits.total, got %s", raw)
		}
	case HitsTotalScalar:
		if isObject {
			return 0, fmt.Errorf("expected scalar hits.total, got %s", raw)
		}
	}

	if isObject {
		var obj struct {
			Value int64 `json:"value"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, err
		}
		return obj.Value, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, errors.New("hits.total is not a number")
	}
	return int64(f), nil
}

func hasSource(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && string(raw) != "null"
}
