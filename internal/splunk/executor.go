package splunk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"siem-mcp/internal/constants"
	"siem-mcp/internal/deeplink"
	"siem-mcp/internal/siemerr"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout    = 5 * time.Minute
	DefaultMaxResults = 100

	NoDataMessage = "No data found for the query"
)

// JobResult is the outcome of one search job. SavedFile is empty when the
// job returned no rows.
type JobResult struct {
	Query        string `json:"query"`
	ResultsCount int    `json:"results_count"`
	SavedFile    string `json:"saved_file,omitempty"`
	Message      string `json:"message,omitempty"`
	DeepLink     string `json:"deep_link,omitempty"`
}

// ResultSaver persists result payloads and returns the file path.
type ResultSaver interface {
	Save(tag string, payload any) (string, error)
}

// Executor repairs SPL, runs it as a blocking job and persists the rows.
type Executor struct {
	client     *Client
	saver      ResultSaver
	links      *deeplink.Builder
	logger     zerolog.Logger
	timeout    time.Duration
	maxResults int
}

// NewExecutor creates an Executor. A zero timeout or maxResults selects the
// defaults.
func NewExecutor(client *Client, saver ResultSaver, links *deeplink.Builder, logger zerolog.Logger, timeout time.Duration, maxResults int) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Executor{
		client:     client,
		saver:      saver,
		links:      links,
		logger:     logger,
		timeout:    timeout,
		maxResults: maxResults,
	}
}

// Execute runs query after RepairQuery. Zero rows is a valid outcome with
// Message set. Job failures are returned as search errors and a failed
// write as a persistence error.
func (e *Executor) Execute(ctx context.Context, query string, maxResults int) (JobResult, error) {
	q := RepairQuery(query)
	out := JobResult{Query: q}

	if strings.TrimSpace(strings.TrimPrefix(q, "search")) == "" {
		return out, siemerr.Search("search query cannot be empty", nil)
	}
	if maxResults <= 0 {
		maxResults = e.maxResults
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	log := e.logger.With().Str("query", q).Logger()
	log.Info().Int("max_results", maxResults).Msg("running splunk search")

	rows, err := e.run(ctx, q, maxResults)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("search job did not finish within %s: %w", e.timeout, err)
		}
		log.Warn().Err(err).Msg("splunk search failed")
		return out, siemerr.Search("splunk search failed", err)
	}

	if e.links != nil {
		out.DeepLink = e.links.SplunkSearch(q)
	}

	if len(rows) == 0 {
		log.Info().Msg("no results found, nothing saved")
		out.Message = NoDataMessage
		return out, nil
	}

	out.ResultsCount = len(rows)
	path, err := e.saver.Save(constants.TagSplunk, map[string]any{
		"query":   q,
		"results": rows,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to save splunk results")
		if siemerr.Is(err, siemerr.KindPersistence) {
			return out, err
		}
		return out, siemerr.Persistence("failed to save splunk results", err)
	}
	out.SavedFile = path
	log.Info().Int("results_count", len(rows)).Str("saved_file", path).Msg("splunk results saved")
	return out, nil
}

func (e *Executor) run(ctx context.Context, q string, maxResults int) ([]map[string]any, error) {
	sid, err := e.client.CreateJob(ctx, q, nil)
	if err != nil {
		return nil, err
	}

	status, err := e.client.Status(ctx, sid)
	if err != nil {
		return nil, err
	}
	if status.IsFailed || strings.EqualFold(status.DispatchState, "FAILED") {
		detail := strings.Join(status.Messages, "; ")
		if detail == "" {
			detail = "no details reported"
		}
		return nil, fmt.Errorf("job %s failed: %s", sid, detail)
	}

	return e.client.Results(ctx, sid, maxResults)
}
