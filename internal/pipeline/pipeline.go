package pipeline

import (
	"context"
	"fmt"
	"strings"

	"siem-mcp/internal/agent"
	"siem-mcp/internal/elastic"
	"siem-mcp/internal/models"
	"siem-mcp/internal/results"
	"siem-mcp/internal/retrieval"
	"siem-mcp/internal/schema"
	"siem-mcp/internal/siemerr"
	"siem-mcp/internal/splunk"

	"github.com/rs/zerolog"
)

// Stages of a run. A failed run reports the stage it stopped at.
const (
	StageIntent   = "intent"
	StageSelect   = "index_selection"
	StageFields   = "fields"
	StageBuild    = "query_build"
	StageVerify   = "field_verification"
	StageExecute  = "execute"
	StageSummary  = "summary"
	StageComplete = "complete"
)

// ElasticSearcher runs Elasticsearch searches.
type ElasticSearcher interface {
	Execute(ctx context.Context, req elastic.QueryRequest) elastic.SearchOutcome
}

// SplunkSearcher runs SPL searches.
type SplunkSearcher interface {
	Execute(ctx context.Context, query string, maxResults int) (splunk.JobResult, error)
}

// ResultReader loads saved result files.
type ResultReader interface {
	Read(path string) ([]byte, error)
}

// Options wires a Runner. Elastic, Splunk, Retriever and Ledger may be nil.
type Options struct {
	Schema    *schema.Store
	Agents    *agent.Set
	Elastic   ElasticSearcher
	Splunk    SplunkSearcher
	Retriever retrieval.Searcher
	Ledger    *results.Ledger
	Results   ResultReader
	TopK      int
	QuerySize int
	Logger    zerolog.Logger
}

// Runner drives question → intent → query → execute → report. Steps run
// strictly in sequence and every failure is reported in the run outcome.
type Runner struct {
	opts Options
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	if opts.QuerySize <= 0 {
		opts.QuerySize = 100
	}
	return &Runner{opts: opts}
}

// Failure describes why a run stopped.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newFailure(err error) *Failure {
	kind := string(siemerr.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	return &Failure{Kind: kind, Message: err.Error()}
}

// examples returns reference examples for intent, or "" when retrieval is
// disabled or fails. Retrieval failures never stop a run.
func (r *Runner) examples(ctx context.Context, intent models.Intent) ([]retrieval.Hit, string) {
	if r.opts.Retriever == nil {
		return nil, ""
	}
	hits, err := r.opts.Retriever.Search(ctx, intent.SearchText(), r.opts.TopK)
	if err != nil {
		r.opts.Logger.Warn().Err(err).Msg("example retrieval failed, continuing without examples")
		return nil, ""
	}
	return hits, retrieval.FormatExamples(hits)
}

func (r *Runner) record(ctx context.Context, backend models.Backend, path, query string, count int64) {
	if r.opts.Ledger == nil || path == "" {
		return
	}
	if _, err := r.opts.Ledger.Record(ctx, results.Record{
		Backend: string(backend),
		Path:    path,
		Query:   query,
		Count:   count,
	}); err != nil {
		r.opts.Logger.Warn().Err(err).Str("path", path).Msg("failed to record result in ledger")
	}
}

func rejectUnknown(unknown []string) error {
	return siemerr.Model(fmt.Sprintf("query uses fields that are not in the schema: %s", strings.Join(unknown, ", ")), nil)
}
