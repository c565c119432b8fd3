package pipeline

import (
	"context"

	"siem-mcp/internal/elastic"
	"siem-mcp/internal/models"
	"siem-mcp/internal/retrieval"
	"siem-mcp/internal/siemerr"
)

// ElasticRun is the outcome of one Elasticsearch question.
type ElasticRun struct {
	Question     string                 `json:"question"`
	Intent       *models.Intent         `json:"intent,omitempty"`
	Index        string                 `json:"index,omitempty"`
	IndexPattern string                 `json:"index_pattern,omitempty"`
	Fields       []string               `json:"fields,omitempty"`
	Examples     []retrieval.Hit        `json:"examples,omitempty"`
	Query        map[string]any         `json:"query,omitempty"`
	Outcome      *elastic.SearchOutcome `json:"outcome,omitempty"`
	SavedFile    string                 `json:"saved_file,omitempty"`
	Stage        string                 `json:"stage"`
	Error        *Failure               `json:"error,omitempty"`
}

func (run *ElasticRun) fail(stage string, err error) ElasticRun {
	run.Stage = stage
	run.Error = newFailure(err)
	return *run
}

// RunElastic answers question against Elasticsearch: resolve intent, select
// an index group, load its fields, fetch examples, build the query, verify
// its fields, then search.
func (r *Runner) RunElastic(ctx context.Context, question string) ElasticRun {
	run := ElasticRun{Question: question}
	log := r.opts.Logger.With().Str("backend", string(models.BackendElastic)).Logger()

	if r.opts.Elastic == nil {
		return run.fail(StageExecute, siemerr.Config("Elasticsearch is not configured", nil))
	}

	intent, err := r.opts.Agents.Intent.Resolve(ctx, question)
	if err != nil {
		return run.fail(StageIntent, err)
	}
	run.Intent = &intent

	indexes, err := r.opts.Schema.ListIndexes(models.BackendElastic)
	if err != nil {
		return run.fail(StageSelect, err)
	}
	index, err := r.opts.Agents.Builder.SelectElasticIndex(ctx, intent, indexes)
	if err != nil {
		return run.fail(StageSelect, err)
	}
	run.Index = index
	run.IndexPattern = elastic.NormalizeIndexPattern(index)

	fields, err := r.opts.Schema.GetElasticFields(index)
	if err != nil {
		return run.fail(StageFields, err)
	}
	if len(fields) == 0 {
		return run.fail(StageFields, siemerr.NotFound("no fields with data for index "+index, nil))
	}

	hits, examples := r.examples(ctx, intent)
	run.Examples = hits

	built, err := r.opts.Agents.Builder.BuildElastic(ctx, intent, run.IndexPattern, fields, examples)
	if err != nil {
		return run.fail(StageBuild, err)
	}
	run.Query = built.Query
	run.Fields = union(built.Fields, ElasticQueryFields(built.Query))

	_, unknown, err := r.opts.Schema.VerifyFields(models.BackendElastic, index, run.Fields)
	if err != nil {
		return run.fail(StageVerify, err)
	}
	if len(unknown) > 0 {
		return run.fail(StageVerify, rejectUnknown(unknown))
	}

	out := r.opts.Elastic.Execute(ctx, elastic.QueryRequest{
		IndexPattern: run.IndexPattern,
		QueryBody:    built.Query,
		Size:         r.opts.QuerySize,
		OnlySource:   true,
	})
	run.Outcome = &out
	run.IndexPattern = out.IndexPattern
	if out.Error != nil {
		run.Stage = StageExecute
		run.Error = &Failure{Kind: out.Error.Kind, Message: out.Error.Detail}
		return run
	}

	run.SavedFile = out.SavedFile
	r.record(ctx, models.BackendElastic, out.SavedFile, compactQuery(built.Query), out.TotalHits)
	run.Stage = StageComplete

	log.Info().
		Str("index_pattern", run.IndexPattern).
		Bool("has_data", out.HasData).
		Int64("total_hits", out.TotalHits).
		Str("saved_file", out.SavedFile).
		Msg("question answered")
	return run
}
