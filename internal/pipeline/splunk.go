package pipeline

import (
	"context"
	"encoding/json"

	"siem-mcp/internal/models"
	"siem-mcp/internal/retrieval"
	"siem-mcp/internal/siemerr"
	"siem-mcp/internal/splunk"
)

// SplunkRun is the outcome of one Splunk question.
type SplunkRun struct {
	Question string            `json:"question"`
	Intent   *models.Intent    `json:"intent,omitempty"`
	Examples []retrieval.Hit   `json:"examples,omitempty"`
	Index    string            `json:"index,omitempty"`
	Source   string            `json:"source,omitempty"`
	Fields   []string          `json:"fields,omitempty"`
	Query    string            `json:"query,omitempty"`
	Result   *splunk.JobResult `json:"result,omitempty"`
	Stage    string            `json:"stage"`
	Error    *Failure          `json:"error,omitempty"`
}

func (run *SplunkRun) fail(stage string, err error) SplunkRun {
	run.Stage = stage
	run.Error = newFailure(err)
	return *run
}

// RunSplunk answers question against Splunk: resolve intent, fetch examples,
// select an index and source, build SPL, verify its fields, then search.
func (r *Runner) RunSplunk(ctx context.Context, question string) SplunkRun {
	run := SplunkRun{Question: question}

	if r.opts.Splunk == nil {
		return run.fail(StageExecute, siemerr.Config("Splunk is not configured", nil))
	}

	intent, err := r.opts.Agents.Intent.Resolve(ctx, question)
	if err != nil {
		return run.fail(StageIntent, err)
	}
	run.Intent = &intent

	hits, examples := r.examples(ctx, intent)
	run.Examples = hits

	catalog, err := r.splunkCatalog()
	if err != nil {
		return run.fail(StageSelect, err)
	}
	target, err := r.opts.Agents.Builder.SelectSplunkSource(ctx, intent, catalog)
	if err != nil {
		return run.fail(StageSelect, err)
	}
	run.Index, run.Source = target.Index, target.Source

	sources, err := r.opts.Schema.GetSplunkSources(target.Index)
	if err != nil {
		return run.fail(StageFields, err)
	}
	fields := sources[target.Source]

	spl, err := r.opts.Agents.Builder.BuildSplunk(ctx, intent, target, fields, examples)
	if err != nil {
		return run.fail(StageBuild, err)
	}
	run.Query = splunk.RepairQuery(spl)
	run.Fields = SplunkSearchFields(run.Query)

	_, unknown, err := r.opts.Schema.VerifyFields(models.BackendSplunk, target.Index, run.Fields)
	if err != nil {
		return run.fail(StageVerify, err)
	}
	if len(unknown) > 0 {
		return run.fail(StageVerify, rejectUnknown(unknown))
	}

	// The executor repairs on its own and RepairQuery is not a fixed point
	// when a soft field repeats, so it gets the model's SPL.
	result, err := r.opts.Splunk.Execute(ctx, spl, 0)
	run.Result = &result
	if err != nil {
		return run.fail(StageExecute, err)
	}
	run.Query = result.Query

	r.record(ctx, models.BackendSplunk, result.SavedFile, result.Query, int64(result.ResultsCount))
	run.Stage = StageComplete

	r.opts.Logger.Info().
		Str("backend", string(models.BackendSplunk)).
		Str("index", run.Index).
		Int("results", result.ResultsCount).
		Str("saved_file", result.SavedFile).
		Msg("question answered")
	return run
}

// splunkCatalog maps each index to its source names.
func (r *Runner) splunkCatalog() (map[string][]string, error) {
	indexes, err := r.opts.Schema.ListIndexes(models.BackendSplunk)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string][]string, len(indexes))
	for _, index := range indexes {
		names, err := r.opts.Schema.SplunkSourceNames(index)
		if err != nil {
			return nil, err
		}
		catalog[index] = names
	}
	return catalog, nil
}

func compactQuery(query map[string]any) string {
	data, err := json.Marshal(query)
	if err != nil {
		return ""
	}
	return string(data)
}
