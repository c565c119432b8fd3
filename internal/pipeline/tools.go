package pipeline

import (
	"context"

	"siem-mcp/internal/deeplink"
	"siem-mcp/internal/utils"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const AskElasticsearchDescription = `Answer a security question against Elasticsearch end to end.

The server parses the question into an intent, picks an index group from the schema catalog,
loads the fields that hold data, looks up reference examples, asks the language model for a
query DSL object, rejects queries that use fields not in the catalog, then runs the search and
saves any hits to disk.

Parameters:
- question: (Required) The question in natural language, e.g. "PowerShell executions on host PC-001 in the last 7 days"

Returns the intent, selected index pattern, generated query, search outcome and saved_file.
On failure, stage names the step that stopped the run and error explains why.
Pass saved_file to summarize_results to get a Markdown report.`

const AskSplunkDescription = `Answer a security question against Splunk end to end.

The server parses the question into an intent, looks up reference examples, picks an index and
source from the schema catalog, asks the language model for an SPL query, repairs it, rejects
queries that filter on fields not in the catalog, then runs it as a blocking job and saves the
rows to disk.

Parameters:
- question: (Required) The question in natural language, e.g. "failed logons for user admin in the last 3 days"

Returns the intent, chosen index and source, the SPL query, results_count and saved_file.
On failure, stage names the step that stopped the run and error explains why.
Pass saved_file to summarize_results to get a Markdown report.`

const SummarizeResultsDescription = `Write a Markdown analysis report for a saved result file.

Parameters:
- saved_file: (Required) Path returned by query_elasticsearch, search_splunk, ask_elasticsearch or ask_splunk
- query: (Optional) Query that produced the file. Looked up from the results ledger when omitted.
- message: (Optional) Message of the search that produced no file, echoed in the refusal

The report covers overview, key metrics, patterns and anomalies, significant events,
security concerns, recommendations and next steps, based only on the file contents.
Without a saved file no report is generated.`

// AskArgs are the arguments of the ask_* tools.
type AskArgs struct {
	Question string `json:"question" jsonschema:"Security question in natural language"`
}

// SummarizeArgs are the summarize_results tool arguments.
type SummarizeArgs struct {
	SavedFile string `json:"saved_file,omitempty" jsonschema:"Path of the saved result file"`
	Query     string `json:"query,omitempty" jsonschema:"Query that produced the file"`
	Message   string `json:"message,omitempty" jsonschema:"Message of a search that produced no file"`
}

// NewAskElasticsearchHandler creates the ask_elasticsearch tool handler.
func NewAskElasticsearchHandler(r *Runner) func(context.Context, *mcp.CallToolRequest, AskArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args AskArgs) (*mcp.CallToolResult, any, error) {
		run := r.RunElastic(ctx, args.Question)

		link := ""
		if run.Outcome != nil {
			link = run.Outcome.DeepLink
		}
		return toolResult(run, link, run.Error != nil)
	}
}

// NewAskSplunkHandler creates the ask_splunk tool handler.
func NewAskSplunkHandler(r *Runner) func(context.Context, *mcp.CallToolRequest, AskArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args AskArgs) (*mcp.CallToolResult, any, error) {
		run := r.RunSplunk(ctx, args.Question)

		link := ""
		if run.Result != nil {
			link = run.Result.DeepLink
		}
		return toolResult(run, link, run.Error != nil)
	}
}

// NewSummarizeHandler creates the summarize_results tool handler. A report is
// returned as Markdown text, a refusal as JSON.
func NewSummarizeHandler(r *Runner) func(context.Context, *mcp.CallToolRequest, SummarizeArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args SummarizeArgs) (*mcp.CallToolResult, any, error) {
		rep := r.Summarize(ctx, SummaryRequest(args))
		if rep.Error != nil {
			return toolResult(rep, "", true)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: rep.Markdown,
				},
			},
		}, nil, nil
	}
}

func toolResult(v any, link string, isError bool) (*mcp.CallToolResult, any, error) {
	text, err := utils.FormatJSON(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Meta: deeplink.ToMeta(link),
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: text,
			},
		},
		IsError: isError,
	}, nil, nil
}
