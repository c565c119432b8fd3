package elastic

import (
	"context"
	"encoding/json"
	"fmt"

	"siem-mcp/internal/deeplink"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const QueryElasticsearchDescription = `Run an Elasticsearch query DSL search against an index pattern and save the raw response to disk.

The index pattern is normalized before the search:
- "windows" becomes "windows-*"
- anything mentioning filebeat becomes ".ds-filebeat-*"
- patterns that already contain "*" are kept as-is
- comma-separated patterns are normalized piece by piece

Parameters:
- index_pattern: (Required) Index name or pattern, e.g. "windows" or "windows-*,linux-*"
- query_body: (Required) The "query" object of the search, e.g. {"bool": {"must": [...]}}
- size: (Optional) Number of hits to return. Defaults to 100.
- from: (Optional) Offset of the first hit. Defaults to 0.
- sort: (Optional) Sort clauses, e.g. [{"@timestamp": "desc"}]
- only_source: (Optional) Return only hits.hits._source. Defaults to true.
- source_includes: (Optional) Restrict _source to these fields.

The response reports has_data, total_hits and, when hits were found, the saved_file path.
Failures are returned as error.kind (invalid_request, http_error, decode_error, persistence_error) with a detail message.
Use get_index_fields first to pick field names that exist in the index.`

// QueryElasticsearchArgs are the query_elasticsearch tool arguments.
type QueryElasticsearchArgs struct {
	IndexPattern   string           `json:"index_pattern" jsonschema:"Index name or pattern (e.g. windows or windows-*,linux-*)"`
	QueryBody      map[string]any   `json:"query_body" jsonschema:"Elasticsearch query DSL object placed under query"`
	Size           *int             `json:"size,omitempty" jsonschema:"Number of hits to return (default: 100)"`
	From           int              `json:"from,omitempty" jsonschema:"Offset of the first hit (default: 0)"`
	Sort           []map[string]any `json:"sort,omitempty" jsonschema:"Sort clauses (e.g. [{\"@timestamp\": \"desc\"}])"`
	OnlySource     *bool            `json:"only_source,omitempty" jsonschema:"Return only hits.hits._source (default: true)"`
	SourceIncludes []string         `json:"source_includes,omitempty" jsonschema:"Restrict _source to these fields"`
}

const defaultToolSize = 100

// Request converts tool arguments into a QueryRequest with defaults applied.
func (a QueryElasticsearchArgs) Request() QueryRequest {
	req := QueryRequest{
		IndexPattern:   a.IndexPattern,
		QueryBody:      a.QueryBody,
		Size:           defaultToolSize,
		From:           a.From,
		OnlySource:     true,
		SourceIncludes: a.SourceIncludes,
	}
	if a.Size != nil {
		req.Size = *a.Size
	}
	if a.OnlySource != nil {
		req.OnlySource = *a.OnlySource
	}
	if len(a.Sort) > 0 {
		req.Sort = a.Sort
	}
	return req
}

// NewQueryElasticsearchHandler creates the query_elasticsearch tool handler.
func NewQueryElasticsearchHandler(exec *Executor) func(context.Context, *mcp.CallToolRequest, QueryElasticsearchArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args QueryElasticsearchArgs) (*mcp.CallToolResult, any, error) {
		out := exec.Execute(ctx, args.Request())

		text, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal outcome: %w", err)
		}

		return &mcp.CallToolResult{
			Meta: deeplink.ToMeta(out.DeepLink),
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: string(text),
				},
			},
			IsError: out.Error != nil,
		}, nil, nil
	}
}
