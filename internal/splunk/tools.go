package splunk

import (
	"context"
	"encoding/json"
	"fmt"

	"siem-mcp/internal/deeplink"
	"siem-mcp/internal/siemerr"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const SearchSplunkDescription = `Run an SPL search on Splunk as a blocking job and save the result rows to disk.

Before submission the query is repaired:
- escaped quotes (\") and literal \n sequences are undone
- "search " is prepended when missing
- on raw Windows event sources (XmlWinEventLog:Security, XmlWinEventLog:System,
  XmlWinEventLog:Application, XmlWinEventLog:Microsoft-Windows-Sysmon/Operational)
  filters on process_name, cmdline, parent_process, parent_cmdline, dest_ip, dest_port,
  src_ip, src_port and user are turned into "*value*" full-text terms, because those
  fields are not extracted at index time

Parameters:
- query: (Required) SPL query, e.g. search index=main source="XmlWinEventLog:Security" EventCode=4625 | stats count by user
- max_results: (Optional) Maximum number of result rows. Defaults to the server setting (100).

Returns the repaired query, results_count and saved_file. A search with no rows returns
results_count 0 and a message instead of an error. Use list_indexes and get_index_fields
with backend "splunk" to find valid indexes, sources and fields first.`

// SearchSplunkArgs are the search_splunk tool arguments.
type SearchSplunkArgs struct {
	Query      string `json:"query" jsonschema:"SPL query to run"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of result rows (default: 100)"`
}

// ErrorBody is the structured error returned by tool handlers.
type ErrorBody struct {
	Query string `json:"query,omitempty"`
	Error struct {
		Kind   string `json:"kind"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// NewErrorBody wraps err for a tool response.
func NewErrorBody(query string, err error) ErrorBody {
	var body ErrorBody
	body.Query = query
	body.Error.Kind = string(siemerr.KindOf(err))
	if body.Error.Kind == "" {
		body.Error.Kind = "internal"
	}
	body.Error.Detail = err.Error()
	return body
}

// NewSearchSplunkHandler creates the search_splunk tool handler.
func NewSearchSplunkHandler(exec *Executor) func(context.Context, *mcp.CallToolRequest, SearchSplunkArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args SearchSplunkArgs) (*mcp.CallToolResult, any, error) {
		result, err := exec.Execute(ctx, args.Query, args.MaxResults)

		var payload any = result
		if err != nil {
			payload = NewErrorBody(result.Query, err)
		}

		text, mErr := json.MarshalIndent(payload, "", "  ")
		if mErr != nil {
			return nil, nil, fmt.Errorf("failed to marshal result: %w", mErr)
		}

		return &mcp.CallToolResult{
			Meta: deeplink.ToMeta(result.DeepLink),
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: string(text),
				},
			},
			IsError: err != nil,
		}, nil, nil
	}
}
