package results

import (
	"context"
	"fmt"

	"siem-mcp/internal/utils"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const ListResultsDescription = `List recently saved result files, newest first.

Parameters:
- backend: (Optional) "elk" or "splunk". Lists both when omitted.
- limit: (Optional) Maximum number of entries. Defaults to 20.

Each entry has the file path, backend, query and result count. Pass a path to
summarize_results to get a report.`

// ListResultsArgs are the list_results tool arguments.
type ListResultsArgs struct {
	Backend string `json:"backend,omitempty" jsonschema:"Backend: elk or splunk (default: both)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of entries (default: 20)"`
}

// NewListResultsHandler creates the list_results tool handler.
func NewListResultsHandler(l *Ledger) func(context.Context, *mcp.CallToolRequest, ListResultsArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args ListResultsArgs) (*mcp.CallToolResult, any, error) {
		records, err := l.List(ctx, args.Backend, args.Limit)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list results: %w", err)
		}
		if records == nil {
			records = []Record{}
		}

		text, err := utils.FormatJSON(map[string]any{"results": records})
		if err != nil {
			return nil, nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: text,
				},
			},
		}, nil, nil
	}
}
