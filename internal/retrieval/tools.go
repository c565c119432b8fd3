package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const SearchExamplesDescription = `Search the documentation store for query examples similar to a question.

Use this before writing an Elasticsearch or SPL query to find reference examples and field usage notes.

Parameters:
- text: (Required) The question or intent to search for, e.g. "failed logons by user"
- top_k: (Optional) Maximum number of examples to return. Defaults to 3.

Returns a list of matches with score, text and metadata. Only matches above a similarity score of 0.35 are returned.`

// SearchExamplesArgs are the search_examples tool arguments.
type SearchExamplesArgs struct {
	Text string `json:"text" jsonschema:"Question or intent to search for"`
	TopK int    `json:"top_k,omitempty" jsonschema:"Maximum number of examples to return (default: 3)"`
}

// NewSearchExamplesHandler creates the search_examples tool handler.
func NewSearchExamplesHandler(s Searcher) func(context.Context, *mcp.CallToolRequest, SearchExamplesArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args SearchExamplesArgs) (*mcp.CallToolResult, any, error) {
		if args.Text == "" {
			return nil, nil, fmt.Errorf("text is required")
		}

		hits, err := s.Search(ctx, args.Text, args.TopK)
		if err != nil {
			return nil, nil, fmt.Errorf("example search failed: %w", err)
		}

		text, err := json.MarshalIndent(map[string]any{"matches": hits}, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal matches: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: string(text),
				},
			},
		}, nil, nil
	}
}
