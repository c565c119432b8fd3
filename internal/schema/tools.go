package schema

import (
	"context"
	"fmt"
	"strings"

	"siem-mcp/internal/models"
	"siem-mcp/internal/utils"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListIndexesDescription describes the list_indexes tool
const ListIndexesDescription = `
List the indexes recorded in the schema catalog of a backend.

Parameters:
- backend: (Optional) "elk" for Elasticsearch or "splunk". Defaults to "elk".

For Elasticsearch the names are index groups such as "windows" or "filebeat"; pass them to
query_elasticsearch as the index pattern and they are expanded to "windows-*" or ".ds-filebeat-*".
For Splunk the names are Splunk indexes.

Use get_index_fields next to see which fields hold data.
`

// GetIndexFieldsDescription describes the get_index_fields tool
const GetIndexFieldsDescription = `
Get the fields recorded for an index in the schema catalog.

Parameters:
- backend: (Optional) "elk" or "splunk". Defaults to "elk".
- index: (Required) Index name as returned by list_indexes.

Elasticsearch returns a list of field paths that hold data (".keyword" sub-fields are omitted).
Splunk returns a map of source name to field names.
An unknown index returns an empty result. Only use fields from this list when writing queries.
`

// ListIndexesArgs are the list_indexes tool arguments.
type ListIndexesArgs struct {
	Backend string `json:"backend,omitempty" jsonschema:"Backend: elk or splunk (default: elk)"`
}

// GetIndexFieldsArgs are the get_index_fields tool arguments.
type GetIndexFieldsArgs struct {
	Backend string `json:"backend,omitempty" jsonschema:"Backend: elk or splunk (default: elk)"`
	Index   string `json:"index" jsonschema:"Index name as returned by list_indexes"`
}

func parseBackend(s string) (models.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "elk", "elastic", "elasticsearch":
		return models.BackendElastic, nil
	case "splunk":
		return models.BackendSplunk, nil
	default:
		return "", fmt.Errorf("unknown backend %q, expected elk or splunk", s)
	}
}

// NewListIndexesHandler creates the list_indexes tool handler.
func NewListIndexesHandler(store *Store) func(context.Context, *mcp.CallToolRequest, ListIndexesArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args ListIndexesArgs) (*mcp.CallToolResult, any, error) {
		backend, err := parseBackend(args.Backend)
		if err != nil {
			return nil, nil, err
		}

		indexes, err := store.ListIndexes(backend)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list indexes: %w", err)
		}

		return textResult(map[string]any{"backend": backend, "indexes": indexes})
	}
}

// NewGetIndexFieldsHandler creates the get_index_fields tool handler.
func NewGetIndexFieldsHandler(store *Store) func(context.Context, *mcp.CallToolRequest, GetIndexFieldsArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args GetIndexFieldsArgs) (*mcp.CallToolResult, any, error) {
		backend, err := parseBackend(args.Backend)
		if err != nil {
			return nil, nil, err
		}
		if args.Index == "" {
			return nil, nil, fmt.Errorf("index is required")
		}

		fields, err := store.GetFields(backend, args.Index)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get fields: %w", err)
		}

		key := "fields"
		if backend == models.BackendSplunk {
			key = "sources"
		}
		return textResult(map[string]any{"backend": backend, "index": args.Index, key: fields})
	}
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	text, err := utils.FormatJSON(v)
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
