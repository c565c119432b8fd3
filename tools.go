package main

import (
	"siem-mcp/internal/elastic"
	"siem-mcp/internal/pipeline"
	"siem-mcp/internal/results"
	"siem-mcp/internal/retrieval"
	"siem-mcp/internal/schema"
	"siem-mcp/internal/splunk"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	last9mcp "github.com/last9/mcp-go-sdk/mcp"
)

// registerAllTools registers the tools whose backing components are configured.
func registerAllTools(server *last9mcp.Last9MCPServer, a *app) error {
	// Schema catalog tools
	last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
		Name:        "list_indexes",
		Description: schema.ListIndexesDescription,
	}, schema.NewListIndexesHandler(a.schema))

	last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
		Name:        "get_index_fields",
		Description: schema.GetIndexFieldsDescription,
	}, schema.NewGetIndexFieldsHandler(a.schema))

	// Direct query execution
	last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
		Name:        "query_elasticsearch",
		Description: elastic.QueryElasticsearchDescription,
	}, elastic.NewQueryElasticsearchHandler(a.elastic))

	if a.splunk != nil {
		last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
			Name:        "search_splunk",
			Description: splunk.SearchSplunkDescription,
		}, splunk.NewSearchSplunkHandler(a.splunk))
	}

	if a.retriever != nil {
		last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
			Name:        "search_examples",
			Description: retrieval.SearchExamplesDescription,
		}, retrieval.NewSearchExamplesHandler(a.retriever))
	}

	// Natural language pipeline, needs a language model
	if a.runner != nil {
		last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
			Name:        "ask_elasticsearch",
			Description: pipeline.AskElasticsearchDescription,
		}, pipeline.NewAskElasticsearchHandler(a.runner))

		if a.splunk != nil {
			last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
				Name:        "ask_splunk",
				Description: pipeline.AskSplunkDescription,
			}, pipeline.NewAskSplunkHandler(a.runner))
		}

		last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
			Name:        "summarize_results",
			Description: pipeline.SummarizeResultsDescription,
		}, pipeline.NewSummarizeHandler(a.runner))
	}

	if a.ledger != nil {
		last9mcp.RegisterInstrumentedTool(server, &mcp.Tool{
			Name:        "list_results",
			Description: results.ListResultsDescription,
		}, results.NewListResultsHandler(a.ledger))
	}

	return nil
}
