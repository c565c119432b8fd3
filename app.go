package main

import (
	"net/http"

	"siem-mcp/internal/agent"
	"siem-mcp/internal/deeplink"
	"siem-mcp/internal/elastic"
	"siem-mcp/internal/llm"
	"siem-mcp/internal/logging"
	"siem-mcp/internal/models"
	"siem-mcp/internal/pipeline"
	"siem-mcp/internal/prompts"
	"siem-mcp/internal/results"
	"siem-mcp/internal/retrieval"
	"siem-mcp/internal/schema"
	"siem-mcp/internal/splunk"
	"siem-mcp/internal/utils"

	last9mcp "github.com/last9/mcp-go-sdk/mcp"
	"github.com/rs/zerolog"
)

// app holds the components shared by the MCP tools and the HTTP API.
// Optional components are nil when their settings are missing.
type app struct {
	cfg    models.Config
	logger zerolog.Logger

	schema  *schema.Store
	saver   *results.Saver
	ledger  *results.Ledger
	prompts *prompts.Library

	elastic   *elastic.Executor
	splunk    *splunk.Executor
	retriever retrieval.Searcher
	runner    *pipeline.Runner
}

func newApp(cfg models.Config, logger zerolog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		schema: schema.NewStore(cfg.ElasticSchemaPath, cfg.SplunkSchemaPath),
		saver:  results.NewSaver(cfg.ResultsDir),
	}

	lib, err := prompts.Load()
	if err != nil {
		return nil, err
	}
	a.prompts = lib

	backend := a.backendClient(utils.NewHTTPClient(backendTimeout(cfg), cfg.VerifySSL))
	links := deeplink.NewBuilder(cfg.KibanaURL, cfg.SplunkWebURL)

	esClient, err := elastic.NewClient(elastic.ClientConfig{
		BaseURL:   cfg.ElasticURL,
		Username:  cfg.ElasticUsername,
		Password:  cfg.ElasticPassword,
		APIKey:    cfg.ElasticAPIKey,
		Timeout:   cfg.ElasticTimeout,
		HitsTotal: cfg.ElasticHitsTotal,
	}, backend)
	if err != nil {
		return nil, err
	}
	a.elastic = elastic.NewExecutor(esClient, a.saver, links, logging.Component(logger, "elastic"))

	if cfg.SplunkEnabled() {
		splClient, err := splunk.NewClient(splunk.ClientConfig{
			Host:     cfg.SplunkHost,
			Port:     cfg.SplunkPort,
			Scheme:   cfg.SplunkScheme,
			Username: cfg.SplunkUsername,
			Password: cfg.SplunkPassword,
			Token:    cfg.SplunkToken,
		}, backend)
		if err != nil {
			return nil, err
		}
		a.splunk = splunk.NewExecutor(splClient, a.saver, links, logging.Component(logger, "splunk"), cfg.SplunkTimeout, cfg.SplunkMaxResults)
	}

	if cfg.RetrievalEnabled() {
		api := last9mcp.WithHTTPTracing(utils.NewHTTPClient(elastic.DefaultTimeout, true))
		q, err := retrieval.NewQdrant(retrieval.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}, retrieval.NewJinaEmbedder(cfg.JinaAPIKey, api), api, logging.Component(logger, "retrieval"))
		if err != nil {
			return nil, err
		}
		a.retriever = q
	}

	if cfg.ResultsDB != "" {
		ledger, err := results.OpenLedger(cfg.ResultsDB)
		if err != nil {
			return nil, err
		}
		a.ledger = ledger
	}

	if cfg.LLMEnabled() {
		provider, err := llm.NewProvider(llm.Config{
			Type:        cfg.LLMProvider,
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		opts := pipeline.Options{
			Schema:    a.schema,
			Agents:    agent.NewSet(provider, lib, logging.Component(logger, "agent")),
			Elastic:   a.elastic,
			Retriever: a.retriever,
			Ledger:    a.ledger,
			Results:   a.saver,
			TopK:      cfg.RetrievalTopK,
			Logger:    logging.Component(logger, "pipeline"),
		}
		// a nil *splunk.Executor must stay a nil interface
		if a.splunk != nil {
			opts.Splunk = a.splunk
		}
		a.runner = pipeline.New(opts)
	}

	logger.Info().
		Bool("splunk", a.splunk != nil).
		Bool("retrieval", a.retriever != nil).
		Bool("ledger", a.ledger != nil).
		Bool("llm", a.runner != nil).
		Str("results_dir", cfg.ResultsDir).
		Msg("components ready")
	return a, nil
}

// backendClient adds tracing, rate limiting and optional debug logging to
// the client used for Elasticsearch and Splunk.
func (a *app) backendClient(base *http.Client) *http.Client {
	client := last9mcp.WithHTTPTracing(base)
	client = utils.WrapClientWithRateLimit(client, a.cfg.RequestRateLimit, a.cfg.RequestRateBurst)
	return utils.WrapClientWithDebug(client, a.cfg.Debug, logging.Component(a.logger, "http"))
}

// Close releases the ledger database.
func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close results ledger")
		}
	}
}
