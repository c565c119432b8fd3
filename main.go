// An MCP server that lets AI agents and analysts query Elasticsearch and
// Splunk security logs, from natural language questions to saved results
// and Markdown reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"siem-mcp/internal/elastic"
	"siem-mcp/internal/logging"
	"siem-mcp/internal/models"
	"siem-mcp/internal/retrieval"
	"siem-mcp/internal/siemerr"
	"siem-mcp/internal/splunk"

	"github.com/go-playground/validator/v10"
	last9mcp "github.com/last9/mcp-go-sdk/mcp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/peterbourgon/ff/v3"
	"github.com/rs/zerolog"
)

const serverName = "siem-mcp"

// Version information
var (
	Version   = "dev"     // Set by goreleaser
	CommitSHA = "unknown" // Set by goreleaser
	BuildTime = "unknown" // Set by goreleaser
)

func main() {
	cfg, err := setupConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}
	logger.Info().
		Str("version", Version).
		Str("commit", CommitSHA).
		Str("built", BuildTime).
		Str("transport", cfg.Transport).
		Msg("starting " + serverName)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg models.Config, logger zerolog.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	server, err := last9mcp.NewServer(serverName, Version)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	if err := registerAllTools(server, a); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	registerAllPrompts(server, a.prompts)

	if cfg.Transport == "http" {
		return NewHTTPServer(server, cfg, a).Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := server.Server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// setupConfig parses flags, SIEM_* environment variables and an optional
// plain config file, then validates the result.
func setupConfig(args []string) (models.Config, error) {
	fs := flag.NewFlagSet(serverName, flag.ContinueOnError)

	var cfg models.Config
	// Elasticsearch
	fs.StringVar(&cfg.ElasticURL, "elastic_url", "http://localhost:9200", "Elasticsearch base URL")
	fs.StringVar(&cfg.ElasticUsername, "elastic_username", "", "Elasticsearch basic auth user")
	fs.StringVar(&cfg.ElasticPassword, "elastic_password", "", "Elasticsearch basic auth password")
	fs.StringVar(&cfg.ElasticAPIKey, "elastic_api_key", "", "Elasticsearch encoded API key")
	fs.DurationVar(&cfg.ElasticTimeout, "elastic_timeout", elastic.DefaultTimeout, "Elasticsearch request timeout")
	fs.StringVar(&cfg.ElasticHitsTotal, "elastic_hits_total", elastic.HitsTotalAuto, "Shape of hits.total: auto, object or scalar")
	fs.StringVar(&cfg.ElasticSchemaPath, "elastic_schema", "ELK_schema.json", "Elasticsearch schema catalog file")
	fs.StringVar(&cfg.KibanaURL, "kibana_url", "", "Kibana base URL for deep links")

	// Splunk
	fs.StringVar(&cfg.SplunkHost, "splunk_host", "", "Splunk management host (empty disables Splunk)")
	fs.IntVar(&cfg.SplunkPort, "splunk_port", splunk.DefaultPort, "Splunk management port")
	fs.StringVar(&cfg.SplunkScheme, "splunk_scheme", splunk.DefaultScheme, "Splunk management scheme")
	fs.StringVar(&cfg.SplunkUsername, "splunk_username", "", "Splunk user")
	fs.StringVar(&cfg.SplunkPassword, "splunk_password", "", "Splunk password")
	fs.StringVar(&cfg.SplunkToken, "splunk_token", "", "Splunk bearer token")
	fs.DurationVar(&cfg.SplunkTimeout, "splunk_timeout", splunk.DefaultTimeout, "Splunk search job timeout")
	fs.IntVar(&cfg.SplunkMaxResults, "splunk_max_results", splunk.DefaultMaxResults, "Default maximum Splunk result rows")
	fs.StringVar(&cfg.SplunkSchemaPath, "splunk_schema", "Splunk_schema.json", "Splunk schema catalog file")
	fs.StringVar(&cfg.SplunkWebURL, "splunk_web_url", "", "Splunk Web base URL for deep links")
	fs.BoolVar(&cfg.VerifySSL, "verify_ssl", true, "Verify backend TLS certificates")

	// Results
	fs.StringVar(&cfg.ResultsDir, "results_dir", "logs", "Directory for saved result files")
	fs.StringVar(&cfg.ResultsDB, "results_db", "logs/results.db", "SQLite results ledger (empty disables it)")

	// Language model
	fs.StringVar(&cfg.LLMProvider, "llm_provider", "", "Language model provider: openai, openai_compatible or anthropic")
	fs.StringVar(&cfg.LLMBaseURL, "llm_base_url", "", "Language model API base URL")
	fs.StringVar(&cfg.LLMAPIKey, "llm_api_key", "", "Language model API key")
	fs.StringVar(&cfg.LLMModel, "llm_model", "", "Language model name")
	fs.Float64Var(&cfg.LLMTemperature, "llm_temperature", 0.65, "Sampling temperature")
	fs.IntVar(&cfg.LLMMaxTokens, "llm_max_tokens", 0, "Maximum answer tokens (0 uses the provider default)")

	// Example retrieval
	fs.StringVar(&cfg.QdrantURL, "qdrant_url", "", "Qdrant base URL (empty disables example retrieval)")
	fs.StringVar(&cfg.QdrantAPIKey, "qdrant_api_key", "", "Qdrant API key")
	fs.StringVar(&cfg.QdrantCollection, "qdrant_collection", retrieval.DefaultCollection, "Qdrant collection with query examples")
	fs.StringVar(&cfg.JinaAPIKey, "jina_api_key", "", "Jina embeddings API key")
	fs.IntVar(&cfg.RetrievalTopK, "retrieval_top_k", retrieval.DefaultTopK, "Number of examples to retrieve")

	// Rate limiting
	fs.Float64Var(&cfg.RequestRateLimit, "rate", 5, "Backend requests per second limit")
	fs.IntVar(&cfg.RequestRateBurst, "burst", 5, "Backend request burst capacity")

	// Server
	fs.StringVar(&cfg.Transport, "transport", "stdio", "MCP transport: stdio or http")
	fs.StringVar(&cfg.Host, "host", "localhost", "HTTP server host")
	fs.StringVar(&cfg.Port, "port", "8080", "HTTP server port")
	fs.StringVar(&cfg.LogLevel, "log_level", "info", "Log level")
	fs.StringVar(&cfg.LogFormat, "log_format", "console", "Log format: console or json")
	fs.BoolVar(&cfg.Debug, "debug", false, "Log backend requests and responses")

	var configFile string
	fs.StringVar(&configFile, "config", "", "config file path")

	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("SIEM"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err != nil {
		return cfg, siemerr.Config("failed to parse configuration", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, siemerr.Config("invalid configuration", err)
	}
	if cfg.LLMProvider != "" && !cfg.LLMEnabled() {
		return cfg, siemerr.Config("llm_provider requires llm_api_key and llm_model", nil)
	}
	if cfg.SplunkEnabled() && cfg.SplunkToken == "" && cfg.SplunkUsername == "" {
		return cfg, siemerr.Config("splunk_host requires splunk_token or splunk_username", nil)
	}
	if cfg.QdrantURL != "" && cfg.JinaAPIKey == "" {
		return cfg, siemerr.Config("qdrant_url requires jina_api_key for query embeddings", nil)
	}

	return cfg, nil
}

// backendTimeout bounds one backend HTTP call. Splunk jobs run longer than
// a single ES request, so the client timeout follows the job timeout.
func backendTimeout(cfg models.Config) time.Duration {
	if cfg.SplunkTimeout > cfg.ElasticTimeout {
		return cfg.SplunkTimeout
	}
	return cfg.ElasticTimeout
}
