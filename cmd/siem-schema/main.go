// Command siem-schema builds the schema catalog files read by siem-mcp by
// walking a live Elasticsearch cluster or Splunk instance.
//
//	siem-schema elk -elastic_url https://es:9200 -out ELK_schema.json
//	siem-schema splunk -splunk_host splunk -splunk_token ... -out Splunk_schema.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"siem-mcp/internal/elastic"
	"siem-mcp/internal/logging"
	"siem-mcp/internal/splunk"
	"siem-mcp/internal/utils"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ParseAndRun(ctx, os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "siem-schema: %v\n", err)
		os.Exit(1)
	}
}

type commonFlags struct {
	out       string
	verifySSL bool
	timeout   time.Duration
	logLevel  string
	logFormat string
}

func (c *commonFlags) register(fs *flag.FlagSet, defaultOut string) {
	fs.StringVar(&c.out, "out", defaultOut, "Output file, - for stdout")
	fs.BoolVar(&c.verifySSL, "verify_ssl", true, "Verify TLS certificates")
	fs.DurationVar(&c.timeout, "timeout", 2*time.Minute, "Per-request timeout")
	fs.StringVar(&c.logLevel, "log_level", "info", "Log level")
	fs.StringVar(&c.logFormat, "log_format", "console", "Log format: console or json")
}

func (c *commonFlags) logger() zerolog.Logger {
	return logging.New(c.logLevel, c.logFormat)
}

func newRootCommand() *ffcli.Command {
	root := flag.NewFlagSet("siem-schema", flag.ContinueOnError)
	return &ffcli.Command{
		Name:        "siem-schema",
		ShortUsage:  "siem-schema <elk|splunk> [flags]",
		FlagSet:     root,
		Subcommands: []*ffcli.Command{newElasticCommand(), newSplunkCommand()},
		Exec: func(context.Context, []string) error {
			return errors.New("missing subcommand: elk or splunk")
		},
	}
}

func newElasticCommand() *ffcli.Command {
	fs := flag.NewFlagSet("siem-schema elk", flag.ContinueOnError)
	var common commonFlags
	common.register(fs, "ELK_schema.json")

	var cfg elastic.ClientConfig
	fs.StringVar(&cfg.BaseURL, "elastic_url", "http://localhost:9200", "Elasticsearch base URL")
	fs.StringVar(&cfg.Username, "elastic_username", "", "Elasticsearch basic auth user")
	fs.StringVar(&cfg.Password, "elastic_password", "", "Elasticsearch basic auth password")
	fs.StringVar(&cfg.APIKey, "elastic_api_key", "", "Elasticsearch encoded API key")

	return &ffcli.Command{
		Name:       "elk",
		ShortUsage: "siem-schema elk [flags]",
		ShortHelp:  "Discover Elasticsearch index groups and the fields that hold data",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix("SIEM")},
		Exec: func(ctx context.Context, _ []string) error {
			cfg.Timeout = common.timeout
			client, err := elastic.NewClient(cfg, utils.NewHTTPClient(common.timeout, common.verifySSL))
			if err != nil {
				return err
			}

			logger := common.logger()
			catalog, err := elastic.BuildCatalog(ctx, client, logger)
			if err != nil {
				return err
			}
			logger.Info().Int("groups", len(catalog.Indexes)).Msg("elasticsearch catalog built")
			return writeJSON(common.out, catalog)
		},
	}
}

func newSplunkCommand() *ffcli.Command {
	fs := flag.NewFlagSet("siem-schema splunk", flag.ContinueOnError)
	var common commonFlags
	common.register(fs, "Splunk_schema.json")

	var cfg splunk.ClientConfig
	var timeRange string
	fs.StringVar(&cfg.Host, "splunk_host", "localhost", "Splunk management host")
	fs.IntVar(&cfg.Port, "splunk_port", splunk.DefaultPort, "Splunk management port")
	fs.StringVar(&cfg.Scheme, "splunk_scheme", splunk.DefaultScheme, "Splunk management scheme")
	fs.StringVar(&cfg.Username, "splunk_username", "", "Splunk user")
	fs.StringVar(&cfg.Password, "splunk_password", "", "Splunk password")
	fs.StringVar(&cfg.Token, "splunk_token", "", "Splunk bearer token")
	fs.StringVar(&timeRange, "earliest", splunk.DefaultDiscoveryRange, "How far back to look for sources and fields")

	return &ffcli.Command{
		Name:       "splunk",
		ShortUsage: "siem-schema splunk [flags]",
		ShortHelp:  "Discover Splunk indexes, sources and their fields",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix("SIEM")},
		Exec: func(ctx context.Context, _ []string) error {
			client, err := splunk.NewClient(cfg, utils.NewHTTPClient(common.timeout, common.verifySSL))
			if err != nil {
				return err
			}

			logger := common.logger()
			catalog, err := splunk.BuildCatalog(ctx, client, timeRange, logger)
			if err != nil {
				return err
			}
			logger.Info().Int("indexes", len(catalog.Indexes)).Msg("splunk catalog built")
			return writeJSON(common.out, catalog)
		},
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
