package splunk

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"siem-mcp/internal/schema"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDiscoveryRange = "-30d"

	sourcesSearch = "| tstats count WHERE index=* BY index, source | stats count BY index, source | sort - count"

	// Splunk caps concurrent searches per user; stay well below the default.
	fieldSummaryParallelism = 3
)

// IndexesAndSources lists every index and the sources that received events
// within timeRange, busiest source first.
func (c *Client) IndexesAndSources(ctx context.Context, timeRange string) ([]string, map[string][]string, error) {
	indexes, err := c.Indexes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list indexes: %w", err)
	}

	rows, err := c.search(ctx, sourcesSearch, timeRange)
	if err != nil {
		return nil, nil, fmt.Errorf("list sources: %w", err)
	}

	sources := make(map[string][]string)
	for _, row := range rows {
		index, _ := row["index"].(string)
		source, _ := row["source"].(string)
		if index == "" || source == "" {
			continue
		}
		sources[index] = append(sources[index], source)
	}
	return indexes, sources, nil
}

// FieldSummary returns the fields seen in the first 100 events of a source.
func (c *Client) FieldSummary(ctx context.Context, index, source, timeRange string) ([]string, error) {
	q := fmt.Sprintf(`search index=%q source=%q earliest=%s | head 100 | fieldsummary`, index, source, timeRange)
	rows, err := c.search(ctx, q, "")
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(rows))
	for _, row := range rows {
		if f, _ := row["field"].(string); f != "" {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func (c *Client) search(ctx context.Context, q, earliest string) ([]map[string]any, error) {
	var extra url.Values
	if earliest != "" {
		extra = url.Values{}
		extra.Set("earliest_time", earliest)
		extra.Set("latest_time", "now")
	}
	sid, err := c.CreateJob(ctx, q, extra)
	if err != nil {
		return nil, err
	}
	return c.Results(ctx, sid, 0)
}

// BuildCatalog discovers index, source and field names in the format read
// by the schema store. Sources whose field summary fails are logged and
// dropped by the final prune, as are indexes left without sources.
func BuildCatalog(ctx context.Context, c *Client, timeRange string, logger zerolog.Logger) (schema.SplunkFile, error) {
	if timeRange == "" {
		timeRange = DefaultDiscoveryRange
	}

	indexes, sources, err := c.IndexesAndSources(ctx, timeRange)
	if err != nil {
		return schema.SplunkFile{}, err
	}

	out := schema.SplunkFile{Indexes: make(map[string]schema.SplunkIndexEntry, len(indexes))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fieldSummaryParallelism)

	for _, index := range indexes {
		found := make(map[string]schema.SplunkSourceEntry)
		out.Indexes[index] = schema.SplunkIndexEntry{Source: found}
		for _, source := range sources[index] {
			g.Go(func() error {
				fields, err := c.FieldSummary(gctx, index, source, timeRange)
				if err != nil {
					logger.Warn().Err(err).Str("index", index).Str("source", source).Msg("field summary failed")
					fields = nil
				}
				mu.Lock()
				found[source] = schema.SplunkSourceEntry{Fields: fields}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return schema.SplunkFile{}, err
	}

	pruned := schema.PruneSplunk(out)
	logger.Info().Int("indexes", len(indexes)).Int("kept", len(pruned.Indexes)).Msg("splunk catalog built")
	return pruned, nil
}
