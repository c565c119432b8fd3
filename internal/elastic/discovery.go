package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"siem-mcp/internal/constants"
	"siem-mcp/internal/schema"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	existsBatchSize   = 50
	maxExplicitList   = 100
	existsParallelism = 4
)

var commonAliases = map[string]string{
	"winlogbeat": "windows",
	"windows":    "windows",
	"filebeat":   "filebeat",
	"metricbeat": "metricbeat",
	"auditbeat":  "auditbeat",
	"zeek":       "zeek",
	"suricata":   "suricata",
	"packetbeat": "packetbeat",
	"panw":       "panw",
	"cisco":      "cisco",
	"iis":        "windows",
	"syslog":     "syslog",
}

var (
	reVersionSeg = regexp.MustCompile(`-(?:\d+\.)+\d+(?:-|$)`)
	reTokenSplit = regexp.MustCompile(`[-_.]`)
	reDatePiece  = regexp.MustCompile(`\d{4}[.\-]\d{2}[.\-]\d{2}`)
	reTemplate   = regexp.MustCompile(`\{%.*?%\}`)
	reTrailing   = regexp.MustCompile(`[^a-zA-Z0-9]+$`)
)

// CatIndices lists every index name on the cluster.
func (c *Client) CatIndices(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("h", "index")
	params.Set("format", "json")

	raw, err := c.do(ctx, http.MethodGet, constants.EndpointCatIndices, params, nil, "")
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode _cat/indices: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Index != "" {
			out = append(out, r.Index)
		}
	}
	return out, nil
}

// MappingFields returns the sorted field paths mapped under target,
// excluding keyword sub-fields.
func (c *Client) MappingFields(ctx context.Context, target string) ([]string, error) {
	raw, err := c.do(ctx, http.MethodGet, indexPath(constants.EndpointElasticMapping, target), nil, nil, "")
	if err != nil {
		return nil, err
	}

	var mapping map[string]json.RawMessage
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, fmt.Errorf("failed to decode mapping: %w", err)
	}

	set := make(map[string]struct{})
	for _, body := range mapping {
		var idx struct {
			Mappings struct {
				Properties map[string]json.RawMessage `json:"properties"`
			} `json:"mappings"`
		}
		if err := json.Unmarshal(body, &idx); err != nil {
			continue
		}
		for _, f := range flattenProperties(idx.Mappings.Properties, "") {
			if strings.Contains(f, ".keyword") {
				continue
			}
			set[f] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func flattenProperties(props map[string]json.RawMessage, prefix string) []string {
	var fields []string
	for name, raw := range props {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		fields = append(fields, path)

		var node struct {
			Fields     map[string]json.RawMessage `json:"fields"`
			Properties map[string]json.RawMessage `json:"properties"`
		}
		if err := json.Unmarshal(raw, &node); err != nil {
			continue
		}
		for sub := range node.Fields {
			fields = append(fields, path+"."+sub)
		}
		if len(node.Properties) > 0 {
			fields = append(fields, flattenProperties(node.Properties, path)...)
		}
	}
	return fields
}

// FieldsWithData keeps the fields that at least one document under target
// carries. Fields are checked with exists queries in _msearch batches which
// run concurrently.
func (c *Client) FieldsWithData(ctx context.Context, target string, fields []string) ([]string, error) {
	var (
		mu   sync.Mutex
		kept []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(existsParallelism)

	for start := 0; start < len(fields); start += existsBatchSize {
		end := start + existsBatchSize
		if end > len(fields) {
			end = len(fields)
		}
		chunk := fields[start:end]

		g.Go(func() error {
			found, err := c.existsBatch(gctx, target, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			kept = append(kept, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(kept)
	return kept, nil
}

func (c *Client) existsBatch(ctx context.Context, target string, chunk []string) ([]string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, f := range chunk {
		if err := enc.Encode(map[string]any{}); err != nil {
			return nil, err
		}
		if err := enc.Encode(map[string]any{
			"size":  0,
			"query": map[string]any{"exists": map[string]any{"field": f}},
		}); err != nil {
			return nil, err
		}
	}

	raw, err := c.do(ctx, http.MethodPost, indexPath(constants.EndpointElasticMSearch, target), nil, buf.Bytes(), constants.HeaderContentNDJSON)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Responses []struct {
			Hits struct {
				Total json.RawMessage `json:"total"`
			} `json:"hits"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode _msearch response: %w", err)
	}

	var found []string
	for i, r := range resp.Responses {
		if i >= len(chunk) {
			break
		}
		// per-query errors leave total empty and are skipped
		if n, err := TotalHits(r.Hits.Total, HitsTotalAuto); err == nil && n > 0 {
			found = append(found, chunk[i])
		}
	}
	return found, nil
}

// GroupIndexName maps a concrete index name (data streams, versioned beats
// indexes, dated indexes) to a short group name such as "windows".
func GroupIndexName(index string) string {
	name := strings.TrimLeft(index, ".")

	if strings.HasPrefix(index, ".ds-") || strings.HasPrefix(name, "ds-") {
		noDS := strings.TrimLeft(strings.TrimPrefix(index, ".ds-"), ".")
		if tokens := splitTokens(noDS); len(tokens) > 0 {
			base := strings.ToLower(tokens[0])
			base = reVersionSeg.ReplaceAllString(base, "")
			return alias(base)
		}
	}

	name = reVersionSeg.ReplaceAllString(name, "-")
	tokens := splitTokens(name)
	if len(tokens) == 0 {
		return index
	}

	for _, t := range tokens {
		tl := strings.ToLower(t)
		if tl == "ds" || isDigits(tl) {
			continue
		}
		if tl == "*" || reDatePiece.MatchString(tl) || reTemplate.MatchString(tl) {
			continue
		}
		return alias(tl)
	}

	base := reTrailing.ReplaceAllString(strings.ToLower(tokens[0]), "")
	if base == "" {
		return index
	}
	return alias(base)
}

func alias(name string) string {
	if a, ok := commonAliases[name]; ok {
		return a
	}
	return name
}

func splitTokens(s string) []string {
	var out []string
	for _, t := range reTokenSplit.Split(s, -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GroupIndices buckets index names by GroupIndexName, keeping first-seen order.
func GroupIndices(indices []string) ([]string, map[string][]string) {
	var order []string
	groups := make(map[string][]string)
	for _, idx := range indices {
		g := GroupIndexName(idx)
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], idx)
	}
	return order, groups
}

// BuildCatalog discovers index groups and the fields that carry data in
// each, in the format read by the schema store. Groups that fail are logged
// and written with an empty field list.
func BuildCatalog(ctx context.Context, c *Client, logger zerolog.Logger) (schema.ElasticFile, error) {
	indices, err := c.CatIndices(ctx)
	if err != nil {
		return schema.ElasticFile{}, fmt.Errorf("list indices: %w", err)
	}

	order, groups := GroupIndices(indices)
	out := schema.ElasticFile{Indexes: make(map[string][]string, len(order))}

	for _, group := range order {
		log := logger.With().Str("group", group).Int("indices", len(groups[group])).Logger()

		target, fields := resolveGroupMapping(ctx, c, group, groups[group], log)
		if len(fields) == 0 {
			log.Warn().Msg("no mapped fields found for group")
			out.Indexes[group] = []string{}
			continue
		}

		used, err := c.FieldsWithData(ctx, target, fields)
		if err != nil {
			log.Error().Err(err).Msg("exists check failed")
			out.Indexes[group] = []string{}
			continue
		}
		log.Info().Int("mapped", len(fields)).Int("with_data", len(used)).Str("target", target).Msg("group processed")
		if used == nil {
			used = []string{}
		}
		out.Indexes[group] = used
	}
	return out, nil
}

// resolveGroupMapping tries <group>-*, then .ds-<group>-*, then an explicit
// list of the group's indices.
func resolveGroupMapping(ctx context.Context, c *Client, group string, indices []string, log zerolog.Logger) (string, []string) {
	explicit := indices
	if len(explicit) > maxExplicitList {
		explicit = explicit[:maxExplicitList]
	}
	candidates := []string{group + "-*", ".ds-" + group + "-*", strings.Join(explicit, ",")}

	for _, target := range candidates {
		fields, err := c.MappingFields(ctx, target)
		if err != nil {
			log.Debug().Err(err).Str("target", target).Msg("mapping lookup failed")
			continue
		}
		if len(fields) > 0 {
			return target, fields
		}
	}
	return "", nil
}
