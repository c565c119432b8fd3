package agent

import (
	"context"
	"fmt"
	"strings"

	"siem-mcp/internal/models"
	"siem-mcp/internal/prompts"
	"siem-mcp/internal/siemerr"
	"siem-mcp/internal/utils"
)

// splErrorPrefix marks an answer where the model declined to build SPL.
const splErrorPrefix = "ERROR:"

// QueryBuilder asks the model to choose where to search and to write the query.
type QueryBuilder struct {
	base
}

// ElasticQuery is a generated DSL query and the fields it references.
type ElasticQuery struct {
	Query  map[string]any `json:"query"`
	Fields []string       `json:"fields"`
}

// SplunkTarget is the index and source chosen for a Splunk search.
type SplunkTarget struct {
	Index  string `json:"index"`
	Source string `json:"source"`
}

// SelectElasticIndex picks one of indexes for intent. The answer must name an
// index from the list; case is ignored.
func (b *QueryBuilder) SelectElasticIndex(ctx context.Context, intent models.Intent, indexes []string) (string, error) {
	if len(indexes) == 0 {
		return "", siemerr.NotFound("no Elasticsearch indexes in the schema catalog", nil)
	}

	var answer struct {
		SelectedIndex string `json:"selected_index"`
		Reason        string `json:"reason"`
	}
	if err := b.askJSON(ctx, prompts.RoleElkIndex, map[string]any{
		"intent":  intent,
		"indexes": indexes,
	}, &answer); err != nil {
		return "", err
	}

	index, ok := pick(answer.SelectedIndex, indexes)
	if !ok {
		return "", siemerr.Model(fmt.Sprintf("model selected unknown index %q", answer.SelectedIndex), nil)
	}
	b.logger.Debug().Str("index", index).Str("reason", answer.Reason).Msg("index selected")
	return index, nil
}

// BuildElastic writes a DSL query for indexPattern using fields. examples may be empty.
func (b *QueryBuilder) BuildElastic(ctx context.Context, intent models.Intent, indexPattern string, fields []string, examples string) (ElasticQuery, error) {
	var answer ElasticQuery
	if err := b.askJSON(ctx, prompts.RoleElkQuery, map[string]any{
		"intent":        intent,
		"index_pattern": indexPattern,
		"fields":        fields,
		"examples":      examples,
	}, &answer); err != nil {
		return ElasticQuery{}, err
	}
	if len(answer.Query) == 0 {
		return ElasticQuery{}, siemerr.Model("model returned an empty query", nil)
	}

	// Some models answer with the full search body instead of the query object.
	if inner, ok := answer.Query["query"].(map[string]any); ok && len(answer.Query) == 1 {
		answer.Query = inner
	}
	return answer, nil
}

// SelectSplunkSource picks an index and a source from catalog (index to
// source names).
func (b *QueryBuilder) SelectSplunkSource(ctx context.Context, intent models.Intent, catalog map[string][]string) (SplunkTarget, error) {
	if len(catalog) == 0 {
		return SplunkTarget{}, siemerr.NotFound("no Splunk indexes in the schema catalog", nil)
	}

	var answer SplunkTarget
	if err := b.askJSON(ctx, prompts.RoleSplSource, map[string]any{
		"intent":  intent,
		"catalog": catalog,
	}, &answer); err != nil {
		return SplunkTarget{}, err
	}

	indexes := make([]string, 0, len(catalog))
	for name := range catalog {
		indexes = append(indexes, name)
	}
	index, ok := pick(answer.Index, indexes)
	if !ok {
		return SplunkTarget{}, siemerr.Model(fmt.Sprintf("model selected unknown index %q", answer.Index), nil)
	}
	source, ok := pick(answer.Source, catalog[index])
	if !ok {
		return SplunkTarget{}, siemerr.Model(fmt.Sprintf("model selected unknown source %q in index %s", answer.Source, index), nil)
	}
	return SplunkTarget{Index: index, Source: source}, nil
}

// BuildSplunk writes an SPL query. A model refusal ("ERROR: Cannot build
// query - ...") is returned as a model error carrying the reason.
func (b *QueryBuilder) BuildSplunk(ctx context.Context, intent models.Intent, target SplunkTarget, fields []string, examples string) (string, error) {
	text, err := b.ask(ctx, prompts.RoleSplQuery, map[string]any{
		"intent":   intent,
		"index":    target.Index,
		"source":   target.Source,
		"fields":   fields,
		"examples": examples,
	}, false)
	if err != nil {
		return "", err
	}

	spl := strings.TrimSpace(utils.StripCodeFence(text))
	if strings.HasPrefix(strings.ToUpper(spl), splErrorPrefix) {
		return "", siemerr.Model(strings.TrimSpace(spl[len(splErrorPrefix):]), nil)
	}
	if spl == "" {
		return "", siemerr.Model("model returned an empty SPL query", nil)
	}
	return spl, nil
}

func pick(name string, options []string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, o := range options {
		if o == name {
			return o, true
		}
	}
	for _, o := range options {
		if strings.EqualFold(o, name) {
			return o, true
		}
	}
	return "", false
}
