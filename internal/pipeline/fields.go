package pipeline

import (
	"regexp"
	"sort"
	"strings"
)

// DSL clauses whose object keys are field names.
var fieldKeyedClauses = map[string]bool{
	"term":                true,
	"terms":               true,
	"match":               true,
	"match_phrase":        true,
	"match_phrase_prefix": true,
	"match_bool_prefix":   true,
	"wildcard":            true,
	"prefix":              true,
	"regexp":              true,
	"fuzzy":               true,
	"range":               true,
}

// clause options that sit next to field names
var clauseOptions = map[string]bool{
	"boost":            true,
	"_name":            true,
	"case_insensitive": true,
}

// ElasticQueryFields lists the field names a DSL query object references in
// its leaf clauses, sorted and without the .keyword suffix. Wildcard field
// names are skipped.
func ElasticQueryFields(query map[string]any) []string {
	seen := make(map[string]struct{})
	collectElasticFields(query, seen)
	return sortedKeys(seen)
}

func collectElasticFields(v any, seen map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			switch {
			case fieldKeyedClauses[k]:
				if m, ok := inner.(map[string]any); ok {
					for field := range m {
						if !clauseOptions[field] {
							addField(seen, field)
						}
					}
				}
			case k == "exists":
				if m, ok := inner.(map[string]any); ok {
					if f, ok := m["field"].(string); ok {
						addField(seen, f)
					}
				}
			case k == "multi_match" || k == "query_string" || k == "simple_query_string":
				if m, ok := inner.(map[string]any); ok {
					if list, ok := m["fields"].([]any); ok {
						for _, f := range list {
							if s, ok := f.(string); ok {
								addField(seen, strings.SplitN(s, "^", 2)[0])
							}
						}
					}
					if f, ok := m["default_field"].(string); ok {
						addField(seen, f)
					}
				}
			default:
				collectElasticFields(inner, seen)
			}
		}
	case []any:
		for _, item := range t {
			collectElasticFields(item, seen)
		}
	}
}

func addField(seen map[string]struct{}, field string) {
	field = strings.TrimSuffix(strings.TrimSpace(field), ".keyword")
	if field == "" || strings.Contains(field, "*") {
		return
	}
	seen[field] = struct{}{}
}

var (
	splQuoted     = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	splComparison = regexp.MustCompile(`(?:^|[\s(])([A-Za-z_][\w.:-]*)\s*(?:!=|<=|>=|=|<|>)`)
	splIn         = regexp.MustCompile(`(?i)(?:^|[\s(])([A-Za-z_][\w.:-]*)\s+IN\s*\(`)
)

// Fields every Splunk event carries, plus time modifiers.
var splunkBuiltinFields = map[string]bool{
	"index":           true,
	"source":          true,
	"sourcetype":      true,
	"host":            true,
	"earliest":        true,
	"latest":          true,
	"_time":           true,
	"_raw":            true,
	"_index_earliest": true,
	"_index_latest":   true,
	"eventtype":       true,
	"tag":             true,
	"linecount":       true,
	"punct":           true,
	"splunk_server":   true,
}

// SplunkSearchFields lists the fields compared in the base search of an SPL
// query, that is the part before the first pipe. Quoted terms, time
// modifiers and default fields are ignored.
func SplunkSearchFields(spl string) []string {
	base := splQuoted.ReplaceAllString(spl, `""`)
	if i := strings.Index(base, "|"); i >= 0 {
		base = base[:i]
	}

	seen := make(map[string]struct{})
	for _, re := range []*regexp.Regexp{splComparison, splIn} {
		for _, m := range re.FindAllStringSubmatch(base, -1) {
			name := m[1]
			if splunkBuiltinFields[strings.ToLower(name)] || strings.HasPrefix(name, "date_") {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, f := range a {
		addField(seen, f)
	}
	for _, f := range b {
		addField(seen, f)
	}
	return sortedKeys(seen)
}
