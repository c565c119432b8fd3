package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ElasticCatalog maps index names to the field paths known to hold data.
type ElasticCatalog struct {
	Order  []string
	Fields map[string][]string
}

// SplunkCatalog maps index → source → field names.
type SplunkCatalog struct {
	Order   []string
	Sources map[string]map[string][]string
}

// ElasticFile is the on-disk shape written by the schema builder.
type ElasticFile struct {
	Indexes map[string][]string `json:"indexes"`
}

// SplunkFile is the on-disk shape written by the schema builder.
type SplunkFile struct {
	Indexes map[string]SplunkIndexEntry `json:"indexes"`
}

type SplunkIndexEntry struct {
	Source map[string]SplunkSourceEntry `json:"source"`
}

type SplunkSourceEntry struct {
	Fields []string `json:"fields"`
}

func parseElastic(data []byte) (*ElasticCatalog, error) {
	raw, err := indexesObject(data)
	if err != nil {
		return nil, err
	}
	order, err := objectKeys(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string][]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode elasticsearch indexes: %w", err)
	}

	cat := &ElasticCatalog{Order: order, Fields: make(map[string][]string, len(fields))}
	for idx, list := range fields {
		cat.Fields[idx] = dropKeywordFields(list)
	}
	return cat, nil
}

func parseSplunk(data []byte) (*SplunkCatalog, error) {
	raw, err := indexesObject(data)
	if err != nil {
		return nil, err
	}
	order, err := objectKeys(raw)
	if err != nil {
		return nil, err
	}

	var entries map[string]SplunkIndexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode splunk indexes: %w", err)
	}

	cat := &SplunkCatalog{Sources: make(map[string]map[string][]string, len(entries))}
	for _, idx := range order {
		sources := make(map[string][]string)
		for src, entry := range entries[idx].Source {
			if len(entry.Fields) == 0 {
				continue
			}
			sources[src] = entry.Fields
		}
		if len(sources) == 0 {
			continue
		}
		cat.Order = append(cat.Order, idx)
		cat.Sources[idx] = sources
	}
	return cat, nil
}

// PruneSplunk drops sources with no fields and indexes left with no sources.
func PruneSplunk(f SplunkFile) SplunkFile {
	out := SplunkFile{Indexes: make(map[string]SplunkIndexEntry)}
	for idx, entry := range f.Indexes {
		kept := make(map[string]SplunkSourceEntry)
		for src, s := range entry.Source {
			if len(s.Fields) > 0 {
				kept[src] = s
			}
		}
		if len(kept) > 0 {
			out.Indexes[idx] = SplunkIndexEntry{Source: kept}
		}
	}
	return out
}

func dropKeywordFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.Contains(f, ".keyword") {
			continue
		}
		out = append(out, f)
	}
	return out
}

func indexesObject(data []byte) (json.RawMessage, error) {
	var envelope struct {
		Indexes json.RawMessage `json:"indexes"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode schema file: %w", err)
	}
	if len(envelope.Indexes) == 0 || string(envelope.Indexes) == "null" {
		return nil, fmt.Errorf(`schema file has no "indexes" object`)
	}
	return envelope.Indexes, nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf(`"indexes" must be an object`)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
