package schema

import (
	"siem-mcp/internal/models"
)

// VerifyFields splits proposed fields into those present in the catalog for
// index and those that are not. For Splunk a field is known if any source of
// the index lists it. Duplicates are reported once, in input order.
func (s *Store) VerifyFields(backend models.Backend, index string, fields []string) (known, unknown []string, err error) {
	available := make(map[string]struct{})

	switch backend {
	case models.BackendElastic:
		list, err := s.GetElasticFields(index)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range list {
			available[f] = struct{}{}
		}
	default:
		sources, err := s.GetSplunkSources(index)
		if err != nil {
			return nil, nil, err
		}
		for _, list := range sources {
			for _, f := range list {
				available[f] = struct{}{}
			}
		}
	}

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		if _, ok := available[f]; ok {
			known = append(known, f)
		} else {
			unknown = append(unknown, f)
		}
	}
	return known, unknown, nil
}
