package schema

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"siem-mcp/internal/models"
	"siem-mcp/internal/siemerr"
)

// Store serves the pre-built schema catalogs. Catalogs are loaded lazily,
// cached read-only and reloaded when the underlying file changes on disk.
type Store struct {
	elasticPath string
	splunkPath  string

	mu          sync.RWMutex
	elastic     *ElasticCatalog
	elasticStat fileStamp
	splunk      *SplunkCatalog
	splunkStat  fileStamp
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// NewStore creates a Store for the given catalog files.
func NewStore(elasticPath, splunkPath string) *Store {
	return &Store{elasticPath: elasticPath, splunkPath: splunkPath}
}

// ListIndexes returns the index names of a backend's catalog in file order.
func (s *Store) ListIndexes(backend models.Backend) ([]string, error) {
	switch backend {
	case models.BackendElastic:
		cat, err := s.Elastic()
		if err != nil {
			return nil, err
		}
		return append([]string(nil), cat.Order...), nil
	case models.BackendSplunk:
		cat, err := s.Splunk()
		if err != nil {
			return nil, err
		}
		return append([]string(nil), cat.Order...), nil
	default:
		return nil, siemerr.Config(fmt.Sprintf("unknown backend %q", backend), nil)
	}
}

// GetElasticFields returns the fields of an Elasticsearch index. An unknown
// index yields an empty slice and no error.
func (s *Store) GetElasticFields(index string) ([]string, error) {
	cat, err := s.Elastic()
	if err != nil {
		return nil, err
	}
	return append([]string{}, cat.Fields[index]...), nil
}

// GetSplunkSources returns source → fields for a Splunk index. An unknown
// index yields an empty map and no error.
func (s *Store) GetSplunkSources(index string) (map[string][]string, error) {
	cat, err := s.Splunk()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(cat.Sources[index]))
	for src, fields := range cat.Sources[index] {
		out[src] = append([]string(nil), fields...)
	}
	return out, nil
}

// GetFields returns the schema fragment for an index. Elasticsearch indexes
// map to a field list; Splunk indexes map to source → fields.
func (s *Store) GetFields(backend models.Backend, index string) (any, error) {
	switch backend {
	case models.BackendElastic:
		return s.GetElasticFields(index)
	case models.BackendSplunk:
		return s.GetSplunkSources(index)
	default:
		return nil, siemerr.Config(fmt.Sprintf("unknown backend %q", backend), nil)
	}
}

// SplunkSourceNames lists an index's sources in sorted order.
func (s *Store) SplunkSourceNames(index string) ([]string, error) {
	sources, err := s.GetSplunkSources(index)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sources))
	for src := range sources {
		names = append(names, src)
	}
	sort.Strings(names)
	return names, nil
}

// Elastic returns the current Elasticsearch catalog.
func (s *Store) Elastic() (*ElasticCatalog, error) {
	stamp, err := stat(s.elasticPath)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.elastic != nil && s.elasticStat == stamp {
		cat := s.elastic
		s.mu.RUnlock()
		return cat, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.elastic != nil && s.elasticStat == stamp {
		return s.elastic, nil
	}

	data, err := os.ReadFile(s.elasticPath)
	if err != nil {
		return nil, siemerr.NotFound(fmt.Sprintf("read elasticsearch schema %s", s.elasticPath), err)
	}
	cat, err := parseElastic(data)
	if err != nil {
		return nil, siemerr.NotFound(fmt.Sprintf("parse elasticsearch schema %s", s.elasticPath), err)
	}
	s.elastic, s.elasticStat = cat, stamp
	return cat, nil
}

// Splunk returns the current Splunk catalog.
func (s *Store) Splunk() (*SplunkCatalog, error) {
	stamp, err := stat(s.splunkPath)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.splunk != nil && s.splunkStat == stamp {
		cat := s.splunk
		s.mu.RUnlock()
		return cat, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.splunk != nil && s.splunkStat == stamp {
		return s.splunk, nil
	}

	data, err := os.ReadFile(s.splunkPath)
	if err != nil {
		return nil, siemerr.NotFound(fmt.Sprintf("read splunk schema %s", s.splunkPath), err)
	}
	cat, err := parseSplunk(data)
	if err != nil {
		return nil, siemerr.NotFound(fmt.Sprintf("parse splunk schema %s", s.splunkPath), err)
	}
	s.splunk, s.splunkStat = cat, stamp
	return cat, nil
}

func stat(path string) (fileStamp, error) {
	if path == "" {
		return fileStamp{}, siemerr.NotFound("schema file path not configured", nil)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, siemerr.NotFound(fmt.Sprintf("schema file %s", path), err)
	}
	return fileStamp{modTime: fi.ModTime(), size: fi.Size()}, nil
}
