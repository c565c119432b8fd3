package elastic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestGroupIndexName(t *testing.T) {
	tests := []struct {
		index string
		want  string
	}{
		{".ds-filebeat-8.11.0-2024.01.01-000001", "filebeat"},
		{".ds-logs-2024.01.01-000001", "logs"},
		{"winlogbeat-7.17.0-2024.01.01", "windows"},
		{"linux-2024.01.01", "linux"},
		{"zeek_conn", "zeek"},
		{"2024-security", "security"},
		{"iis-logs", "windows"},
		{"suricata", "suricata"},
	}
	for _, tt := range tests {
		if got := GroupIndexName(tt.index); got != tt.want {
			t.Errorf("GroupIndexName(%q) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestGroupIndicesKeepsFirstSeenOrder(t *testing.T) {
	order, groups := GroupIndices([]string{"linux-2024.01.01", "winlogbeat-7.17.0-2024.01.01", "linux-2024.01.02"})
	if !reflect.DeepEqual(order, []string{"linux", "windows"}) {
		t.Errorf("order = %v", order)
	}
	if len(groups["linux"]) != 2 || len(groups["windows"]) != 1 {
		t.Errorf("groups = %v", groups)
	}
}

const sampleMapping = `{
  "windows-000001": {
    "mappings": {
      "properties": {
        "@timestamp": {"type": "date"},
        "user": {"properties": {"name": {"type": "text", "fields": {"keyword": {"type": "keyword"}}}}},
        "message": {"type": "text", "fields": {"raw": {"type": "keyword"}}}
      }
    }
  }
}`

func TestMappingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/windows-*/_mapping" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleMapping))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL}, nil)
	fields, err := client.MappingFields(context.Background(), "windows-*")
	if err != nil {
		t.Fatalf("MappingFields: %v", err)
	}
	want := []string{"@timestamp", "message", "message.raw", "user", "user.name"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}

	if _, err := client.MappingFields(context.Background(), "missing-*"); err == nil {
		t.Error("expected error for missing index")
	}
}

// msearchHandler answers exists queries, reporting data for fields in populated.
func msearchHandler(t *testing.T, populated map[string]bool, calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Errorf("content type = %q", ct)
		}

		var responses []string
		scanner := bufio.NewScanner(r.Body)
		line := 0
		for scanner.Scan() {
			line++
			if line%2 == 1 {
				continue
			}
			var q struct {
				Query struct {
					Exists struct {
						Field string `json:"field"`
					} `json:"exists"`
				} `json:"query"`
			}
			json.Unmarshal(scanner.Bytes(), &q)
			total := 0
			if populated[q.Query.Exists.Field] {
				total = 1
			}
			responses = append(responses, fmt.Sprintf(`{"hits":{"total":{"value":%d,"relation":"eq"},"hits":[]}}`, total))
		}
		fmt.Fprintf(w, `{"responses":[%s]}`, strings.Join(responses, ","))
	}
}

func TestFieldsWithDataBatches(t *testing.T) {
	var fields []string
	populated := map[string]bool{}
	for i := 0; i < 120; i++ {
		f := fmt.Sprintf("field_%03d", i)
		fields = append(fields, f)
		if i%10 == 0 {
			populated[f] = true
		}
	}

	var calls int32
	server := httptest.NewServer(msearchHandler(t, populated, &calls))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL}, nil)
	kept, err := client.FieldsWithData(context.Background(), "windows-*", fields)
	if err != nil {
		t.Fatalf("FieldsWithData: %v", err)
	}
	if len(kept) != 12 {
		t.Errorf("kept %d fields, want 12: %v", len(kept), kept)
	}
	if kept[0] != "field_000" || kept[11] != "field_110" {
		t.Errorf("kept not sorted: %v", kept)
	}
	if calls != 3 {
		t.Errorf("expected 3 _msearch batches, got %d", calls)
	}
}

func TestBuildCatalog(t *testing.T) {
	var calls int32
	msearch := msearchHandler(t, map[string]bool{"@timestamp": true, "user.name": true}, &calls)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/_cat/indices":
			w.Write([]byte(`[{"index":"winlogbeat-7.17.0-2024.01.01"},{"index":"linux-2024.01.01"},{"index":"empty-2024.01.01"}]`))
		case r.URL.Path == "/winlogbeat-7.17.0-2024.01.01/_mapping", r.URL.Path == "/linux-*/_mapping":
			w.Write([]byte(sampleMapping))
		case strings.HasSuffix(r.URL.Path, "/_mapping"):
			http.NotFound(w, r)
		case strings.HasSuffix(r.URL.Path, "/_msearch"):
			msearch(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL}, nil)
	catalog, err := BuildCatalog(context.Background(), client, zerolog.Nop())
	if err != nil {
		t.Fatalf("BuildCatalog: %v", err)
	}

	want := []string{"@timestamp", "user.name"}
	if !reflect.DeepEqual(catalog.Indexes["windows"], want) {
		t.Errorf("windows fields = %v, want %v", catalog.Indexes["windows"], want)
	}
	if !reflect.DeepEqual(catalog.Indexes["linux"], want) {
		t.Errorf("linux fields = %v, want %v", catalog.Indexes["linux"], want)
	}
	if fields, ok := catalog.Indexes["empty"]; !ok || len(fields) != 0 {
		t.Errorf("empty group should be present with no fields, got %v (present=%v)", fields, ok)
	}
}
