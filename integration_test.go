package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"siem-mcp/internal/models"
	"siem-mcp/internal/pipeline"

	last9mcp "github.com/last9/mcp-go-sdk/mcp"
	"github.com/rs/zerolog"
)

// MockElastic simulates the Elasticsearch search API.
type MockElastic struct {
	*httptest.Server
	mu       sync.Mutex
	Searches []string
}

func NewMockElastic() *MockElastic {
	mock := &MockElastic{}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/_search") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"no handler"}`))
			return
		}
		mock.mu.Lock()
		mock.Searches = append(mock.Searches, r.URL.Path)
		mock.mu.Unlock()

		source := map[string]any{"host": map[string]any{"name": "pc-001"}, "process": map[string]any{"name": "powershell.exe"}}
		resp := map[string]any{
			"took": 3,
			"hits": map[string]any{
				"total": map[string]any{"value": 2, "relation": "eq"},
				"hits": []map[string]any{
					{"_index": "windows-2025.01.01", "_source": source},
					{"_index": "windows-2025.01.01", "_source": source},
				},
			},
		}
		// Honour the one filter_path the executor sends
		if r.URL.Query().Get("filter_path") == "hits.hits._source" {
			resp = map[string]any{"hits": map[string]any{"hits": []map[string]any{{"_source": source}, {"_source": source}}}}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	return mock
}

// MockModel simulates an OpenAI-compatible chat completions endpoint that
// answers from a script, one answer per request.
type MockModel struct {
	*httptest.Server
	mu      sync.Mutex
	answers []string
	Prompts []string
}

func NewMockModel(answers ...string) *MockModel {
	mock := &MockModel{answers: answers}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.Prompts = append(mock.Prompts, string(body))
		answer := "unexpected call"
		if len(mock.answers) > 0 {
			answer, mock.answers = mock.answers[0], mock.answers[1:]
		}
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": answer},
			}},
		})
	}))
	return mock
}

// createTestConfig returns a configuration against the mocks with every
// file under a temporary directory.
func createTestConfig(t *testing.T, es *MockElastic, model *MockModel) models.Config {
	t.Helper()
	dir := t.TempDir()

	elk := filepath.Join(dir, "ELK_schema.json")
	catalog := `{"indexes": {"windows": ["@timestamp", "host.name", "process.name"]}}`
	if err := os.WriteFile(elk, []byte(catalog), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := setupConfig([]string{
		"-elastic_url", es.URL,
		"-elastic_schema", elk,
		"-splunk_schema", filepath.Join(dir, "Splunk_schema.json"),
		"-results_dir", filepath.Join(dir, "logs"),
		"-results_db", filepath.Join(dir, "logs", "results.db"),
		"-rate", "100",
		"-burst", "10",
	})
	if err != nil {
		t.Fatalf("setupConfig: %v", err)
	}
	if model != nil {
		cfg.LLMProvider = "openai_compatible"
		cfg.LLMBaseURL = model.URL
		cfg.LLMAPIKey = "test-key"
		cfg.LLMModel = "test-model"
	}
	return cfg
}

// TestMCPServerIntegration tests building the server and registering tools
func TestMCPServerIntegration(t *testing.T) {
	es := NewMockElastic()
	defer es.Close()

	a, err := newApp(createTestConfig(t, es, nil), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	server, err := last9mcp.NewServer("siem-mcp-test", "test-version")
	if err != nil {
		t.Fatalf("Failed to create MCP server: %v", err)
	}
	if err := registerAllTools(server, a); err != nil {
		t.Fatalf("Failed to register tools: %v", err)
	}
	registerAllPrompts(server, a.prompts)

	if a.runner != nil {
		t.Error("pipeline should be disabled without a language model")
	}
	if a.splunk != nil || a.retriever != nil {
		t.Error("splunk and retrieval should be disabled without settings")
	}
	if a.ledger == nil {
		t.Error("ledger should be open")
	}
}

// TestAskElasticsearchEndToEnd runs a question through the model, the schema
// catalog, Elasticsearch, the saver, the ledger and the report step.
func TestAskElasticsearchEndToEnd(t *testing.T) {
	es := NewMockElastic()
	defer es.Close()
	model := NewMockModel(
		`{"intent":"search","target":{"type":"host","value":"PC-001"},"time_range":{"start":"now-7d","end":"now"},"keywords":["powershell"]}`,
		"```json\n{\"selected_index\": \"windows\", \"reason\": \"process events\"}\n```",
		`{"query":{"bool":{"must":[{"match":{"process.name":"powershell"}}],"filter":[{"term":{"host.name":"pc-001"}},{"range":{"@timestamp":{"gte":"now-7d","lte":"now"}}}]}},"fields":["process.name","host.name"]}`,
		"## Overview\nTwo PowerShell executions on pc-001.",
	)
	defer model.Close()

	a, err := newApp(createTestConfig(t, es, model), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	if a.runner == nil {
		t.Fatal("pipeline should be enabled")
	}

	ctx := context.Background()
	run := a.runner.RunElastic(ctx, "PowerShell on PC-001 in the last 7 days")
	if run.Error != nil {
		t.Fatalf("run failed at %s: %+v", run.Stage, run.Error)
	}
	if run.IndexPattern != "windows-*" {
		t.Errorf("index pattern = %q", run.IndexPattern)
	}
	if len(es.Searches) != 1 || es.Searches[0] != "/windows-*/_search" {
		t.Errorf("searches = %v", es.Searches)
	}
	if run.Outcome == nil || run.Outcome.TotalHits != 2 || !run.Outcome.HasData {
		t.Fatalf("outcome = %+v", run.Outcome)
	}
	if _, err := os.Stat(run.SavedFile); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}

	records, err := a.ledger.List(ctx, "elk", 10)
	if err != nil || len(records) != 1 || records[0].Path != run.SavedFile {
		t.Fatalf("ledger = %+v, %v", records, err)
	}
	if records[0].Count != 2 {
		t.Errorf("ledger count = %d, want 2", records[0].Count)
	}

	// The query comes from the ledger when the caller only passes the file
	rep := a.runner.Summarize(ctx, pipeline.SummaryRequest{SavedFile: run.SavedFile})
	if rep.Error != nil {
		t.Fatalf("summarize failed: %+v", rep.Error)
	}
	if !strings.Contains(rep.Markdown, "Two PowerShell executions") {
		t.Errorf("report = %q", rep.Markdown)
	}
	if rep.Query == "" {
		t.Error("report query should be filled from the ledger")
	}
	if len(model.Prompts) != 4 {
		t.Errorf("model calls = %d, want 4", len(model.Prompts))
	}
}

// TestErrorHandling tests failures surfaced from the backend
func TestErrorHandling(t *testing.T) {
	es := NewMockElastic()
	defer es.Close()
	model := NewMockModel(
		`{"intent":"search","keywords":["powershell"]}`,
		`{"selected_index":"linux"}`,
	)
	defer model.Close()

	a, err := newApp(createTestConfig(t, es, model), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	run := a.runner.RunElastic(context.Background(), "powershell anywhere")
	if run.Error == nil || run.Stage != pipeline.StageSelect {
		t.Fatalf("expected an index selection failure, got %+v", run)
	}
	if len(es.Searches) != 0 {
		t.Error("no search should run after a failed index selection")
	}
}
