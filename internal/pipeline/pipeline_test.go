package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"siem-mcp/internal/agent"
	"siem-mcp/internal/elastic"
	"siem-mcp/internal/llm"
	"siem-mcp/internal/prompts"
	"siem-mcp/internal/results"
	"siem-mcp/internal/retrieval"
	"siem-mcp/internal/schema"
	"siem-mcp/internal/siemerr"
	"siem-mcp/internal/splunk"

	"github.com/rs/zerolog"
)

const elasticCatalog = `{"indexes": {
  "windows": ["@timestamp", "process.name", "host.name"],
  "linux": ["@timestamp", "user.name"]
}}`

const splunkCatalog = `{"indexes": {
  "wineventlog": {"source": {
    "XmlWinEventLog:Security": {"fields": ["EventCode", "user", "src_ip"]}
  }}
}}`

type scriptedProvider struct {
	answers  []string
	requests []llm.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	p.requests = append(p.requests, req)
	if len(p.requests) > len(p.answers) {
		return "", errors.New("no scripted answer left")
	}
	return p.answers[len(p.requests)-1], nil
}

type fakeElastic struct {
	requests []elastic.QueryRequest
	outcome  elastic.SearchOutcome
}

func (f *fakeElastic) Execute(_ context.Context, req elastic.QueryRequest) elastic.SearchOutcome {
	f.requests = append(f.requests, req)
	out := f.outcome
	out.IndexPattern = req.IndexPattern
	out.Query = req.QueryBody
	return out
}

type fakeSplunk struct {
	queries []string
	result  splunk.JobResult
	err     error
}

func (f *fakeSplunk) Execute(_ context.Context, query string, _ int) (splunk.JobResult, error) {
	f.queries = append(f.queries, query)
	res := f.result
	res.Query = splunk.RepairQuery(query)
	return res, f.err
}

type fakeRetriever struct {
	hits []retrieval.Hit
	err  error
}

func (f fakeRetriever) Search(context.Context, string, int) ([]retrieval.Hit, error) {
	return f.hits, f.err
}

type harness struct {
	runner   *Runner
	provider *scriptedProvider
	elastic  *fakeElastic
	splunk   *fakeSplunk
	ledger   *results.Ledger
	saver    *results.Saver
}

func newHarness(t *testing.T, retriever retrieval.Searcher, answers ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	elk := filepath.Join(dir, "ELK_schema.json")
	spl := filepath.Join(dir, "Splunk_schema.json")
	if err := os.WriteFile(elk, []byte(elasticCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(spl, []byte(splunkCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := prompts.Load()
	if err != nil {
		t.Fatal(err)
	}
	ledger, err := results.OpenLedger(filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })

	h := &harness{
		provider: &scriptedProvider{answers: answers},
		elastic:  &fakeElastic{},
		splunk:   &fakeSplunk{},
		ledger:   ledger,
		saver:    results.NewSaver(filepath.Join(dir, "logs")),
	}
	h.runner = New(Options{
		Schema:    schema.NewStore(elk, spl),
		Agents:    agent.NewSet(h.provider, lib, zerolog.Nop()),
		Elastic:   h.elastic,
		Splunk:    h.splunk,
		Retriever: retriever,
		Ledger:    ledger,
		Results:   h.saver,
		Logger:    zerolog.Nop(),
	})
	return h
}

const intentAnswer = `{"intent":"search","target":{"type":"host","value":"PC-001"},"time_range":{"start":"now-7d","end":"now"},"keywords":["powershell"]}`

func TestRunElastic(t *testing.T) {
	h := newHarness(t, fakeRetriever{hits: []retrieval.Hit{{ID: "1", Score: 0.8, Text: "match on process.name"}}},
		intentAnswer,
		`{"selected_index":"windows","reason":"process events"}`,
		`{"query":{"bool":{"must":[{"match":{"process.name":"powershell"}}],"filter":[{"term":{"host.name.keyword":"pc-001"}},{"range":{"@timestamp":{"gte":"now-7d","lte":"now"}}}]}},"fields":["process.name"]}`,
	)
	h.elastic.outcome = elastic.SearchOutcome{HasData: true, TotalHits: 4, SavedFile: "logs/elk_log_1.json"}

	run := h.runner.RunElastic(context.Background(), "PowerShell on PC-001 last 7 days")
	if run.Error != nil {
		t.Fatalf("run failed at %s: %+v", run.Stage, run.Error)
	}
	if run.Stage != StageComplete || run.Index != "windows" || run.IndexPattern != "windows-*" {
		t.Errorf("run = %+v", run)
	}
	if run.SavedFile != "logs/elk_log_1.json" {
		t.Errorf("saved file = %q", run.SavedFile)
	}
	if strings.Join(run.Fields, ",") != "@timestamp,host.name,process.name" {
		t.Errorf("fields = %v", run.Fields)
	}

	if len(h.elastic.requests) != 1 {
		t.Fatalf("expected one search, got %d", len(h.elastic.requests))
	}
	req := h.elastic.requests[0]
	if req.IndexPattern != "windows-*" || req.Size != 100 || !req.OnlySource {
		t.Errorf("request = %+v", req)
	}

	buildPrompt := h.provider.requests[2].Prompt
	if !strings.Contains(buildPrompt, "match on process.name") || !strings.Contains(buildPrompt, "VERIFIED FIELDS: @timestamp, process.name, host.name") {
		t.Errorf("build prompt missing examples or fields:\n%s", buildPrompt)
	}

	recs, err := h.ledger.List(context.Background(), "elk", 10)
	if err != nil || len(recs) != 1 || recs[0].Count != 4 {
		t.Errorf("ledger = %+v, %v", recs, err)
	}
}

func TestRunElasticRejectsFabricatedFields(t *testing.T) {
	h := newHarness(t, nil,
		intentAnswer,
		`{"selected_index":"windows"}`,
		`{"query":{"term":{"process.parent.name":"cmd.exe"}},"fields":["process.parent.name"]}`,
	)

	run := h.runner.RunElastic(context.Background(), "cmd spawned by powershell")
	if run.Stage != StageVerify || run.Error == nil {
		t.Fatalf("expected field verification failure, got %+v", run)
	}
	if run.Error.Kind != string(siemerr.KindModel) || !strings.Contains(run.Error.Message, "process.parent.name") {
		t.Errorf("error = %+v", run.Error)
	}
	if len(h.elastic.requests) != 0 {
		t.Error("query with unknown fields must not be executed")
	}
}

func TestRunElasticStages(t *testing.T) {
	t.Run("intent failure", func(t *testing.T) {
		h := newHarness(t, nil, "not json at all")
		run := h.runner.RunElastic(context.Background(), "anything")
		if run.Stage != StageIntent || run.Error == nil || run.Intent != nil {
			t.Errorf("run = %+v", run)
		}
	})

	t.Run("index without fields", func(t *testing.T) {
		h := newHarness(t, nil, intentAnswer, `{"selected_index":"linux"}`)
		h.runner.opts.Schema = schema.NewStore(writeCatalog(t, `{"indexes":{"linux":[]}}`), "")
		run := h.runner.RunElastic(context.Background(), "sudo use")
		if run.Stage != StageFields || run.Error.Kind != string(siemerr.KindNotFound) {
			t.Errorf("run = %+v", run)
		}
	})

	t.Run("retrieval failure is not fatal", func(t *testing.T) {
		h := newHarness(t, fakeRetriever{err: siemerr.Transport("qdrant down", nil)},
			intentAnswer,
			`{"selected_index":"windows"}`,
			`{"query":{"match":{"process.name":"powershell"}},"fields":["process.name"]}`,
		)
		run := h.runner.RunElastic(context.Background(), "powershell")
		if run.Error != nil {
			t.Errorf("run failed: %+v", run.Error)
		}
	})

	t.Run("search error", func(t *testing.T) {
		h := newHarness(t, nil,
			intentAnswer,
			`{"selected_index":"windows"}`,
			`{"query":{"match":{"process.name":"powershell"}},"fields":[]}`,
		)
		h.elastic.outcome = elastic.SearchOutcome{Error: &elastic.OutcomeError{Kind: elastic.ErrKindHTTP, Detail: "status 400"}}
		run := h.runner.RunElastic(context.Background(), "powershell")
		if run.Stage != StageExecute || run.Error.Kind != elastic.ErrKindHTTP || run.Outcome == nil {
			t.Errorf("run = %+v", run)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, nil)
		h.runner.opts.Elastic = nil
		run := h.runner.RunElastic(context.Background(), "powershell")
		if run.Error == nil || run.Error.Kind != string(siemerr.KindConfig) {
			t.Errorf("run = %+v", run)
		}
	})
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSplunk(t *testing.T) {
	h := newHarness(t, nil,
		intentAnswer,
		`{"index":"wineventlog","source":"XmlWinEventLog:Security"}`,
		"search index=wineventlog source=\\\"XmlWinEventLog:Security\\\" earliest=-7d EventCode=4625 user=admin | stats count by src_ip",
	)
	h.splunk.result = splunk.JobResult{ResultsCount: 2, SavedFile: "logs/log_1.json"}

	run := h.runner.RunSplunk(context.Background(), "failed logons for admin")
	if run.Error != nil {
		t.Fatalf("run failed at %s: %+v", run.Stage, run.Error)
	}
	wantQuery := `search index=wineventlog source="XmlWinEventLog:Security" earliest=-7d EventCode=4625 "*admin*" | stats count by src_ip`
	if run.Query != wantQuery {
		t.Errorf("query = %q\nwant    %q", run.Query, wantQuery)
	}
	if len(h.splunk.queries) != 1 || splunk.RepairQuery(h.splunk.queries[0]) != wantQuery {
		t.Errorf("executed = %v", h.splunk.queries)
	}
	if strings.Join(run.Fields, ",") != "EventCode" {
		t.Errorf("fields = %v", run.Fields)
	}

	srcPrompt := h.provider.requests[1].Prompt
	if !strings.Contains(srcPrompt, "XmlWinEventLog:Security") {
		t.Errorf("source prompt missing catalog:\n%s", srcPrompt)
	}

	recs, _ := h.ledger.List(context.Background(), "splunk", 10)
	if len(recs) != 1 || recs[0].Query != wantQuery {
		t.Errorf("ledger = %+v", recs)
	}
}

func TestRunSplunkRepeatedSoftField(t *testing.T) {
	h := newHarness(t, nil,
		intentAnswer,
		`{"index":"wineventlog","source":"XmlWinEventLog:Security"}`,
		`search index=wineventlog source="XmlWinEventLog:Security" user=alice user=bob`,
	)
	h.splunk.result = splunk.JobResult{ResultsCount: 1, SavedFile: "logs/log_2.json"}

	run := h.runner.RunSplunk(context.Background(), "logons by alice or bob")
	if run.Error != nil {
		t.Fatalf("run failed at %s: %+v", run.Stage, run.Error)
	}
	if run.Result == nil || run.Query != run.Result.Query {
		t.Fatalf("reported query %q differs from executed %+v", run.Query, run.Result)
	}
	want := `search index=wineventlog source="XmlWinEventLog:Security" user=bob "*alice*"`
	if run.Query != want {
		t.Errorf("query = %q\nwant    %q", run.Query, want)
	}
	if strings.Join(run.Fields, ",") != "user" {
		t.Errorf("fields = %v", run.Fields)
	}

	recs, _ := h.ledger.List(context.Background(), "splunk", 10)
	if len(recs) != 1 || recs[0].Query != want {
		t.Errorf("ledger = %+v", recs)
	}
}

func TestRunSplunkFailures(t *testing.T) {
	t.Run("fabricated field", func(t *testing.T) {
		h := newHarness(t, nil,
			intentAnswer,
			`{"index":"wineventlog","source":"XmlWinEventLog:Security"}`,
			`search index=wineventlog Logon_Type=3`,
		)
		run := h.runner.RunSplunk(context.Background(), "network logons")
		if run.Stage != StageVerify || !strings.Contains(run.Error.Message, "Logon_Type") {
			t.Errorf("run = %+v", run)
		}
		if len(h.splunk.queries) != 0 {
			t.Error("query must not run")
		}
	})

	t.Run("model refusal", func(t *testing.T) {
		h := newHarness(t, nil,
			intentAnswer,
			`{"index":"wineventlog","source":"XmlWinEventLog:Security"}`,
			`ERROR: Cannot build query - no DNS fields`,
		)
		run := h.runner.RunSplunk(context.Background(), "dns tunnelling")
		if run.Stage != StageBuild || !strings.Contains(run.Error.Message, "no DNS fields") {
			t.Errorf("run = %+v", run)
		}
	})

	t.Run("search error", func(t *testing.T) {
		h := newHarness(t, nil,
			intentAnswer,
			`{"index":"wineventlog","source":"XmlWinEventLog:Security"}`,
			`search index=wineventlog EventCode=4625`,
		)
		h.splunk.err = siemerr.Search("splunk search failed", errors.New("connection refused"))
		run := h.runner.RunSplunk(context.Background(), "failed logons")
		if run.Stage != StageExecute || run.Error.Kind != string(siemerr.KindSearch) {
			t.Errorf("run = %+v", run)
		}
	})
}

func TestSummarize(t *testing.T) {
	h := newHarness(t, nil, "## Overview\nTwo failed logons from 10.0.0.5.")

	path, err := h.saver.Save("log", map[string]any{"query": "search index=main", "results": []any{map[string]any{"src_ip": "10.0.0.5"}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.ledger.Record(context.Background(), results.Record{Backend: "splunk", Path: path, Query: "search index=main", Count: 1}); err != nil {
		t.Fatal(err)
	}

	rep := h.runner.Summarize(context.Background(), SummaryRequest{SavedFile: path})
	if rep.Error != nil {
		t.Fatalf("Summarize: %+v", rep.Error)
	}
	if rep.Query != "search index=main" {
		t.Errorf("query not looked up from ledger: %q", rep.Query)
	}
	if !strings.HasPrefix(rep.Markdown, "## Overview") {
		t.Errorf("report = %q", rep.Markdown)
	}
	if !strings.Contains(h.provider.requests[0].Prompt, "10.0.0.5") {
		t.Error("file contents not sent to the model")
	}
}

func TestSummarizeRefusals(t *testing.T) {
	h := newHarness(t, nil)

	rep := h.runner.Summarize(context.Background(), SummaryRequest{Query: "search index=main EventCode=1", Message: splunk.NoDataMessage})
	if rep.Error == nil || rep.Markdown != "" {
		t.Fatalf("expected refusal, got %+v", rep)
	}
	want := "Cannot generate summary: No data found for the query\nQuery attempted: search index=main EventCode=1"
	if rep.Error.Message != want {
		t.Errorf("message = %q", rep.Error.Message)
	}

	missing := h.runner.Summarize(context.Background(), SummaryRequest{SavedFile: filepath.Join(h.saver.Dir(), "gone.json")})
	if missing.Error == nil || !strings.HasPrefix(missing.Error.Message, "Cannot generate summary: ") {
		t.Errorf("missing file = %+v", missing)
	}
	if len(h.provider.requests) != 0 {
		t.Error("refusals must not call the model")
	}
}
