package splunk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"siem-mcp/internal/deeplink"
	"siem-mcp/internal/results"
	"siem-mcp/internal/siemerr"

	"github.com/rs/zerolog"
)

type fakeSplunk struct {
	t          *testing.T
	rows       string
	createCode int
	createBody string
	failed     bool
	delay      time.Duration

	lastForm  url.Values
	lastCount string
	lastAuth  string
	requests  int32
}

func (f *fakeSplunk) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.requests, 1)
	f.lastAuth = r.Header.Get("Authorization")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/services/search/jobs":
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		r.ParseForm()
		f.lastForm = r.PostForm
		if f.createCode != 0 {
			w.WriteHeader(f.createCode)
			w.Write([]byte(f.createBody))
			return
		}
		w.Write([]byte(`{"sid":"1700000000.42"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/services/search/jobs/1700000000.42":
		state := `{"dispatchState":"DONE","isDone":true,"isFailed":false}`
		if f.failed {
			state = `{"dispatchState":"FAILED","isDone":true,"isFailed":true,"messages":[{"type":"FATAL","text":"Unknown search command 'foo'."}]}`
		}
		w.Write([]byte(`{"entry":[{"content":` + state + `}]}`))
	case r.Method == http.MethodGet && r.URL.Path == "/services/search/jobs/1700000000.42/results":
		f.lastCount = r.URL.Query().Get("count")
		if r.URL.Query().Get("output_mode") != "json" {
			f.t.Errorf("results requested without output_mode=json")
		}
		w.Write([]byte(`{"results":` + f.rows + `}`))
	default:
		http.NotFound(w, r)
	}
}

func newFakeExecutor(t *testing.T, fake *fakeSplunk, saver ResultSaver, timeout time.Duration) *Executor {
	t.Helper()
	fake.t = t
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())
	client, err := NewClient(ClientConfig{Host: u.Hostname(), Port: port, Scheme: "http", Token: "tok"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewExecutor(client, saver, deeplink.NewBuilder("", "https://splunk.local:8000"), zerolog.Nop(), timeout, 0)
}

func TestExecuteSavesRows(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeSplunk{rows: `[{"user":"bob","count":"3"},{"user":"alice","count":"1"}]`}
	exec := newFakeExecutor(t, fake, results.NewSaver(dir), time.Second)

	res, err := exec.Execute(context.Background(), `index=main EventCode=4625 | stats count by user`, 50)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Query != "search index=main EventCode=4625 | stats count by user" {
		t.Errorf("Query = %q", res.Query)
	}
	if res.ResultsCount != 2 || res.Message != "" {
		t.Errorf("unexpected result %+v", res)
	}
	if fake.lastForm.Get("search") != res.Query || fake.lastForm.Get("exec_mode") != "blocking" || fake.lastForm.Get("output_mode") != "json" {
		t.Errorf("job form = %v", fake.lastForm)
	}
	if fake.lastCount != "50" {
		t.Errorf("count = %q, want 50", fake.lastCount)
	}
	if fake.lastAuth != "Bearer tok" {
		t.Errorf("authorization = %q", fake.lastAuth)
	}
	if !strings.HasPrefix(res.DeepLink, "https://splunk.local:8000/") {
		t.Errorf("DeepLink = %q", res.DeepLink)
	}

	data, err := os.ReadFile(res.SavedFile)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	var saved struct {
		Query   string           `json:"query"`
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
	if saved.Query != res.Query || len(saved.Results) != 2 {
		t.Errorf("saved payload = %+v", saved)
	}
}

func TestExecuteZeroRowsIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeSplunk{rows: `[]`}
	exec := newFakeExecutor(t, fake, results.NewSaver(dir), time.Second)

	res, err := exec.Execute(context.Background(), "search index=main nothing_here", 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ResultsCount != 0 || res.SavedFile != "" || res.Message == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if fake.lastCount != strconv.Itoa(DefaultMaxResults) {
		t.Errorf("count = %q, want default", fake.lastCount)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("expected no files, found %d", len(entries))
	}
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeSplunk
		timeout time.Duration
		want    string
	}{
		{
			name: "job rejected",
			fake: &fakeSplunk{createCode: http.StatusBadRequest, createBody: `{"messages":[{"type":"FATAL","text":"Error in 'search' command"}]}`},
			want: "Error in 'search' command",
		},
		{
			name: "job failed",
			fake: &fakeSplunk{failed: true, rows: `[]`},
			want: "Unknown search command",
		},
		{
			name:    "job timed out",
			fake:    &fakeSplunk{delay: 500 * time.Millisecond, rows: `[]`},
			timeout: 50 * time.Millisecond,
			want:    "did not finish",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			exec := newFakeExecutor(t, tt.fake, results.NewSaver(t.TempDir()), timeout)

			_, err := exec.Execute(context.Background(), "search index=main foo", 10)
			if !siemerr.Is(err, siemerr.KindSearch) {
				t.Fatalf("expected search error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestExecuteEmptyQuery(t *testing.T) {
	fake := &fakeSplunk{rows: `[]`}
	exec := newFakeExecutor(t, fake, results.NewSaver(t.TempDir()), time.Second)

	_, err := exec.Execute(context.Background(), "   ", 10)
	if !siemerr.Is(err, siemerr.KindSearch) {
		t.Fatalf("expected search error, got %v", err)
	}
	if atomic.LoadInt32(&fake.requests) != 0 {
		t.Error("empty query must not reach Splunk")
	}
}

type brokenSaver struct{}

func (brokenSaver) Save(string, any) (string, error) {
	return "", errors.New("read-only file system")
}

func TestExecutePersistenceFailure(t *testing.T) {
	fake := &fakeSplunk{rows: `[{"user":"bob"}]`}
	exec := newFakeExecutor(t, fake, brokenSaver{}, time.Second)

	res, err := exec.Execute(context.Background(), "search index=main", 10)
	if !siemerr.Is(err, siemerr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if res.ResultsCount != 1 || res.Message == NoDataMessage {
		t.Errorf("persistence failure must not look like no data: %+v", res)
	}
}

func TestNewClientRequiresSettings(t *testing.T) {
	if _, err := NewClient(ClientConfig{}, nil); !siemerr.Is(err, siemerr.KindConfig) {
		t.Errorf("missing host: got %v", err)
	}
	if _, err := NewClient(ClientConfig{Host: "splunk"}, nil); !siemerr.Is(err, siemerr.KindConfig) {
		t.Errorf("missing credentials: got %v", err)
	}
	c, err := NewClient(ClientConfig{Host: "splunk", Username: "admin"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.BaseURL() != "https://splunk:8089" {
		t.Errorf("BaseURL = %s", c.BaseURL())
	}
}
