package splunk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"siem-mcp/internal/constants"
	"siem-mcp/internal/siemerr"
)

const (
	DefaultPort   = 8089
	DefaultScheme = "https"
)

// ClientConfig holds Splunk management API settings. Token takes precedence
// over username and password.
type ClientConfig struct {
	Host     string
	Port     int
	Scheme   string
	Username string
	Password string
	Token    string
}

// Client talks to the Splunk REST management API.
type Client struct {
	cfg     ClientConfig
	baseURL string
	http    *http.Client
}

// StatusError is returned for non-2xx responses. Messages holds the text of
// Splunk's messages array when the body carried one.
type StatusError struct {
	StatusCode int
	Messages   []string
	Body       string
}

func (e *StatusError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("splunk returned status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("splunk returned status %d: %s", e.StatusCode, e.Body)
}

// JobStatus is the subset of a search job's state used to detect failures.
type JobStatus struct {
	DispatchState string
	IsFailed      bool
	IsDone        bool
	Messages      []string
}

func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, siemerr.Config("splunk host must be provided", nil)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	if cfg.Token == "" && cfg.Username == "" {
		return nil, siemerr.Config("splunk token or username must be provided", nil)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	base := url.URL{Scheme: cfg.Scheme, Host: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	return &Client{cfg: cfg, baseURL: base.String(), http: httpClient}, nil
}

// BaseURL returns the management API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateJob submits a blocking search job and returns its sid. Extra
// parameters such as earliest_time are merged into the form.
func (c *Client) CreateJob(ctx context.Context, search string, extra url.Values) (string, error) {
	form := url.Values{}
	for k, v := range extra {
		form[k] = v
	}
	form.Set("search", search)
	form.Set("exec_mode", "blocking")
	form.Set("output_mode", "json")

	raw, err := c.do(ctx, http.MethodPost, constants.EndpointSplunkJobs, nil, form)
	if err != nil {
		return "", err
	}

	var resp struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode job creation response: %w", err)
	}
	if resp.SID == "" {
		return "", fmt.Errorf("splunk returned no search id")
	}
	return resp.SID, nil
}

// Status reads the dispatch state of a job.
func (c *Client) Status(ctx context.Context, sid string) (*JobStatus, error) {
	params := url.Values{}
	params.Set("output_mode", "json")

	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf(constants.EndpointSplunkJob, url.PathEscape(sid)), params, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Entry []struct {
			Content struct {
				DispatchState string          `json:"dispatchState"`
				IsFailed      bool            `json:"isFailed"`
				IsDone        bool            `json:"isDone"`
				Messages      json.RawMessage `json:"messages"`
			} `json:"content"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	if len(resp.Entry) == 0 {
		return nil, fmt.Errorf("job %s not found", sid)
	}

	content := resp.Entry[0].Content
	return &JobStatus{
		DispatchState: content.DispatchState,
		IsFailed:      content.IsFailed,
		IsDone:        content.IsDone,
		Messages:      decodeMessages(content.Messages),
	}, nil
}

// Results fetches up to count result rows of a finished job. A count of 0
// asks Splunk for every row.
func (c *Client) Results(ctx context.Context, sid string, count int) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("output_mode", "json")
	params.Set("count", strconv.Itoa(count))

	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf(constants.EndpointSplunkJobResults, url.PathEscape(sid)), params, nil)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []map[string]any{}, nil
	}

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode job results: %w", err)
	}
	if resp.Results == nil {
		resp.Results = []map[string]any{}
	}
	return resp.Results, nil
}

// Indexes lists the names of every index visible to the user.
func (c *Client) Indexes(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("output_mode", "json")
	params.Set("count", "0")

	raw, err := c.do(ctx, http.MethodGet, constants.EndpointSplunkDataIndexes, params, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Entry []struct {
			Name string `json:"name"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode index list: %w", err)
	}
	names := make([]string, 0, len(resp.Entry))
	for _, e := range resp.Entry {
		names = append(names, e.Name)
	}
	return names, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, form url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set(constants.HeaderContentType, constants.HeaderContentForm)
	}
	req.Header.Set(constants.HeaderAccept, constants.HeaderContentTypeJSON)
	req.Header.Set(constants.HeaderUserAgent, constants.UserAgent)
	if c.cfg.Token != "" {
		req.Header.Set(constants.HeaderAuthorization, "Bearer "+c.cfg.Token)
	} else {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, data)
	}
	return data, nil
}

func newStatusError(status int, body []byte) *StatusError {
	var envelope struct {
		Messages json.RawMessage `json:"messages"`
	}
	_ = json.Unmarshal(body, &envelope)

	msg := string(body)
	if len(msg) > 2000 {
		msg = msg[:2000] + "... [truncated]"
	}
	return &StatusError{StatusCode: status, Messages: decodeMessages(envelope.Messages), Body: msg}
}

// decodeMessages accepts Splunk's [{"type","text"}] message list.
func decodeMessages(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, m := range list {
		if m.Text == "" {
			continue
		}
		if m.Type != "" {
			out = append(out, m.Type+": "+m.Text)
		} else {
			out = append(out, m.Text)
		}
	}
	return out
}
