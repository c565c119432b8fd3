package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"siem-mcp/internal/constants"
	"siem-mcp/internal/siemerr"
)

const DefaultTimeout = 30 * time.Second

// Hits total shapes
const (
	HitsTotalAuto   = "auto"
	HitsTotalObject = "object"
	HitsTotalScalar = "scalar"
)

// ClientConfig holds Elasticsearch connection settings.
type ClientConfig struct {
	BaseURL   string
	Username  string
	Password  string
	APIKey    string
	Timeout   time.Duration
	HitsTotal string
}

// Client talks to the Elasticsearch REST API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elasticsearch returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a Client. A missing base URL is a configuration error.
func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, siemerr.Config("elasticsearch base URL must be provided", nil)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, siemerr.Config("invalid elasticsearch base URL", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HitsTotal == "" {
		cfg.HitsTotal = HitsTotalAuto
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

// BaseURL returns the configured cluster URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// do sends a request and returns the response body. Bodies that are not
// []byte are JSON encoded.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, contentType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.cfg.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			reader = bytes.NewReader(b)
		default:
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request: %w", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType == "" {
		contentType = constants.HeaderContentTypeJSON
	}
	req.Header.Set(constants.HeaderContentType, contentType)
	req.Header.Set(constants.HeaderAccept, constants.HeaderContentTypeJSON)
	req.Header.Set(constants.HeaderUserAgent, constants.UserAgent)
	switch {
	case c.cfg.APIKey != "":
		req.Header.Set(constants.HeaderAuthorization, "ApiKey "+c.cfg.APIKey)
	case c.cfg.Username != "":
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
		msg := string(data)
		if len(msg) > 2000 {
			msg = msg[:2000] + "... [truncated]"
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	return data, nil
}

func indexPath(format, pattern string) string {
	return fmt.Sprintf(format, url.PathEscape(pattern))
}
