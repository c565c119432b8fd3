package utils

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// DebugTransport wraps an http.RoundTripper and logs request URL and body
type DebugTransport struct {
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// RoundTrip implements http.RoundTripper interface
func (d *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	event := d.Logger.Debug().Str("method", req.Method).Str("url", req.URL.String())

	if req.Body != nil && req.ContentLength > 0 {
		bodyBytes, err := io.ReadAll(req.Body)
		if err == nil {
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodyStr := CompactJSON(bodyBytes)
			if len(bodyStr) > 5000 {
				bodyStr = bodyStr[:5000] + "... [truncated]"
			}
			event = event.Str("body", bodyStr)
		}
	}
	event.Msg("outbound request")

	resp, err := d.Transport.RoundTrip(req)
	if err != nil {
		d.Logger.Debug().Err(err).Str("url", req.URL.String()).Msg("outbound request failed")
		return nil, err
	}
	d.Logger.Debug().Int("status", resp.StatusCode).Str("url", req.URL.String()).Msg("outbound response")
	return resp, nil
}

// WrapClientWithDebug wraps an http.Client with debug logging if debug is enabled
func WrapClientWithDebug(client *http.Client, debug bool, logger zerolog.Logger) *http.Client {
	if !debug {
		return client
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &http.Client{
		Transport: &DebugTransport{Transport: transport, Logger: logger},
		Timeout:   client.Timeout,
	}
}
