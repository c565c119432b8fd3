package utils

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitedTransport delays outbound requests so backends never see more
// than the configured rate.
type RateLimitedTransport struct {
	Transport http.RoundTripper
	Limiter   *rate.Limiter
}

// RoundTrip implements http.RoundTripper interface
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Transport.RoundTrip(req)
}

// WrapClientWithRateLimit applies a token bucket of rps requests per second
// with the given burst. A non-positive rps leaves the client untouched.
func WrapClientWithRateLimit(client *http.Client, rps float64, burst int) *http.Client {
	if rps <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &http.Client{
		Transport: &RateLimitedTransport{
			Transport: transport,
			Limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		},
		Timeout: client.Timeout,
	}
}
