package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Probe reports whether the telemetry backend is reachable. A nil error means online.
type Probe interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// StaticProbe always reports the same result.
type StaticProbe struct {
	Err error
}

func (p StaticProbe) Probe(context.Context) error { return p.Err }

// HTTPProbe checks reachability with a HEAD request. Any HTTP response counts
// as reachable; only transport failures report offline.
type HTTPProbe struct {
	url        string
	httpClient *http.Client
}

// NewHTTPProbe creates a probe against url with the given per-request timeout.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProbe) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.url, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}
