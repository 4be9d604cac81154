package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golovatskygroup/mcp-gateway/internal/metrics"
)

// Config describes how one upstream service's round trips are observed.
type Config struct {
	Service string
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Transport records every round trip for one upstream service. It never
// retries, rewrites or stores responses.
type Transport struct {
	base    http.RoundTripper
	service string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewTransport(base http.RoundTripper, cfg Config) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transport{
		base:    base,
		service: cfg.Service,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// NewClient builds an http.Client over an instrumented transport. Redirects
// are followed; Figma export URLs are served from a CDN behind one.
func NewClient(timeout time.Duration, cfg Config) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(nil, cfg),
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("httpx: nil request")
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	// Query strings are left out of logs: signed download URLs carry credentials.
	if err != nil {
		t.metrics.ObserveUpstream(t.service, 0)
		t.logger.Debug("upstream request failed",
			"service", t.service, "method", req.Method, "host", req.URL.Host, "path", req.URL.Path,
			"duration", elapsed, "error", err)
		return nil, err
	}

	t.metrics.ObserveUpstream(t.service, resp.StatusCode)
	t.logger.Debug("upstream request",
		"service", t.service, "method", req.Method, "host", req.URL.Host, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", elapsed)
	return resp, nil
}
