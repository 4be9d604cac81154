package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/golovatskygroup/mcp-gateway/internal/httpx"
	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
)

// Auth is the credential header attached to every API request.
type Auth struct {
	Header string
	Value  string
}

func Bearer(token string) Auth {
	return Auth{Header: "Authorization", Value: "Bearer " + token}
}

// TokenHeader is for services that take the raw token in a custom header.
func TokenHeader(header, token string) Auth {
	return Auth{Header: header, Value: token}
}

// StatusMessages are the service-specific texts for the mapped status codes.
type StatusMessages struct {
	Permission string
	NotFound   string
	RateLimit  string
}

type Options struct {
	// Service is the display name used in error messages, e.g. "YouTrack".
	Service  string
	BaseURL  string
	Auth     Auth
	Messages StatusMessages

	HTTPClient *http.Client
	// RateLimitRPS paces requests client-side; 0 disables pacing.
	RateLimitRPS float64
	Logger       *slog.Logger
}

// Client performs exactly one round trip per call and never retries.
type Client struct {
	service  string
	baseURL  string
	auth     Auth
	messages StatusMessages
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return &Client{
		service:  opts.Service,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		auth:     opts.Auth,
		messages: opts.Messages,
		http:     hc,
		limiter:  limiter,
		logger:   logger,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Fields Fields
	Body   any
	Header http.Header
}

// Do sends req and returns the raw JSON body on 2xx. An empty body yields nil.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	q := url.Values{}
	for k, vv := range req.Query {
		q[k] = append([]string(nil), vv...)
	}
	if len(req.Fields) > 0 {
		q.Set("fields", req.Fields.String())
	}
	u := c.baseURL + req.Path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request body: %w", c.service, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.service, err)
	}
	httpReq.Header.Set("User-Agent", "mcp-gateway")
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.auth.Header != "" {
		httpReq.Header.Set(c.auth.Header, c.auth.Value)
	}
	for k, vv := range req.Header {
		for _, v := range vv {
			httpReq.Header.Add(k, v)
		}
	}

	status, hdr, respBody, err := c.roundTrip(ctx, httpReq, 0)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		c.logger.Debug("upstream rejected request", "service", c.service, "method", method, "path", req.Path, "status", status)
		return nil, c.statusError(status, hdr, respBody)
	}

	respBody = bytes.TrimSpace(respBody)
	if len(respBody) == 0 {
		return nil, nil
	}
	if !json.Valid(respBody) {
		return nil, &toolerr.Error{
			Kind:    toolerr.KindUpstream,
			Message: fmt.Sprintf("%s API returned a non-JSON response (%d)", c.service, status),
			Status:  status,
			Body:    truncate(string(respBody), 512),
		}
	}
	return json.RawMessage(respBody), nil
}

// Call is Do followed by decoding into out.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	raw, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &toolerr.Error{
			Kind:    toolerr.KindUpstream,
			Message: fmt.Sprintf("unexpected %s response shape: %v", c.service, err),
			Err:     err,
		}
	}
	return nil
}

// Download fetches an absolute URL without credentials, e.g. a rendered asset.
// The body is bounded by limit bytes; 0 means unbounded.
func (c *Client) Download(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, toolerr.Download("Failed to download image: %v", err)
	}
	httpReq.Header.Set("User-Agent", "mcp-gateway")

	status, _, body, err := c.roundTrip(ctx, httpReq, limit)
	if err != nil {
		var te *toolerr.Error
		if errors.As(err, &te) && te.Kind == toolerr.KindTimeout {
			return nil, err
		}
		return nil, &toolerr.Error{Kind: toolerr.KindDownload, Message: "Failed to download image: " + err.Error(), Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &toolerr.Error{
			Kind:    toolerr.KindDownload,
			Message: fmt.Sprintf("Failed to download image: %d", status),
			Status:  status,
		}
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, limit int64) (int, http.Header, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, nil, c.transportError(ctx, err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	b, err := httpx.ReadAllWithLimit(resp.Body, limit)
	if err != nil {
		if httpx.IsResponseTooLarge(err) {
			return resp.StatusCode, resp.Header, nil, err
		}
		return resp.StatusCode, resp.Header, nil, c.transportError(ctx, err)
	}
	return resp.StatusCode, resp.Header, b, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &toolerr.Error{
			Kind:    toolerr.KindTimeout,
			Message: fmt.Sprintf("%s request timed out", c.service),
			Err:     err,
		}
	}
	return &toolerr.Error{
		Kind:    toolerr.KindUpstream,
		Message: fmt.Sprintf("%s request failed: %v", c.service, err),
		Err:     err,
	}
}

// statusError applies the status policy: 403, 404 and 429 map to their own
// kinds; every other non-2xx carries the status and raw body. A service
// without a message for a mapped status gets the generic API error text.
func (c *Client) statusError(status int, hdr http.Header, body []byte) error {
	text := strings.TrimSpace(string(body))
	generic := toolerr.Upstream(c.service, status, text)
	pick := func(msg string) string {
		if msg == "" {
			return generic.Message
		}
		return msg
	}
	switch status {
	case http.StatusForbidden:
		return &toolerr.Error{Kind: toolerr.KindPermission, Message: pick(c.messages.Permission), Status: status, Body: text}
	case http.StatusNotFound:
		return &toolerr.Error{Kind: toolerr.KindNotFound, Message: pick(c.messages.NotFound), Status: status, Body: text}
	case http.StatusTooManyRequests:
		msg := pick(c.messages.RateLimit)
		if wait, ok := parseRetryAfterSeconds(hdr); ok {
			msg = fmt.Sprintf("%s (Retry-After: %s)", msg, wait)
		}
		return &toolerr.Error{Kind: toolerr.KindRateLimit, Message: msg, Status: status, Body: text}
	default:
		return generic
	}
}

func parseRetryAfterSeconds(h http.Header) (time.Duration, bool) {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0, false
	}
	sec, err := strconv.Atoi(ra)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return time.Duration(sec) * time.Second, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
