// Package gateway routes tool calls to handlers and turns every outcome into
// a tool result.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/golovatskygroup/mcp-gateway/internal/catalog"
	"github.com/golovatskygroup/mcp-gateway/internal/journal"
	"github.com/golovatskygroup/mcp-gateway/internal/metrics"
	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

// Handler executes one tool. It returns either a Result, used verbatim, or
// any JSON-serializable value, rendered as indented JSON text.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Result carries explicit content parts, e.g. an image followed by text.
type Result struct {
	Content []mcp.ContentBlock
}

// Service is a named catalog plus one handler per catalog tool.
type Service struct {
	Name     string
	Catalog  *catalog.Catalog
	Handlers map[string]Handler
}

// Recorder persists finished calls. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

type Options struct {
	// Timeout bounds each call; 0 disables the bound.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Journal Recorder
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	svc     Service
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	journal Recorder
}

// New panics when a catalog tool has no handler.
func New(svc Service, opts Options) *Dispatcher {
	for _, t := range svc.Catalog.List() {
		if _, ok := svc.Handlers[t.Name]; !ok {
			panic(fmt.Sprintf("gateway: no handler for tool %q in service %s", t.Name, svc.Name))
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		svc:     svc,
		timeout: opts.Timeout,
		logger:  logger,
		metrics: opts.Metrics,
		journal: opts.Journal,
	}
}

func (d *Dispatcher) ServiceName() string { return d.svc.Name }

func (d *Dispatcher) ListTools() []mcp.Tool {
	return d.svc.Catalog.List()
}

// Dispatch never returns nil and never surfaces a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, params mcp.CallToolParams) *mcp.CallToolResult {
	callID := uuid.New().String()
	log := d.logger.With("call_id", callID, "service", d.svc.Name, "tool", params.Name)
	start := time.Now()

	res, err := d.call(ctx, params, log)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = toolerr.KindOf(err).String()
		res = errorResult(err)
		log.Warn("tool call failed", "outcome", outcome, "duration", elapsed, "error", err.Error())
	} else {
		log.Info("tool call finished", "duration", elapsed)
	}

	d.metrics.ObserveToolCall(d.svc.Name, params.Name, outcome, elapsed)
	d.record(ctx, callID, params, outcome, err, elapsed, log)
	return res
}

func (d *Dispatcher) call(ctx context.Context, params mcp.CallToolParams, log *slog.Logger) (*mcp.CallToolResult, error) {
	if _, ok := d.svc.Catalog.Lookup(params.Name); !ok {
		if near := d.svc.Catalog.Suggest(params.Name); len(near) > 0 {
			log.Info("unknown tool requested", "did_you_mean", near)
		}
		return nil, toolerr.UnknownTool(params.Name)
	}
	if err := d.svc.Catalog.Validate(params.Name, params.Arguments); err != nil {
		return nil, err
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	out, err := d.invoke(ctx, d.svc.Handlers[params.Name], args, log)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, toolerr.ErrTimeout) {
			return nil, toolerr.Wrap(toolerr.KindTimeout, err, "%s timed out after %s", params.Name, d.timeout)
		}
		return nil, err
	}
	return render(out)
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, args json.RawMessage, log *slog.Logger) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("tool handler panicked", "panic", r, "stack", string(debug.Stack()))
			out, err = nil, toolerr.New(toolerr.KindInternal, "internal error: %v", r)
		}
	}()
	return h(ctx, args)
}

func (d *Dispatcher) record(ctx context.Context, callID string, params mcp.CallToolParams, outcome string, callErr error, elapsed time.Duration, log *slog.Logger) {
	if d.journal == nil {
		return
	}
	e := journal.Entry{
		ID:            callID,
		Service:       d.svc.Name,
		Tool:          params.Name,
		Status:        outcome,
		Input:         params.Arguments,
		ExecutionTime: elapsed,
	}
	if callErr != nil {
		e.ErrorMessage = callErr.Error()
	}
	// The call context may already be cancelled; the journal write is independent of it.
	if err := d.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}

func render(out any) (*mcp.CallToolResult, error) {
	switch v := out.(type) {
	case Result:
		return &mcp.CallToolResult{Content: v.Content}, nil
	case *Result:
		return &mcp.CallToolResult{Content: v.Content}, nil
	default:
		return jsonResult(v)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	block, err := JSONText(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{block}}, nil
}

// JSONText renders v as a two-space indented JSON text part. Characters
// like < and & are written as-is.
func JSONText(v any) (mcp.ContentBlock, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return mcp.ContentBlock{}, toolerr.Wrap(toolerr.KindInternal, err, "encoding result: %v", err)
	}
	return mcp.TextContent(strings.TrimSuffix(buf.String(), "\n")), nil
}

// errorResult formats err as the user-facing failure text. Unknown tools are
// reported without the "Error: " prefix.
func errorResult(err error) *mcp.CallToolResult {
	msg := err.Error()
	if !errors.Is(err, toolerr.ErrUnknownTool) {
		msg = "Error: " + msg
	}
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{mcp.TextContent(msg)},
		IsError: true,
	}
}
