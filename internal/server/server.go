// Package server speaks MCP over a line transport and hands tool calls to a
// gateway dispatcher.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

// ProtocolVersion is the MCP revision announced on initialize.
const ProtocolVersion = "2024-11-05"

// Options configures the announced server identity.
type Options struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

// Server serves one dispatcher over one transport.
type Server struct {
	transport  *mcp.Transport
	dispatcher *gateway.Dispatcher
	info       mcp.ServerInfo
	logger     *slog.Logger

	inflight sync.WaitGroup
}

func New(transport *mcp.Transport, dispatcher *gateway.Dispatcher, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	name := opts.Name
	if name == "" {
		name = dispatcher.ServiceName()
	}
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	return &Server{
		transport:  transport,
		dispatcher: dispatcher,
		info:       mcp.ServerInfo{Name: name, Version: version},
		logger:     logger,
	}
}

type inbound struct {
	req *mcp.Request
	err error
}

// Run reads messages until EOF or until ctx is done. Tool calls run
// concurrently; Run returns only after every started call has answered.
func (s *Server) Run(ctx context.Context) error {
	defer s.inflight.Wait()

	msgs := make(chan inbound)
	go s.readLoop(ctx, msgs)

	s.logger.Info("server started", "service", s.info.Name, "tools", len(s.dispatcher.ListTools()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("server stopping", "reason", ctx.Err())
			return nil
		case in := <-msgs:
			switch {
			case in.err == nil:
				s.handle(ctx, in.req)
			case errors.Is(in.err, io.EOF):
				s.logger.Info("input closed")
				return nil
			case errors.Is(in.err, mcp.ErrMalformed):
				s.logger.Warn("malformed message", "error", in.err)
				s.rejectMalformed(in.req, in.err)
			default:
				return fmt.Errorf("read message: %w", in.err)
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, out chan<- inbound) {
	for {
		req, err := s.transport.ReadMessage()
		select {
		case out <- inbound{req: req, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil && !errors.Is(err, mcp.ErrMalformed) {
			return
		}
	}
}

func (s *Server) rejectMalformed(req *mcp.Request, err error) {
	if req == nil {
		s.write(mcp.NewErrorResponse(nil, mcp.ParseError, err.Error()))
		return
	}
	if !req.IsNotification() {
		s.write(mcp.NewErrorResponse(req.ID, mcp.InvalidRequest, err.Error()))
	}
}

func (s *Server) handle(ctx context.Context, req *mcp.Request) {
	if req.IsNotification() {
		if req.Method != "notifications/initialized" {
			s.logger.Debug("ignoring notification", "method", req.Method)
		}
		return
	}

	switch req.Method {
	case "initialize":
		s.reply(req, mcp.InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}},
			ServerInfo:      s.info,
		})
	case "tools/list":
		s.reply(req, mcp.ListToolsResult{Tools: s.dispatcher.ListTools()})
	case "tools/call":
		s.handleCallTool(ctx, req)
	case "ping":
		s.reply(req, struct{}{})
	default:
		s.write(mcp.NewErrorResponse(req.ID, mcp.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method)))
	}
}

func (s *Server) handleCallTool(ctx context.Context, req *mcp.Request) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.write(mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error()))
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.reply(req, s.dispatcher.Dispatch(ctx, params))
	}()
}

func (s *Server) reply(req *mcp.Request, result any) {
	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		resp = mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	s.write(resp)
}

func (s *Server) write(resp *mcp.Response) {
	if err := s.transport.WriteResponse(resp); err != nil {
		s.logger.Error("write response", "error", err)
	}
}
