package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-gateway/internal/catalog"
	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

func testDispatcher(started *atomic.Int32) *gateway.Dispatcher {
	cat := catalog.New(
		catalog.Entry{Tool: mcp.Tool{
			Name:        "echo",
			Description: "Echo a message",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"msg":{"type":"string"}},"required":["msg"]}`),
		}},
		catalog.Entry{Tool: mcp.Tool{
			Name:        "wait",
			Description: "Sleep briefly",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		}},
	)
	return gateway.New(gateway.Service{
		Name:    "demo",
		Catalog: cat,
		Handlers: map[string]gateway.Handler{
			"echo": func(ctx context.Context, args json.RawMessage) (any, error) {
				var in struct {
					Msg string `json:"msg"`
				}
				_ = json.Unmarshal(args, &in)
				return map[string]string{"msg": in.Msg}, nil
			},
			"wait": func(ctx context.Context, args json.RawMessage) (any, error) {
				if started != nil {
					started.Add(1)
				}
				select {
				case <-time.After(50 * time.Millisecond):
					return map[string]bool{"done": true}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	}, gateway.Options{Timeout: 5 * time.Second})
}

// serve runs a server over the given input and returns responses keyed by id.
func serve(t *testing.T, input string) map[string]mcp.Response {
	t.Helper()
	var out bytes.Buffer
	srv := New(mcp.NewTransport(strings.NewReader(input), &out), testDispatcher(nil), Options{Name: "demo-server"})
	require.NoError(t, srv.Run(context.Background()))

	got := map[string]mcp.Response{}
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var resp mcp.Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &resp), sc.Text())
		assert.Equal(t, "2.0", resp.JSONRPC)
		got[string(resp.ID)] = resp
	}
	require.NoError(t, sc.Err())
	return got
}

func lines(msgs ...string) string {
	return strings.Join(msgs, "\n") + "\n"
}

func TestInitializeAndListTools(t *testing.T) {
	got := serve(t, lines(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	))
	require.Len(t, got, 3)

	var initRes mcp.InitializeResult
	require.NoError(t, json.Unmarshal(got["1"].Result, &initRes))
	assert.Equal(t, ProtocolVersion, initRes.ProtocolVersion)
	assert.Equal(t, mcp.ServerInfo{Name: "demo-server", Version: "1.0.0"}, initRes.ServerInfo)
	assert.NotNil(t, initRes.Capabilities.Tools)

	var list mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(got["2"].Result, &list))
	require.Len(t, list.Tools, 2)
	assert.Equal(t, "echo", list.Tools[0].Name)
	assert.Equal(t, "wait", list.Tools[1].Name)

	assert.JSONEq(t, `{}`, string(got["3"].Result))
}

func TestCallTool(t *testing.T) {
	got := serve(t, lines(
		`{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"echo","arguments":{"msg":"hi"}}}`,
		`{"jsonrpc":"2.0","id":"b","method":"tools/call","params":{"name":"frobnicate","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":"c","method":"tools/call","params":{"name":"echo","arguments":{}}}`,
	))
	require.Len(t, got, 3)

	var ok mcp.CallToolResult
	require.NoError(t, json.Unmarshal(got[`"a"`].Result, &ok))
	assert.False(t, ok.IsError)
	require.Len(t, ok.Content, 1)
	assert.JSONEq(t, `{"msg":"hi"}`, ok.Content[0].Text)

	var unknown mcp.CallToolResult
	require.NoError(t, json.Unmarshal(got[`"b"`].Result, &unknown))
	assert.True(t, unknown.IsError)
	assert.Equal(t, "Unknown tool: frobnicate", unknown.Content[0].Text)

	var invalid mcp.CallToolResult
	require.NoError(t, json.Unmarshal(got[`"c"`].Result, &invalid))
	assert.True(t, invalid.IsError)
	assert.True(t, strings.HasPrefix(invalid.Content[0].Text, "Error: "))
}

func TestProtocolErrors(t *testing.T) {
	got := serve(t, lines(
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":"nope"}`,
		`{"jsonrpc":"1.0","id":3,"method":"ping"}`,
		`not json`,
	))

	require.NotNil(t, got["1"].Error)
	assert.Equal(t, mcp.MethodNotFound, got["1"].Error.Code)
	assert.Equal(t, "Method not found: resources/list", got["1"].Error.Message)

	require.NotNil(t, got["2"].Error)
	assert.Equal(t, mcp.InvalidParams, got["2"].Error.Code)

	require.NotNil(t, got["3"].Error)
	assert.Equal(t, mcp.InvalidRequest, got["3"].Error.Code)

	require.NotNil(t, got["null"].Error)
	assert.Equal(t, mcp.ParseError, got["null"].Error.Code)
}

func TestRunWaitsForInflightCallsAtEOF(t *testing.T) {
	var msgs []string
	for i := range 5 {
		msgs = append(msgs, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":"wait"}}`, i+1))
	}
	got := serve(t, lines(msgs...))

	require.Len(t, got, 5)
	for id, resp := range got {
		var res mcp.CallToolResult
		require.NoError(t, json.Unmarshal(resp.Result, &res), id)
		assert.False(t, res.IsError, id)
		assert.JSONEq(t, `{"done":true}`, res.Content[0].Text)
	}
}

func TestCallsRunConcurrently(t *testing.T) {
	var started atomic.Int32
	input := lines(
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"wait"}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"wait"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"wait"}}`,
	)
	var out bytes.Buffer
	srv := New(mcp.NewTransport(strings.NewReader(input), &out), testDispatcher(&started), Options{})

	start := time.Now()
	require.NoError(t, srv.Run(context.Background()))
	assert.Equal(t, int32(3), started.Load())
	assert.Less(t, time.Since(start), 140*time.Millisecond)
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
}

func TestRunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	var out bytes.Buffer
	srv := New(mcp.NewTransport(pr, &out), testDispatcher(nil), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	_, err := pw.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"))
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServerNameDefaultsToService(t *testing.T) {
	srv := New(mcp.NewTransport(strings.NewReader(""), io.Discard), testDispatcher(nil), Options{})
	assert.Equal(t, "demo", srv.info.Name)
	assert.NoError(t, srv.Run(context.Background()))
}
