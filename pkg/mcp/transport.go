package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrMalformed wraps messages that could not be decoded as JSON-RPC.
var ErrMalformed = errors.New("malformed message")

// Transport reads and writes line-delimited JSON-RPC messages.
// Reads must come from a single goroutine; writes are safe for concurrent use.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex
}

// NewTransport creates a new line transport, typically over stdin/stdout.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// ReadMessage reads the next non-empty line and decodes it as a request.
// A final line without a trailing newline is still delivered before io.EOF.
func (t *Transport) ReadMessage() (*Request, error) {
	for {
		line, err := t.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}

		var req Request
		if uerr := json.Unmarshal(line, &req); uerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, uerr)
		}
		if req.JSONRPC != JSONRPCVersion {
			return &req, fmt.Errorf("%w: unsupported jsonrpc version %q", ErrMalformed, req.JSONRPC)
		}
		return &req, nil
	}
}

// WriteResponse writes a JSON-RPC response as one line.
func (t *Transport) WriteResponse(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return t.writeLine(data)
}

func (t *Transport) writeLine(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.writer, "%s\n", data)
	return err
}
