package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds a single JSON-RPC message. Inline code arguments can get
// large, so the limit is generous.
const maxLineSize = 16 * 1024 * 1024

// Transport frames newline-delimited JSON-RPC 2.0 messages over a reader and
// writer pair.
type Transport struct {
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// NewTransport creates a transport over the given stream pair.
func NewTransport(reader io.Reader, writer io.Writer) *Transport {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Transport{
		scanner: scanner,
		encoder: json.NewEncoder(writer),
	}
}

// ReadRequest reads the next request, skipping blank lines. It returns io.EOF
// when the peer closes the stream.
func (t *Transport) ReadRequest() (*Request, error) {
	for t.scanner.Scan() {
		line := strings.TrimSpace(t.scanner.Text())
		if line == "" {
			continue
		}
		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, &Error{Code: ParseError, Message: "parse error: " + err.Error()}
		}
		if req.JSONRPC != "2.0" {
			return nil, &Error{Code: InvalidRequest, Message: "unsupported jsonrpc version: " + req.JSONRPC}
		}
		return &req, nil
	}
	if err := t.scanner.Err(); err != nil {
		return nil, fmt.Errorf("transport read: %w", err)
	}
	return nil, io.EOF
}

// WriteResponse emits one response followed by a newline.
func (t *Transport) WriteResponse(resp *Response) error {
	return t.encoder.Encode(resp)
}

// Error implements the error interface so protocol-level failures can travel
// through normal error returns and still carry their JSON-RPC code.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// AsProtocolError extracts a JSON-RPC error from err if it is one.
func AsProtocolError(err error) (*Error, bool) {
	rpcErr, ok := err.(*Error)
	return rpcErr, ok
}
