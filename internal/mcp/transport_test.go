package mcp

import (
	"io"
	"strings"
	"testing"
)

func TestReadRequest_SkipsBlankLines(t *testing.T) {
	input := "\n\n{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}\n"
	transport := NewTransport(strings.NewReader(input), io.Discard)

	req, err := transport.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest() error = %v", err)
	}
	if req.Method != "ping" {
		t.Errorf("Method = %q, want ping", req.Method)
	}

	if _, err := transport.ReadRequest(); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadRequest_ParseError(t *testing.T) {
	transport := NewTransport(strings.NewReader("not json\n"), io.Discard)
	_, err := transport.ReadRequest()
	rpcErr, ok := AsProtocolError(err)
	if !ok {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if rpcErr.Code != ParseError {
		t.Errorf("Code = %d, want %d", rpcErr.Code, ParseError)
	}
}

func TestReadRequest_WrongVersion(t *testing.T) {
	transport := NewTransport(strings.NewReader(`{"jsonrpc":"1.0","id":1,"method":"x"}`+"\n"), io.Discard)
	_, err := transport.ReadRequest()
	rpcErr, ok := AsProtocolError(err)
	if !ok {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if rpcErr.Code != InvalidRequest {
		t.Errorf("Code = %d, want %d", rpcErr.Code, InvalidRequest)
	}
}
