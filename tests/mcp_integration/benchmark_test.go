package mcp_integration

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/astgrep-tools/astgrep-mcp/internal/mcp"
	"github.com/astgrep-tools/astgrep-mcp/internal/mcpserver"
)

// BenchmarkServerStartup measures registration plus the initialize handshake
func BenchmarkServerStartup(b *testing.B) {
	dispatcher := newStubDispatcher(b, "#!/bin/sh\necho ok\n")
	engine := testCatalog()
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"bench","version":"1.0"}}}
`
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var output bytes.Buffer
		server := mcp.NewServer(strings.NewReader(input), &output)
		mcpserver.Register(server,
			mcpserver.NewHandlers(dispatcher, engine),
			mcpserver.NewResourceProvider(engine),
			mcpserver.NewPromptProvider())

		if err := server.HandleOne(context.Background()); err != nil {
			b.Fatalf("HandleOne() error = %v", err)
		}
	}
}

// BenchmarkToolsList measures tools/list with the full tool set registered
func BenchmarkToolsList(b *testing.B) {
	dispatcher := newStubDispatcher(b, "#!/bin/sh\necho ok\n")
	engine := testCatalog()
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}
`
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var output bytes.Buffer
		server := mcp.NewServer(strings.NewReader(input), &output)
		mcpserver.Register(server,
			mcpserver.NewHandlers(dispatcher, engine),
			mcpserver.NewResourceProvider(engine),
			mcpserver.NewPromptProvider())

		if err := server.HandleOne(context.Background()); err != nil {
			b.Fatalf("HandleOne() error = %v", err)
		}
	}
}

// BenchmarkCatalogSearchCall measures a full tools/call round trip that stays
// in process (no subprocess involved)
func BenchmarkCatalogSearchCall(b *testing.B) {
	dispatcher := newStubDispatcher(b, "#!/bin/sh\necho ok\n")
	engine := testCatalog()
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search_examples","arguments":{"query":"console log"}}}
`
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var output bytes.Buffer
		server := mcp.NewServer(strings.NewReader(input), &output)
		mcpserver.Register(server,
			mcpserver.NewHandlers(dispatcher, engine),
			mcpserver.NewResourceProvider(engine),
			mcpserver.NewPromptProvider())

		if err := server.HandleOne(context.Background()); err != nil {
			b.Fatalf("HandleOne() error = %v", err)
		}
	}
}
