package eval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/astgrep-tools/astgrep-mcp/pkg/llmapi"
)

// newBatchLLM echoes each prompt back as its completion and fails any prompt
// containing "boom" with a client error.
func newBatchLLM(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llmapi.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		if strings.Contains(prompt, "boom") {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
			return
		}
		json.NewEncoder(w).Encode(llmapi.ChatResponse{Choices: []llmapi.Choice{{
			Message:      llmapi.Message{Role: "assistant", Content: "echo: " + prompt},
			FinishReason: "stop",
		}}})
	}))
}

func TestCompleteBatch_OrderedResults(t *testing.T) {
	llm := newBatchLLM(t)
	defer llm.Close()

	config := Config{Endpoint: llm.URL, Model: "test-model", APIKey: "k"}
	prompts := []string{"first", "second", "third"}
	results := CompleteBatch(context.Background(), config, "", prompts, 2)

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, result := range results {
		if result.Index != i {
			t.Errorf("results[%d].Index = %d", i, result.Index)
		}
		if result.Error != nil {
			t.Errorf("results[%d] error = %v", i, result.Error)
		}
		if result.Output != "echo: "+prompts[i] {
			t.Errorf("results[%d].Output = %v, want echo of %q", i, result.Output, prompts[i])
		}
	}
}

func TestCompleteBatch_FailedPromptDoesNotAbortBatch(t *testing.T) {
	llm := newBatchLLM(t)
	defer llm.Close()

	config := Config{Endpoint: llm.URL, Model: "test-model"}
	results := CompleteBatch(context.Background(), config, "", []string{"fine", "boom", "also fine"}, 1)

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Error != nil || results[2].Error != nil {
		t.Errorf("healthy prompts failed: %v, %v", results[0].Error, results[2].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error for the failing prompt")
	}
	if !strings.Contains(results[1].Error.Error(), "bad prompt") {
		t.Errorf("error = %v, want endpoint message", results[1].Error)
	}
}
