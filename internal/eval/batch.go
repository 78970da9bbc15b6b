package eval

import (
	"context"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
	"github.com/astgrep-tools/astgrep-mcp/pkg/llmapi"
)

// CompleteBatch runs plain completions for every prompt concurrently against
// the configured endpoint, without attaching server tools. Results come back
// in prompt order; a failed prompt is recorded in its result, never
// propagated, so one bad prompt does not abort the batch.
func CompleteBatch(ctx context.Context, config Config, systemPrompt string, prompts []string, concurrency int) []llmapi.BatchResult {
	client := llmapi.NewClient(config.APIKey, config.Endpoint, config.Model)
	processor := llmapi.NewBatchProcessor(client, concurrency)

	logging.Debug("running prompt batch", "prompts", len(prompts), "concurrency", processor.Concurrency)
	return processor.ProcessStrings(ctx, systemPrompt, prompts)
}
