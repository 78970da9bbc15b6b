package llmapi

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchProcessor handles concurrent processing of items with an LLM client.
type BatchProcessor struct {
	Client      *Client
	Concurrency int
}

// NewBatchProcessor creates a new batch processor with the given concurrency limit.
func NewBatchProcessor(client *Client, concurrency int) *BatchProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchProcessor{
		Client:      client,
		Concurrency: concurrency,
	}
}

// ProcessFunc is a function that processes a single item with the LLM client.
type ProcessFunc func(ctx context.Context, client *Client, item interface{}) (interface{}, error)

// BatchResult contains the result of processing a single item.
type BatchResult struct {
	Index  int
	Input  interface{}
	Output interface{}
	Error  error
}

// ProgressCallback reports completion of one item out of the total.
type ProgressCallback func(completed, total int, result BatchResult)

// ProcessItems processes multiple items concurrently using errgroup.
// Results are returned in the same order as inputs. Item failures are
// recorded per result, never propagated, so every item gets processed.
func (bp *BatchProcessor) ProcessItems(ctx context.Context, items []interface{}, fn ProcessFunc) []BatchResult {
	return bp.ProcessItemsWithProgress(ctx, items, fn, nil)
}

// ProcessItemsWithProgress processes items and calls a progress callback
// after each completion.
func (bp *BatchProcessor) ProcessItemsWithProgress(ctx context.Context, items []interface{}, fn ProcessFunc, progress ProgressCallback) []BatchResult {
	results := make([]BatchResult, len(items))

	var mu sync.Mutex
	completed := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.Concurrency)

	for i, item := range items {
		i, item := i, item // Capture for goroutine
		g.Go(func() error {
			output, err := fn(ctx, bp.Client, item)
			result := BatchResult{
				Index:  i,
				Input:  item,
				Output: output,
				Error:  err,
			}
			results[i] = result

			if progress != nil {
				mu.Lock()
				completed++
				done := completed
				mu.Unlock()
				progress(done, len(items), result)
			}
			return nil
		})
	}

	g.Wait()
	return results
}

// ProcessStrings is a convenience method for processing string prompts concurrently.
func (bp *BatchProcessor) ProcessStrings(ctx context.Context, systemPrompt string, prompts []string) []BatchResult {
	items := make([]interface{}, len(prompts))
	for i, p := range prompts {
		items[i] = p
	}

	return bp.ProcessItems(ctx, items, func(ctx context.Context, client *Client, item interface{}) (interface{}, error) {
		prompt := item.(string)
		return client.CompleteWithContext(ctx, systemPrompt, prompt)
	})
}
