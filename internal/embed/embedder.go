package embed

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// EmbedClient is the embedding provider dependency.
type EmbedClient interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder generates fixed-length embedding vectors for text.
type Embedder struct {
	client EmbedClient
	model  string
}

// NewEmbedder creates an Embedder using the given provider client and model name.
func NewEmbedder(client EmbedClient, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Embed returns the embedding vector for text, or an empty vector on any
// provider failure. Callers must treat an empty vector as "no embedding
// available" and skip similarity indexing, not as an error.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		slog.Warn("embedding failed, continuing without vector", "error", err)
		return nil
	}
	return vec
}

// EmbedBatch embeds multiple texts concurrently with bounded parallelism.
// Positions whose embedding failed hold an empty vector. Returns nil for
// empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for i, text := range texts {
		g.Go(func() error {
			results[i] = e.Embed(gCtx, text)
			return nil
		})
	}

	// Embed never returns an error, so Wait cannot fail.
	_ = g.Wait()
	return results
}
