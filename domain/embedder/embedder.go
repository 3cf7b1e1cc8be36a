// Package embedder implements the Embedder collaborator boundary (spec
// §4.2, component C2): a deterministic function of (model_id, text) onto a
// unit-normalized vector, batched for throughput.
package embedder

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/mathutil"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

// Module wires Embedder into the fx graph.
var Module = fx.Module("embedder",
	fx.Provide(
		fx.Annotate(
			NewHTTPEmbedder,
			fx.As(new(Embedder)),
		),
	),
)

// Embedder is the collaborator boundary for text-to-vector embedding (spec
// §2, §4.2). Concrete model implementations live behind an HTTP collaborator;
// this package never imports a model SDK directly.
type Embedder interface {
	// Dimension is the fixed output vector length this Embedder produces.
	Dimension() int

	// EmbedOne embeds a single string. Empty text is well-defined: it
	// returns the same arbitrary fixed unit vector every time (spec §4.2).
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds N strings in as few round trips as the configured
	// batch size allows, preserving input order in the output.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type httpEmbedder struct {
	client    *Client
	batchSize int
	dimension int
	log       *slog.Logger
}

// NewHTTPEmbedder builds an Embedder backed by an HTTP collaborator client,
// in the teacher's pattern of keeping concrete model calls behind a thin
// package boundary (cf. teacher's genai client wrapping the embedding API).
func NewHTTPEmbedder(cfg *config.Config, log *slog.Logger) Embedder {
	return &httpEmbedder{
		client:    NewClient(cfg.Embedder.Endpoint, cfg.Embedder.ModelID, cfg.Embedder.Timeout()),
		batchSize: cfg.Embedder.BatchSize,
		dimension: cfg.Embedder.Dimension,
		log:       log.With(logger.Scope("embedder")),
	}
}

func (e *httpEmbedder) Dimension() int {
	return e.dimension
}

func (e *httpEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *httpEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracing.Start(ctx, "embedder.EmbedBatch")
	defer span.End()

	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		vecs, err := e.client.Embed(ctx, batch, e.dimension)
		if err != nil {
			return nil, err
		}
		// The collaborator's raw output is not guaranteed unit length (e.g.
		// an all-zero vector for empty text); Normalize enforces the
		// unit-vector contract and gives empty text a well-defined,
		// deterministic fallback (spec §4.2).
		for i, v := range vecs {
			results[start+i] = mathutil.Normalize(v)
		}
	}
	return results, nil
}
