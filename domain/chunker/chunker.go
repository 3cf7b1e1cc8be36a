// Package chunker implements the Chunker collaborator boundary (spec §4.4,
// component C4): partitions a transcript into topic-coherent chunks via an
// LLM topic-oracle collaborator, falling back to sentence-boundary
// splitting when the oracle is unavailable or returns malformed output.
package chunker

import (
	"context"
	"errors"
	"log/slog"

	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/textsplitter"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

// Module wires Chunker into the fx graph.
var Module = fx.Module("chunker",
	fx.Provide(
		fx.Annotate(
			NewChunker,
			fx.As(new(Chunker)),
		),
	),
)

// Chunker is the collaborator boundary for transcript partitioning (spec §2, §4.4).
type Chunker interface {
	Chunk(ctx context.Context, transcript string, segments []store.Segment) ([]store.NewChunk, error)
}

type chunker struct {
	oracle            *OracleClient
	strategy          config.ChunkingStrategy
	maxOracleRetries  int
	sentencesPerChunk int
	log               *slog.Logger
}

// NewChunker builds a Chunker. When cfg.Chunker.Strategy is "sentence" the
// oracle is never consulted; "semantic" tries the oracle first and always
// falls back to sentence splitting on failure (spec §4.4).
func NewChunker(cfg *config.Config, log *slog.Logger) Chunker {
	var oracle *OracleClient
	if cfg.Chunker.TopicOracleURL != "" {
		oracle = NewOracleClient(cfg.Chunker.TopicOracleURL, cfg.Chunker.TopicOracleTimeout())
	}
	return &chunker{
		oracle:            oracle,
		strategy:          cfg.Chunker.Strategy,
		maxOracleRetries:  cfg.Chunker.TopicOracleMaxRetries,
		sentencesPerChunk: cfg.Chunker.SentencesPerChunk,
		log:               log.With(logger.Scope("chunker")),
	}
}

func (c *chunker) Chunk(ctx context.Context, transcript string, segments []store.Segment) ([]store.NewChunk, error) {
	ctx, span := tracing.Start(ctx, "chunker.Chunk")
	defer span.End()

	if transcript == "" {
		return nil, nil
	}

	spans, err := c.partitionSpans(ctx, transcript)
	if err != nil {
		return nil, err
	}

	chunks := make([]store.NewChunk, len(spans))
	prevEndTime := 0.0
	for i, sp := range spans {
		startTime, endTime := mapTimeRange(sp.StartCharPos, sp.EndCharPos, segments, prevEndTime)
		chunks[i] = store.NewChunk{
			ChunkIndex:   i,
			Text:         transcript[sp.StartCharPos:sp.EndCharPos],
			TopicSummary: sp.TopicSummary,
			Keywords:     sp.Keywords,
			Confidence:   sp.Confidence,
			StartTime:    startTime,
			EndTime:      endTime,
			StartCharPos: sp.StartCharPos,
			EndCharPos:   sp.EndCharPos,
		}
		prevEndTime = endTime
	}
	return chunks, nil
}

// partitionSpans tries the semantic strategy first (if enabled and an
// oracle is configured), falling back to sentence splitting on any failure.
func (c *chunker) partitionSpans(ctx context.Context, transcript string) ([]span, error) {
	if c.strategy == config.ChunkingSemantic && c.oracle != nil {
		spans, err := c.tryOracle(ctx, transcript)
		if err == nil {
			return spans, nil
		}
		c.log.Warn("topic oracle unavailable or malformed, falling back to sentence splitting",
			logger.Error(err))
	}
	return c.fallbackSentenceSplit(transcript), nil
}

// tryOracle consults the topic oracle up to maxOracleRetries+1 times,
// validating and repairing output on each attempt (spec §6.2).
func (c *chunker) tryOracle(ctx context.Context, transcript string) ([]span, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxOracleRetries; attempt++ {
		raw, err := c.oracle.SuggestChunks(ctx, transcript)
		if err != nil {
			lastErr = err
			continue
		}
		spans, err := validateAndRepair(raw, len(transcript))
		if err != nil {
			lastErr = err
			continue
		}
		return spans, nil
	}
	return nil, lastErr
}

func (c *chunker) fallbackSentenceSplit(transcript string) []span {
	sentences := textsplitter.SplitSentences(transcript)
	groups := textsplitter.GroupSentences(sentences, c.sentencesPerChunk)

	spans := make([]span, len(groups))
	for i, g := range groups {
		spans[i] = span{
			StartCharPos: g.Start,
			EndCharPos:   g.End,
			TopicSummary: "",
			Keywords:     nil,
			Confidence:   0,
		}
	}
	return spans
}

// span is the Chunker's internal, already-validated representation of one
// chunk's boundaries and oracle-supplied (or fallback-default) metadata,
// before time mapping assigns start_time/end_time.
type span struct {
	StartCharPos int
	EndCharPos   int
	TopicSummary string
	Keywords     []string
	Confidence   float64
}

var (
	// ErrOracleMalformed is returned when the oracle's spans cannot be
	// repaired into a valid covering partition (spec §6.2: "malformed... output").
	ErrOracleMalformed = errors.New("chunker: topic oracle returned malformed spans")

	// ErrOracleOverlap is returned when two spans overlap; overlap is never
	// auto-repaired (spec §6.2: "overlapping output triggers fallback").
	ErrOracleOverlap = errors.New("chunker: topic oracle returned overlapping spans")
)
