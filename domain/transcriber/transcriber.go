// Package transcriber implements the Transcriber collaborator boundary
// (spec §4.3, component C3): turns an audio file into a transcript with
// per-segment timestamps and a detected language.
package transcriber

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

// Module wires Transcriber into the fx graph.
var Module = fx.Module("transcriber",
	fx.Provide(
		fx.Annotate(
			NewWhisperTranscriber,
			fx.As(new(Transcriber)),
		),
	),
)

// ErrorKind classifies a transcription failure for the workflow scheduler's
// retry policy (spec §4.3, §4.6.3): FileMissing is permanent, the rest are
// transient.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindFileMissing
	ErrorKindDecodeError
	ErrorKindModelError
)

// TranscribeError wraps a failure with the kind the scheduler needs to
// decide whether a retry can help.
type TranscribeError struct {
	Kind ErrorKind
	Err  error
}

func (e *TranscribeError) Error() string { return e.Err.Error() }
func (e *TranscribeError) Unwrap() error { return e.Err }

// Permanent reports whether retrying this error can never succeed.
func (e *TranscribeError) Permanent() bool {
	return e.Kind == ErrorKindFileMissing
}

// Result is the Transcriber's output (spec §4.3).
type Result struct {
	Transcript string
	Segments   []store.Segment
	Language   string
}

// Transcriber is the collaborator boundary for audio-to-text (spec §2, §4.3).
type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (*Result, error)
}

type whisperTranscriber struct {
	client *Client
	log    *slog.Logger
}

// NewWhisperTranscriber builds a Transcriber on top of a whisper-ASR-style
// HTTP collaborator, generalizing the teacher's plaintext-only whisper
// client to the richer segment+language contract the spec requires.
func NewWhisperTranscriber(cfg *config.Config, log *slog.Logger) Transcriber {
	return &whisperTranscriber{
		client: NewClient(cfg.Transcriber.ServiceURL, string(cfg.Transcriber.ModelSize), cfg.Transcriber.Timeout()),
		log:    log.With(logger.Scope("transcriber")),
	}
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	ctx, span := tracing.Start(ctx, "transcriber.Transcribe")
	defer span.End()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &TranscribeError{Kind: ErrorKindFileMissing, Err: err}
		}
		return nil, &TranscribeError{Kind: ErrorKindDecodeError, Err: err}
	}
	if len(data) == 0 {
		return nil, &TranscribeError{Kind: ErrorKindFileMissing, Err: os.ErrNotExist}
	}

	t.log.Debug("transcribing audio file",
		slog.String("file_path", filePath),
		slog.Int("size_bytes", len(data)),
	)

	result, err := t.client.Transcribe(ctx, data, filePath)
	if err != nil {
		return nil, err
	}

	t.log.Info("transcription completed",
		slog.String("file_path", filePath),
		slog.Int("transcript_length", len(result.Transcript)),
		slog.Int("segment_count", len(result.Segments)),
		slog.String("language", result.Language),
	)

	return result, nil
}
