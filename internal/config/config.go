// Package config loads the process-wide Config from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

// Module provides Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// ChunkingStrategy selects the Chunker's primary strategy. "sentence" skips
// the topic oracle entirely; "semantic" tries the oracle first and falls
// back to sentence splitting per spec §4.4 regardless of this setting.
type ChunkingStrategy string

const (
	ChunkingSemantic ChunkingStrategy = "semantic"
	ChunkingSentence ChunkingStrategy = "sentence"
)

// ModelSize is the Transcriber's model-size option (spec §4.3).
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

// Config holds every recognized operational setting (spec §6.5).
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig
	Worker   WorkerConfig
	Embedder EmbedderConfig
	Transcriber TranscriberConfig
	Chunker  ChunkerConfig
	Intake   IntakeConfig
	Otel     OtelConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings for the Store (C1).
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"transcribe"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"transcribe"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// WorkerConfig controls the Scheduler / Worker Pool (C6, spec §4.6, §5).
type WorkerConfig struct {
	// PoolSize is the number of concurrent workflow slots (spec §6.5 worker_pool_size).
	PoolSize int `env:"WORKER_POOL_SIZE" envDefault:"3"`

	// PollIntervalMs is how often the Scheduler's admission loop rechecks for
	// a free pool slot while a dequeued job waits to start.
	PollIntervalMs int `env:"WORKER_POLL_INTERVAL_MS" envDefault:"500"`

	// HeartbeatIntervalSeconds is parsed and exposed via HeartbeatInterval,
	// but the Scheduler does not read it: its heartbeat ticker runs at each
	// activity's RetryPolicy.Heartbeat (DefaultPolicies in domain/workflow).
	HeartbeatIntervalSeconds int `env:"HEARTBEAT_INTERVAL_SECONDS" envDefault:"5"`

	// StaleRecoverThresholdMinutes bounds how long a job may sit in
	// "processing" with an unchanged updated_at before the periodic sweep
	// recovers it. Heartbeat ticks do not update updated_at.
	StaleRecoverThresholdMinutes int `env:"STALE_RECOVER_THRESHOLD_MINUTES" envDefault:"10"`

	// StaleSweepIntervalMinutes is the period of the ambient cron-driven sweep
	// that supplements the mandatory startup sweep.
	StaleSweepIntervalMinutes int `env:"STALE_SWEEP_INTERVAL_MINUTES" envDefault:"5"`

	// AdaptiveConcurrency enables the syshealth-driven concurrency scaler.
	AdaptiveConcurrency bool `env:"WORKER_ADAPTIVE_CONCURRENCY" envDefault:"false"`
	MinConcurrency      int  `env:"WORKER_MIN_CONCURRENCY" envDefault:"1"`
}

// PollInterval returns the poll interval as a Duration.
func (w *WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

// HeartbeatInterval returns the heartbeat cadence as a Duration.
func (w *WorkerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(w.HeartbeatIntervalSeconds) * time.Second
}

// EmbedderConfig controls the Embedder (C2).
type EmbedderConfig struct {
	// Dimension is fixed at startup; mixing dimensions is a configuration
	// error (spec §4.2, §6.5).
	Dimension      int    `env:"EMBEDDING_DIM" envDefault:"384"`
	ModelID        string `env:"EMBEDDING_MODEL_ID" envDefault:"local-hash-embedder-v1"`
	Endpoint       string `env:"EMBEDDING_SERVICE_URL" envDefault:"http://localhost:9100"`
	BatchSize      int    `env:"EMBEDDING_BATCH_SIZE" envDefault:"64"`
	TimeoutSeconds int    `env:"EMBEDDING_TIMEOUT_SECONDS" envDefault:"30"`
}

// Timeout returns the Embedder HTTP timeout as a Duration.
func (e *EmbedderConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// TranscriberConfig controls the Transcriber (C3).
type TranscriberConfig struct {
	ServiceURL    string    `env:"TRANSCRIBER_SERVICE_URL" envDefault:"http://localhost:9000"`
	ModelSize     ModelSize `env:"TRANSCRIBE_MODEL_SIZE" envDefault:"base"`
	TimeoutSeconds int      `env:"TRANSCRIBER_TIMEOUT_SECONDS" envDefault:"3600"`
}

// Timeout returns the Transcriber HTTP timeout as a Duration.
func (t *TranscriberConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// ChunkerConfig controls the Chunker (C4).
type ChunkerConfig struct {
	Strategy             ChunkingStrategy `env:"CHUNKING_STRATEGY" envDefault:"semantic"`
	TopicOracleURL       string           `env:"TOPIC_ORACLE_URL" envDefault:""`
	TopicOracleTimeoutMs int              `env:"TOPIC_ORACLE_TIMEOUT_MS" envDefault:"30000"`
	TopicOracleMaxRetries int             `env:"TOPIC_ORACLE_MAX_RETRIES" envDefault:"2"`
	SentencesPerChunk    int              `env:"SENTENCES_PER_CHUNK" envDefault:"4"`
}

// TopicOracleTimeout returns the per-call oracle timeout as a Duration.
func (c *ChunkerConfig) TopicOracleTimeout() time.Duration {
	return time.Duration(c.TopicOracleTimeoutMs) * time.Millisecond
}

// IntakeConfig controls the Intake API (C8).
type IntakeConfig struct {
	// UploadDir is the server-local path uploaded audio files are persisted
	// under (spec §3's file_path, §4.8). No remote object storage backend
	// is part of this core.
	UploadDir string `env:"INTAKE_UPLOAD_DIR" envDefault:"./data/uploads"`
}

// OtelConfig holds OpenTelemetry tracing configuration. Tracing is disabled
// when ExporterEndpoint is empty, leaving the global no-op provider in
// place so every pkg/tracing.Start call is inert.
type OtelConfig struct {
	// ExporterEndpoint is the OTLP HTTP endpoint (e.g. http://localhost:4318).
	ExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"transcribe-core"`
	SamplingRate     float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

// Enabled reports whether an OTLP endpoint is configured.
func (c OtelConfig) Enabled() bool {
	return c.ExporterEndpoint != ""
}

// NewConfig loads configuration from the environment.
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Embedder.Dimension != 384 {
		return nil, fmt.Errorf("embedding_dim must be 384, got %d", cfg.Embedder.Dimension)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("worker_pool_size", cfg.Worker.PoolSize),
		slog.Int("embedding_dim", cfg.Embedder.Dimension),
		slog.String("chunking_strategy", string(cfg.Chunker.Strategy)),
	)

	return cfg, nil
}
