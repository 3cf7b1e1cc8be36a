// Package main is the entry point for the transcription pipeline worker:
// it wires Store, Embedder, Transcriber, Chunker, ProgressBus, the
// Scheduler, SearchEngine, and Intake together and runs the Scheduler's
// worker pool until signalled to stop. It does not serve HTTP; an HTTP
// layer built on top of Intake/SearchEngine's operations is out of scope
// here (spec §2).
package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/loomwork/transcribe-core/domain/chunker"
	"github.com/loomwork/transcribe-core/domain/embedder"
	"github.com/loomwork/transcribe-core/domain/intake"
	"github.com/loomwork/transcribe-core/domain/progressbus"
	"github.com/loomwork/transcribe-core/domain/search"
	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/domain/transcriber"
	"github.com/loomwork/transcribe-core/domain/workflow"
	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/internal/database"
	"github.com/loomwork/transcribe-core/internal/migrate"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

func main() {
	// Load .env files if present (for local development).
	// Order matters: .env.local overrides .env. Load() won't overwrite
	// existing vars, Overload() will.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		tracing.Module,
		database.Module,
		migrate.Module,

		// Migrations must run before the Scheduler's OnStart hook starts
		// recovering and dispatching jobs, so this is invoked ahead of
		// workflow.Module below: fx appends lifecycle hooks in constructor
		// order, and constructor order follows invoke declaration order.
		fx.Invoke(runMigrations),

		// Pipeline components (spec §2)
		store.Module,
		embedder.Module,
		transcriber.Module,
		chunker.Module,
		progressbus.Module,
		workflow.Module,
		search.Module,
		intake.Module,

		// Intake depends only on the narrow slice of Scheduler it needs to
		// start a workflow; bind the concrete Scheduler to that interface
		// here rather than inside either package, so neither depends on
		// the other's full type.
		fx.Provide(func(s *workflow.Scheduler) intake.WorkflowStarter { return s }),
	).Run()
}

// runMigrations applies pending schema migrations before the Scheduler's
// OnStart hook begins recovering and dispatching jobs.
func runMigrations(lc fx.Lifecycle, m *migrate.Migrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Up(ctx)
		},
	})
}
