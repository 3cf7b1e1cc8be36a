// Package migrate runs the Store's schema migrations via goose.
package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/migrations"
)

// Module provides the Migrator to the fx graph.
var Module = fx.Options(
	fx.Provide(NewZapLogger, NewMigrator),
)

// NewZapLogger builds the zap logger goose migration output is routed
// through, independent of the process-wide slog logger used elsewhere.
func NewZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Migrator applies the Store's SQL migrations.
type Migrator struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMigrator constructs a Migrator.
func NewMigrator(db *bun.DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger.Named("migrator")}
}

// Up runs every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("running database migrations")

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	m.logger.Info("migrations completed")
	return nil
}

// Status reports the current migration status.
func (m *Migrator) Status(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return goose.StatusContext(ctx, m.db.DB, ".")
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, m.db.DB)
}
