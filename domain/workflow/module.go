package workflow

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/pkg/syshealth"
)

// Module wires the Scheduler / Worker Pool into the fx graph and starts and
// stops it alongside the rest of the application. Callers must also include
// store.Module, embedder.Module, transcriber.Module, chunker.Module and
// progressbus.Module, since NewActivities and NewScheduler depend on their
// interfaces.
var Module = fx.Module("workflow",
	fx.Provide(
		NewActivities,
		NewMetrics,
		newConcurrencyScaler,
		NewScheduler,
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
	),
	fx.Invoke(registerLifecycle),
)

// newConcurrencyScaler builds the syshealth scaler the Scheduler consults
// when WorkerConfig.AdaptiveConcurrency is enabled (spec §6.5). Disabled by
// default, in which case GetConcurrency always returns the static pool size.
func newConcurrencyScaler(cfg *config.Config, log *slog.Logger) *syshealth.ConcurrencyScaler {
	monitor := syshealth.NewMonitor(nil, log)
	if cfg.Worker.AdaptiveConcurrency {
		_ = monitor.Start()
	}
	return syshealth.NewConcurrencyScaler(monitor, cfg.Worker.AdaptiveConcurrency, cfg.Worker.MinConcurrency, cfg.Worker.PoolSize)
}

func registerLifecycle(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
