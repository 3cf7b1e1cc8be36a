package syshealth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/loomwork/transcribe-core/pkg/logger"
)

type sysHealthMonitor struct {
	cfg *Config
	log *slog.Logger

	mu     sync.RWMutex
	health *HealthMetrics

	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   bool

	// Indirections for deterministic unit testing.
	getCPUCores func() int
	getLoadAvg  func(ctx context.Context) (*load.AvgStat, error)
	getMemStats func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewMonitor constructs a Monitor. Pass nil cfg for DefaultConfig().
func NewMonitor(cfg *Config, log *slog.Logger) Monitor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &sysHealthMonitor{
		cfg: cfg,
		log: log.With(logger.Scope("syshealth")),
		health: &HealthMetrics{
			Zone:      HealthZoneSafe,
			Timestamp: time.Time{},
		},
		getCPUCores: func() int {
			n, err := cpu.Counts(true)
			if err != nil || n <= 0 {
				return 1
			}
			return n
		},
		getLoadAvg:  load.AvgWithContext,
		getMemStats: mem.VirtualMemoryWithContext,
	}
}

func (m *sysHealthMonitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.stoppedCh = make(chan struct{})
	m.mu.Unlock()

	go m.run()
	return nil
}

func (m *sysHealthMonitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	<-m.stoppedCh
	return nil
}

func (m *sysHealthMonitor) run() {
	defer close(m.stoppedCh)

	m.collect()

	ticker := time.NewTicker(m.cfg.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *sysHealthMonitor) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cores := m.getCPUCores()

	avg, err := m.getLoadAvg(ctx)
	if err != nil {
		m.log.Warn("load average sample failed", logger.Error(err))
		return
	}

	memStats, err := m.getMemStats(ctx)
	if err != nil {
		m.log.Warn("memory sample failed", logger.Error(err))
		return
	}

	loadFactor := avg.Load1 / float64(cores)

	zone := HealthZoneSafe
	if loadFactor >= m.cfg.CPULoadCriticalFactor || memStats.UsedPercent >= m.cfg.MemoryCriticalPercent {
		zone = HealthZoneCritical
	} else if loadFactor >= m.cfg.CPULoadWarningFactor || memStats.UsedPercent >= m.cfg.MemoryWarningPercent {
		zone = HealthZoneWarning
	}

	m.mu.Lock()
	m.health = &HealthMetrics{
		Zone:          zone,
		CPULoadAvg:    avg.Load1,
		MemoryPercent: memStats.UsedPercent,
		Timestamp:     time.Now(),
	}
	m.mu.Unlock()

	if zone != HealthZoneSafe {
		m.log.Debug("host under pressure",
			slog.String("zone", string(zone)),
			slog.Float64("load1", avg.Load1),
			slog.Float64("memory_percent", memStats.UsedPercent))
	}
}

func (m *sysHealthMonitor) GetHealth() *HealthMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := *m.health
	if !h.Timestamp.IsZero() && time.Since(h.Timestamp) > m.cfg.StalenessThreshold {
		h.Stale = true
	}
	return &h
}
