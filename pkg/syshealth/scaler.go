package syshealth

import (
	"math"
	"sync"
	"time"

	"github.com/loomwork/transcribe-core/pkg/mathutil"
)

// ConcurrencyScaler adjusts worker pool concurrency based on host health,
// consulted by the Scheduler's worker loop to shed load under pressure.
type ConcurrencyScaler struct {
	monitor        Monitor
	minConcurrency int
	maxConcurrency int
	enabled        bool

	mu                 sync.Mutex
	currentConcurrency int
	lastAdjustment     time.Time
}

// NewConcurrencyScaler builds a scaler bounded to [min, max]; it starts at max
// and scales down only once the monitor reports pressure.
func NewConcurrencyScaler(monitor Monitor, enabled bool, min, max int) *ConcurrencyScaler {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &ConcurrencyScaler{
		monitor:            monitor,
		enabled:            enabled,
		minConcurrency:     min,
		maxConcurrency:     max,
		currentConcurrency: max,
		// Zero time: the first scale-down is not held back by a cooldown.
		lastAdjustment: time.Time{},
	}
}

// GetConcurrency returns the currently allowed concurrency. staticValue is
// returned unchanged when adaptive scaling is disabled.
func (s *ConcurrencyScaler) GetConcurrency(staticValue int) int {
	if !s.enabled {
		return staticValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	health := s.monitor.GetHealth()
	now := time.Now()
	sinceLastAdj := now.Sub(s.lastAdjustment)

	zone := health.Zone
	if health.Stale {
		zone = HealthZoneWarning
	}

	target := s.currentConcurrency
	switch zone {
	case HealthZoneCritical:
		target = s.minConcurrency
	case HealthZoneWarning:
		target = int(math.Max(float64(s.minConcurrency), float64(s.maxConcurrency)*0.5))
	case HealthZoneSafe:
		target = s.maxConcurrency
	}

	switch {
	case target < s.currentConcurrency:
		// Scale down fast; bypass cooldown entirely under critical pressure.
		if zone == HealthZoneCritical || sinceLastAdj >= time.Minute {
			s.currentConcurrency = target
			s.lastAdjustment = now
		}
	case target > s.currentConcurrency:
		// Scale up slowly: wait out a cooldown, then grow by at most 50%.
		if sinceLastAdj >= 5*time.Minute {
			maxIncrease := int(math.Max(1.0, float64(s.currentConcurrency)*0.5))
			s.currentConcurrency = int(math.Min(float64(target), float64(s.currentConcurrency+maxIncrease)))
			s.lastAdjustment = now
		}
	}

	return mathutil.ClampInt(s.currentConcurrency, s.minConcurrency, s.maxConcurrency)
}
