package syshealth

import "time"

// Config controls sampling cadence and the thresholds that separate zones.
type Config struct {
	CollectionInterval time.Duration

	CPULoadCriticalFactor float64 // load1/cores above this is critical
	CPULoadWarningFactor  float64 // load1/cores above this is warning
	MemoryCriticalPercent float64
	MemoryWarningPercent  float64

	StalenessThreshold time.Duration
}

// DefaultConfig returns sensible sampling/threshold defaults.
func DefaultConfig() *Config {
	return &Config{
		CollectionInterval:    30 * time.Second,
		CPULoadCriticalFactor: 3.0,
		CPULoadWarningFactor:  2.0,
		MemoryCriticalPercent: 95.0,
		MemoryWarningPercent:  85.0,
		StalenessThreshold:    2 * time.Minute,
	}
}
