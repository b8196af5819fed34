package scheduler

import "time"

// Config controls sweep cadence and batch size.
type Config struct {
	RunInterval  time.Duration
	BatchSize    int
	JobTimeout   time.Duration
	SweepLockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Minute,
		BatchSize:    100,
		JobTimeout:   30 * time.Second,
		SweepLockTTL: 2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.SweepLockTTL <= 0 {
		c.SweepLockTTL = defaults.SweepLockTTL
	}
	return c
}
