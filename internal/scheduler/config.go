package scheduler

import (
	"time"

	"github.com/smallbiznis/redevance/internal/config"
)

const (
	JobEscalationTick    = "escalation_tick"
	JobNotificationRetry = "notification_retry"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval    time.Duration
	RetryBatchSize int
	TickTimeout    time.Duration
	RetryTimeout   time.Duration
	LockTTL        time.Duration
	EnabledJobs    []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Hour,
		RetryBatchSize: 50,
		TickTimeout:    10 * time.Minute,
		RetryTimeout:   2 * time.Minute,
		LockTTL:        15 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:    cfg.Scheduler.Interval,
		RetryBatchSize: cfg.Scheduler.BatchSize,
		EnabledJobs:    cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RetryBatchSize <= 0 {
		c.RetryBatchSize = defaults.RetryBatchSize
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = defaults.TickTimeout
	}
	if c.RetryTimeout <= 0 {
		c.RetryTimeout = defaults.RetryTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	// the lease must outlive the longest job
	if c.LockTTL < c.TickTimeout {
		c.LockTTL = c.TickTimeout + time.Minute
	}
	return c
}
