package temporalx

import (
	"strings"
	"time"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout            time.Duration
	DialMaxWait            time.Duration
	AutoRegisterNamespace  bool
	NamespaceRetentionDays int
	WorkerConcurrency      int

	// CronSchedule, when set, makes trigger start the workflow on a schedule.
	CronSchedule string
	// RetryMaxAttempts and RetryDelay bound per-stage retries (fixed delay).
	RetryMaxAttempts int
	RetryDelay       time.Duration
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = stringsOr(strings.TrimSpace(c.Namespace), "nutrition")
	c.TaskQueue = stringsOr(strings.TrimSpace(c.TaskQueue), "nutrition-etl")
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	}
	if c.NamespaceRetentionDays < 1 || c.NamespaceRetentionDays > 365 {
		c.NamespaceRetentionDays = 7
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 2
	}
	if c.RetryMaxAttempts < 1 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 60 * time.Second
	}
	return c
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
