package regioncache

import "time"

// Config carries the §4.4 option table. Values come from
// internal/core/config's env loader in production; tests construct
// this directly.
type Config struct {
	MaxEntries            int
	EnableDepressurize    bool
	MinFreePercentage     int
	TargetFreePercentage  int
	IterationInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = 32
	}
	if c.MinFreePercentage <= 0 {
		c.MinFreePercentage = 10
	}
	if c.TargetFreePercentage <= 0 {
		c.TargetFreePercentage = 20
	}
	if c.IterationInterval <= 0 {
		c.IterationInterval = 50 * time.Millisecond
	}
	return c
}
