package config

import "fmt"

// RefreshConfig controls the proactive token refresh job
type RefreshConfig struct {
	ProactiveEnabled         bool
	ExpiryMarginSeconds      int
	ProactiveIntervalSeconds int
}

func (c *RefreshConfig) Validate() error {
	if c.ExpiryMarginSeconds < 0 {
		return fmt.Errorf("the token expiry margin cannot be negative (%d)", c.ExpiryMarginSeconds)
	}
	if c.ProactiveEnabled && c.ProactiveIntervalSeconds <= 0 {
		return fmt.Errorf("proactive refresh is enabled but the interval is invalid (%d)", c.ProactiveIntervalSeconds)
	}
	return nil
}
