package config

import (
	"fmt"
	"net/url"
)

// UpstreamConfig describes the portal backend the gateway forwards requests to
type UpstreamConfig struct {
	BaseURL               *url.URL
	RefreshPath           string
	RequestTimeoutSeconds int
}

func (c *UpstreamConfig) Validate() error {
	if c.BaseURL == nil {
		return fmt.Errorf("the upstream config is missing the base url of the portal backend")
	}
	if c.RefreshPath == "" {
		return fmt.Errorf("the upstream config is missing the path of the token refresh endpoint")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid upstream request timeout (%d)", c.RequestTimeoutSeconds)
	}
	return nil
}
