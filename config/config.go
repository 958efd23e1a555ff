package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from a Vars snapshot using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - http.go: push endpoint server configuration
//   - twitter.go: Twitter API endpoint and variable names read at call time
//   - observability.go: logging and metrics configuration
//
// Twitter credentials and the direct-message recipient are deliberately not
// struct fields: they are resolved through Vars.Get when a delivery needs them.
type AppConfig struct {
	// Vars is the environment snapshot the rest of the config was parsed from.
	Vars Vars

	// HTTP push endpoint configuration
	HTTP HTTPConfig

	// Twitter API configuration
	Twitter TwitterConfig

	// Push token verification
	PushAuth PushAuthConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Parse builds an AppConfig from the given snapshot and sanitizes it.
func Parse(vars Vars) (AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Vars = vars
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	if c.Vars == nil {
		c.Vars = Vars{}
	}
	c.HTTP.Sanitize()
	c.Twitter.Sanitize()
	c.PushAuth.Sanitize()
	c.Observability.Sanitize()
}

// Validate rejects combinations that cannot run safely.
func (c *AppConfig) Validate() error {
	if c.PushAuth.Enabled && c.PushAuth.Audience == "" {
		return errors.New("PUSH_AUTH_AUDIENCE is required when PUSH_AUTH_ENABLED=true")
	}
	return nil
}
