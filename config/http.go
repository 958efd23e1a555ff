package config

import "time"

const defaultMaxBodyBytes = 1 << 20

// HTTPConfig contains push endpoint server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// ReadHeaderTimeout bounds how long a client may take to send request headers.
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`

	// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// MaxBodyBytes caps the size of a push envelope.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 5 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = defaultMaxBodyBytes
	}
}

// PushAuthConfig controls verification of the OIDC bearer token attached to push requests.
type PushAuthConfig struct {
	Enabled bool `env:"PUSH_AUTH_ENABLED" envDefault:"false"`
	// Audience is the expected "aud" claim, usually the push endpoint URL.
	Audience string `env:"PUSH_AUTH_AUDIENCE"`
	Issuer   string `env:"PUSH_AUTH_ISSUER"   envDefault:"https://accounts.google.com"`
	// ServiceAccount, when set, must match the token's verified email claim.
	ServiceAccount string `env:"PUSH_AUTH_SERVICE_ACCOUNT"`
}

// Sanitize normalises push auth values.
func (c *PushAuthConfig) Sanitize() {
	c.Audience = trim(c.Audience)
	c.Issuer = trim(c.Issuer)
	c.ServiceAccount = trim(c.ServiceAccount)
	if c.Issuer == "" {
		c.Issuer = "https://accounts.google.com"
	}
}
