package config

import (
	"strings"
	"time"
)

const defaultTwitterBaseURL = "https://api.twitter.com"

// Variables read through Vars.Get at delivery time.
const (
	VarAppKey                   = "APP_KEY"
	VarAppSecret                = "APP_SECRET"
	VarToken                    = "TOKEN"
	VarTokenSecret              = "TOKEN_SECRET"
	VarDirectMessageRecipientID = "DIRECT_MESSAGE_RECIPIENT_ID"
)

// TwitterConfig controls where and how the Twitter API is called.
type TwitterConfig struct {
	// BaseURL is the API origin; overridden in tests.
	BaseURL string `env:"TWITTER_API_BASE_URL" envDefault:"https://api.twitter.com"`

	// Timeout bounds each API call. Zero means no client-side timeout.
	Timeout time.Duration `env:"TWITTER_TIMEOUT" envDefault:"0s"`
}

// Sanitize normalises the base URL and clamps the timeout.
func (c *TwitterConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(trim(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultTwitterBaseURL
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
