package local

import "time"

// Config configures the local identity provider.
type Config struct {
	// SigningKey signs the bearer tokens. Required.
	SigningKey []byte

	// Issuer is the iss claim stamped on bearer tokens.
	Issuer string

	// Audience is the aud claim stamped on bearer tokens.
	Audience []string

	// TokenTTL bounds the bearer token lifetime (default: 1h).
	TokenTTL time.Duration

	// MaxAttempts is the failed sign-in threshold before the provider
	// rate limits an email (default: 5).
	MaxAttempts int

	// AttemptWindow is the sliding window for MaxAttempts (default: 1m).
	AttemptWindow time.Duration

	// MinPasswordLength mirrors the hosted provider's password policy
	// (default: 6).
	MinPasswordLength int
}

func (c Config) withDefaults() Config {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = time.Minute
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = 6
	}
	return c
}
