package config

import "time"

type TokenConfig interface {
	GetJWTSecret() string
	GetJWTIssuer() string
	GetSessionTokenExpiry() time.Duration
	GetResetTokenExpiry() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

// GetJWTSecret has no default. An empty secret fails Validate.
func (Token) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Token) GetJWTIssuer() string {
	return GetEnv("JWT_ISSUER", EnvVars{}.GetBaseURL())
}

func (Token) GetSessionTokenExpiry() time.Duration {
	return GetEnvDuration("SESSION_TOKEN_EXPIRY", 24*time.Hour)
}

func (Token) GetResetTokenExpiry() time.Duration {
	return GetEnvDuration("RESET_TOKEN_EXPIRY", 1*time.Hour)
}
