package config

import (
	"strings"
	"time"
)

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetAuthRatePerMinute() int
	GetAuthRateBurst() int
	GetRateLimiterCleanupInterval() time.Duration
	GetMinSecretLength() int
	GetTrustProxy() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetEnableRateLimiting() bool {
	return GetEnv("AUTH_RATE_LIMIT", "on") != "off"
}

func (Security) GetAuthRatePerMinute() int {
	return GetEnvInt("AUTH_RATE_PER_MINUTE", 20)
}

func (Security) GetAuthRateBurst() int {
	return GetEnvInt("AUTH_RATE_BURST", 10)
}

func (Security) GetRateLimiterCleanupInterval() time.Duration {
	return 5 * time.Minute
}

func (Security) GetMinSecretLength() int {
	return 32
}

// GetTrustProxy reports whether client addresses may be taken from
// X-Forwarded-For / X-Real-IP. Only enable it behind a proxy that overwrites them.
func (Security) GetTrustProxy() bool {
	switch strings.ToLower(GetEnv("TRUST_PROXY", "false")) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
