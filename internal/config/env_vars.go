package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar       = "PORT"
	appNameVar       = "APP_NAME"
	baseURLVar       = "BASE_URL"
	frontendURLVar   = "FRONTEND_URL"
	adminEmailVar    = "ADMIN_EMAIL"
	adminPasswordVar = "ADMIN_PASSWORD"
	environmentVar   = "ENV"
	defaultPort      = "1200"
	defaultFrontend  = "http://localhost:5173"
	defaultAppName   = "Project Hub"
	defaultBaseURL   = "http://localhost:1200"
	EnvDevelopment   = "DEV"
	EnvTest          = "TEST"
	EnvProduction    = "PROD"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, defaultPort)
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, defaultAppName)
}

func (EnvVars) GetEnv() string {
	return strings.ToUpper(GetEnv(environmentVar, EnvDevelopment))
}

// GetBaseURL returns the public URL of this API (e.g., "https://api.example.com")
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, defaultBaseURL)
}

// GetFrontendURL returns the browser client's URL, used to build password reset links
func (EnvVars) GetFrontendURL() string {
	return strings.TrimRight(GetEnv(frontendURLVar, defaultFrontend), "/")
}

func (EnvVars) GetAdminEmail() string {
	return GetEnv(adminEmailVar, "")
}

func (EnvVars) GetAdminPassword() string {
	return GetEnv(adminPasswordVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration string ("24h", "90s"); malformed values fall back to the default.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
