package config

import (
	"fmt"
	"strings"
)

// Validate reports configuration that must stop the process at startup.
func Validate(c Config) error {
	var problems []string

	switch c.GetEnv() {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		problems = append(problems, fmt.Sprintf("ENV must be one of %s|%s|%s, got %q", EnvDevelopment, EnvTest, EnvProduction, c.GetEnv()))
	}

	secret := c.GetJWTSecret()
	if secret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if c.GetEnv() == EnvProduction && len(secret) < c.GetMinSecretLength() {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d bytes in %s", c.GetMinSecretLength(), EnvProduction))
	}

	switch c.GetStore() {
	case StoreMongo, StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE must be %s or %s, got %q", StoreMongo, StoreMemory, c.GetStore()))
	}
	if c.GetEnv() == EnvProduction && c.GetStore() == StoreMemory {
		problems = append(problems, "STORE=memory is not allowed in "+EnvProduction)
	}

	if (c.GetAdminEmail() == "") != (c.GetAdminPassword() == "") {
		problems = append(problems, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
