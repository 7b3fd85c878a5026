package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	IdentityConfig
	SecurityConfig
	MailConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetFrontendURL() string
	GetAdminEmail() string
	GetAdminPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Identity
	Security
	Mail
	Store
}

func New() Config {
	return mainConfig{}
}
