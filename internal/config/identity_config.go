package config

import "time"

type IdentityConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetFirebaseProjectID() string
	GetFederatedVerifyTimeout() time.Duration
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Identity) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (Identity) GetFirebaseProjectID() string {
	return GetEnv("FIREBASE_PROJECT_ID", "")
}

// GetFederatedVerifyTimeout bounds each outbound call to an identity provider.
func (Identity) GetFederatedVerifyTimeout() time.Duration {
	return GetEnvDuration("FEDERATED_VERIFY_TIMEOUT", 10*time.Second)
}
