package config

type Config interface {
	EnvConfig
	OAuthConfig
	GatewayConfig
	SessionConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetAPIBaseURL() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Gateway
	Session
	Storage
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newMainConfig(nil)
}

func newMainConfig(v values) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{v},
		OAuth:   OAuth{v},
		Gateway: Gateway{v},
		Session: Session{v},
		Storage: Storage{v},
	}
}
