package config

type Config interface {
	EnvConfig
	GatewayConfig
	SessionConfig
}

type mainConfig struct {
	EnvVars
	Gateway
	Session
}

func New() Config {
	return mainConfig{}
}
