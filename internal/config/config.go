package config

type Config interface {
	EnvConfig
	BackendConfig
	DevConfig
	ProviderConfig
}

type mainConfig struct {
	EnvVars
	Backend
	Dev
	Provider
}

func New() Config {
	return mainConfig{}
}
