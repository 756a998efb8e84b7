package config

import (
	"os"
	"path/filepath"
)

const (
	appNameVar    = "APP_NAME"
	dataFolderVar = "NEXTBI_DATA_FOLDER"
)

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "NextBI")
}

// GetDataFolder returns the directory holding the durable session and
// provider-cache files. Defaults to ~/.config/nextbi.
func (EnvVars) GetDataFolder() string {
	if folder := GetEnv(dataFolderVar, ""); folder != "" {
		return folder
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".config", "nextbi")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
