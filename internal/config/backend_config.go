package config

import "time"

type BackendConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

// GetAPIBaseURL returns the base URL of the NextBI backend
// (e.g. "https://bi.example.com").
func (Backend) GetAPIBaseURL() string {
	return GetEnv("NEXTBI_API_URL", "http://localhost:5000")
}

func (Backend) GetHTTPTimeout() time.Duration {
	return 30 * time.Second
}
