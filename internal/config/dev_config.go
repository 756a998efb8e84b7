package config

import (
	"net/url"
	"strconv"
	"strings"
)

// DevConfig configures the developer bypass: a local-only authentication path
// that skips the external identity provider entirely.
type DevConfig interface {
	GetDevBypass() bool
	GetDevEmail() string
	GetDevDisplayName() string
	GetDevAvatar() string
}

type Dev struct{}

var _ DevConfig = Dev{}

// localHostnames are the backend hosts that automatically enable the
// developer bypass, matching a local development deployment.
var localHostnames = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// GetDevBypass reports whether the developer bypass is enabled. The explicit
// flag wins when set; otherwise bypass is enabled when the backend runs on a
// recognized local-development host.
func (Dev) GetDevBypass() bool {
	if flag := GetEnv("NEXTBI_DEV_BYPASS", ""); flag != "" {
		enabled, err := strconv.ParseBool(flag)
		return err == nil && enabled
	}
	return isLocalHost(Backend{}.GetAPIBaseURL())
}

func (Dev) GetDevEmail() string {
	return GetEnv("NEXTBI_DEV_EMAIL", "dev@nextbi.local")
}

func (Dev) GetDevDisplayName() string {
	return GetEnv("NEXTBI_DEV_NAME", "NextBI Developer")
}

func (Dev) GetDevAvatar() string {
	return GetEnv("NEXTBI_DEV_AVATAR", "")
}

func isLocalHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if localHostnames[host] {
		return true
	}
	return strings.HasSuffix(host, ".local")
}
