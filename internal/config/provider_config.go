package config

import (
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ProviderConfig configures the external OIDC identity provider.
type ProviderConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetTenantID() string
	GetScopes() []string
	GetCallbackPort() int
}

type Provider struct{}

var _ ProviderConfig = Provider{}

func (Provider) GetIssuerURL() string {
	return GetEnv("NEXTBI_OIDC_ISSUER", "https://login.microsoftonline.com/common/v2.0")
}

func (Provider) GetClientID() string {
	return GetEnv("NEXTBI_OIDC_CLIENT_ID", "")
}

// GetTenantID returns the organization tenant the signed-in account must
// belong to. Empty means any tenant is accepted.
func (Provider) GetTenantID() string {
	return GetEnv("NEXTBI_OIDC_TENANT_ID", "")
}

func (Provider) GetScopes() []string {
	return []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
}

func (Provider) GetCallbackPort() int {
	port, err := strconv.Atoi(GetEnv("NEXTBI_CALLBACK_PORT", "53682"))
	if err != nil {
		return 53682
	}
	return port
}
