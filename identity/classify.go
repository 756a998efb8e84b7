package identity

import (
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// classifyCallbackError maps a provider callback error response to a tagged
// FlowError. The OAuth error code is structured, so no message matching is
// needed to tell a cancelled prompt from anything else.
func classifyCallbackError(code, description string) error {
	base := errors.Errorf("%s: %s", code, description)
	switch code {
	case "access_denied", "login_required", "interaction_required":
		return &FlowError{Code: FlowUserCancelled, Err: base}
	case "invalid_tenant", "unauthorized_tenant":
		return &FlowError{Code: FlowTenantMismatch, Err: base}
	}
	return &FlowError{Code: FlowGeneric, Err: base}
}

// classifyDeviceError maps a device-code flow failure to a tagged FlowError.
// An expired or denied device prompt means the user walked away.
func classifyDeviceError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "access_denied", "expired_token":
			return &FlowError{Code: FlowUserCancelled, Err: err}
		}
	}
	return &FlowError{Code: FlowGeneric, Err: err}
}

// interactionRequired reports whether a token endpoint error means the cached
// refresh token can no longer be used without a prompt.
func interactionRequired(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	switch re.ErrorCode {
	case "invalid_grant", "interaction_required", "login_required", "consent_required":
		return true
	}
	return false
}
