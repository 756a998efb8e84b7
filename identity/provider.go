// Package identity wraps the external OIDC identity provider behind a small
// Provider interface the session controller can drive.
package identity

import (
	"context"

	"github.com/pkg/errors"
)

// FlowCode classifies an interactive login failure. Classification happens
// once, at the provider boundary, so callers never re-parse free-text
// provider messages.
type FlowCode int

const (
	FlowGeneric FlowCode = iota
	FlowTenantMismatch
	FlowUserCancelled
)

// FlowError tags a provider error with its FlowCode.
type FlowError struct {
	Code FlowCode
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "identity provider error"
}

func (e *FlowError) Unwrap() error { return e.Err }

// CodeOf returns the FlowCode carried by err, or FlowGeneric when err is not
// a FlowError.
func CodeOf(err error) FlowCode {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return FlowGeneric
}

var (
	// ErrInteractionRequired signals that silent token acquisition cannot
	// proceed and the caller should fall back to an interactive prompt. It is
	// a control-flow signal, not a failure.
	ErrInteractionRequired = errors.New("interaction required")

	// ErrNotInitialized is returned by operations that need a completed
	// Initialize first.
	ErrNotInitialized = errors.New("identity provider not initialized")

	// ErrNoAccount is returned by flows that finish without a signed-in
	// account.
	ErrNoAccount = errors.New("no provider account")
)

// Account is an opaque handle to a signed-in provider identity. It is
// re-derived from the provider's own cache on each start and never written to
// the token store.
type Account struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
	TenantID    string
}

// Provider is the identity-provider abstraction. Implementations own a single
// initialized client per process.
type Provider interface {
	// Initialize sets the client up and completes any pending interactive
	// result left behind by a previous run, returning its account when one
	// exists. Calling it again once initialized is a no-op, not an error.
	Initialize(ctx context.Context) (*Account, error)

	// Ready is closed once Initialize has completed successfully.
	Ready() <-chan struct{}

	// RestoreCachedAccount returns a previously signed-in account from the
	// provider's own cache without touching the network.
	RestoreCachedAccount() *Account

	// AcquireTokenSilently refreshes the provider token non-interactively.
	// It returns ErrInteractionRequired when only a prompt can help.
	AcquireTokenSilently(ctx context.Context, account *Account) (string, error)

	// LoginInteractive runs the browser redirect flow, falling back to the
	// device-code flow when the redirect flow cannot start. Failures are
	// classified FlowErrors.
	LoginInteractive(ctx context.Context) (*Account, error)

	// AcquireTokenInteractive obtains a provider token through an
	// interactive prompt for an already known account.
	AcquireTokenInteractive(ctx context.Context, account *Account) (string, error)

	// Logout performs provider-side sign-out. Failures must not block local
	// session teardown.
	Logout(ctx context.Context, account *Account) error
}
