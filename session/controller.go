// Package session holds the controller that reconciles the developer-bypass
// and identity-provider paths into a single backend-issued session.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Dynpro/NextBI/backend"
	"github.com/Dynpro/NextBI/identity"
	"github.com/Dynpro/NextBI/internal/config"
	"github.com/Dynpro/NextBI/notify"
	"github.com/Dynpro/NextBI/tokenstore"
	"github.com/Dynpro/NextBI/users"
)

// defaultReadyTimeout bounds how long Login waits for provider
// initialization, matching the historical ten retries at 300ms.
const defaultReadyTimeout = 3 * time.Second

// User-facing messages produced by the error classification policy.
const (
	msgInitFailed      = "Could not start the sign-in service. Please try again later."
	msgBackendExchange = "Failed to authenticate with backend."
	msgDevLoginFailed  = "Development login failed"
	msgTenantMismatch  = "Your account does not belong to this organization. Contact your administrator for access."
	msgUserCancelled   = "Sign-in was cancelled or the window was blocked. Please try again."
	msgLoginFailed     = "Login failed."
)

// Navigator performs application-level navigation after login and logout.
type Navigator interface {
	NavigateHome()
	NavigateLogin()
}

// Exchanger is the slice of the backend client the controller drives. On
// success, implementations persist the session to the token store and publish
// a change notification before returning.
type Exchanger interface {
	ExchangeProviderIdentity(ctx context.Context, id backend.ProviderIdentity) (*users.User, error)
	ExchangeDevIdentity(ctx context.Context, email, displayName, avatar string) (*users.User, error)
}

// Controller is the session state machine. It is the sole writer of the token
// store after startup; every consumer reads session state through Snapshot.
type Controller struct {
	cfg      config.DevConfig
	store    tokenstore.Repo
	provider identity.Provider
	exchange Exchanger
	nav      Navigator

	readyTimeout time.Duration
	loginGroup   singleflight.Group
	unsubscribe  func()

	lock     sync.RWMutex
	state    State
	user     *users.User
	loading  bool
	errMsg   string
	resolved bool
}

// Option modifies the Controller instance.
type Option func(*Controller)

// WithReadyTimeout bounds how long Login waits for provider initialization
// (primarily for testing).
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.readyTimeout = d
	}
}

// New creates a session controller and subscribes it to the notification bus
// for the controller's lifetime. Call Close to detach.
func New(
	cfg config.DevConfig,
	store tokenstore.Repo,
	provider identity.Provider,
	exchange Exchanger,
	bus *notify.Bus,
	nav Navigator,
	options ...Option,
) (*Controller, error) {
	if store == nil {
		return nil, errors.New("[session.New] token store is required")
	}
	if provider == nil {
		return nil, errors.New("[session.New] identity provider is required")
	}
	if exchange == nil {
		return nil, errors.New("[session.New] backend exchanger is required")
	}
	if bus == nil {
		return nil, errors.New("[session.New] notification bus is required")
	}
	if nav == nil {
		return nil, errors.New("[session.New] navigator is required")
	}

	c := &Controller{
		cfg:          cfg,
		store:        store,
		provider:     provider,
		exchange:     exchange,
		nav:          nav,
		readyTimeout: defaultReadyTimeout,
		state:        StateUninitialized,
	}

	for _, opt := range options {
		opt(c)
	}

	c.unsubscribe = bus.Subscribe(c.onSessionChanged)
	return c, nil
}

// Close detaches the controller from the notification bus.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// Snapshot returns the current derived session state.
func (c *Controller) Snapshot() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return Snapshot{
		State:           c.state,
		IsAuthenticated: c.state == StateAuthenticated && c.user != nil,
		User:            c.user,
		Loading:         c.loading,
		Err:             c.errMsg,
	}
}

// Resolve runs the startup resolution once per controller: restore a stored
// session, run the developer bypass, or run the provider flow. Loading is
// forced false on every path, including failures.
func (c *Controller) Resolve(ctx context.Context) {
	c.lock.Lock()
	if c.resolved {
		c.lock.Unlock()
		return
	}
	c.resolved = true
	c.state = StateResolving
	c.loading = true
	c.lock.Unlock()

	defer c.setLoading(false)

	if c.cfg.GetDevBypass() {
		c.resolveDev(ctx)
		return
	}
	c.resolveProvider(ctx)
}

// resolveDev restores an existing session or synthesizes the default
// developer identity. The identity provider is never touched in this mode.
func (c *Controller) resolveDev(ctx context.Context) {
	if session, err := c.store.Get(); err == nil {
		log.Info().Str("user", session.User.Email).Msg("Restored stored developer session")
		c.setAuthenticated(session.User)
		return
	}

	user, err := c.exchange.ExchangeDevIdentity(ctx, c.cfg.GetDevEmail(), c.cfg.GetDevDisplayName(), c.cfg.GetDevAvatar())
	if err != nil {
		log.Err(err).Msg("Developer identity exchange failed during startup")
		c.setError(msgBackendExchange)
		return
	}
	c.setAuthenticated(user)
}

func (c *Controller) resolveProvider(ctx context.Context) {
	pending, err := c.provider.Initialize(ctx)
	if err != nil {
		log.Err(err).Msg("Identity provider initialization failed")
		c.setError(msgInitFailed)
		return
	}

	if pending != nil {
		c.finishProviderExchange(ctx, pending)
		return
	}

	// A persisted session is trusted as-is. Expiry is enforced by the
	// backend on the next authenticated call, in exchange for a startup with
	// no network round-trip.
	if session, err := c.store.Get(); err == nil {
		c.setAuthenticated(session.User)
		return
	}

	if account := c.provider.RestoreCachedAccount(); account != nil {
		c.finishProviderExchange(ctx, account)
		return
	}

	c.setUnauthenticated()
}

func (c *Controller) finishProviderExchange(ctx context.Context, account *identity.Account) {
	user, err := c.exchangeProviderAccount(ctx, account)
	if err != nil {
		log.Err(err).Msg("Provider identity exchange failed during startup")
		c.setError(msgBackendExchange)
		return
	}
	c.setAuthenticated(user)
}

// Login runs the interactive login for the configured mode. Concurrent calls
// are collapsed into a single in-flight attempt.
func (c *Controller) Login(ctx context.Context) error {
	_, err, _ := c.loginGroup.Do("login", func() (interface{}, error) {
		return nil, c.login(ctx)
	})
	return err
}

func (c *Controller) login(ctx context.Context) error {
	c.setLoading(true)
	defer c.setLoading(false)

	if c.cfg.GetDevBypass() {
		return c.loginDev(ctx)
	}
	return c.loginProvider(ctx)
}

func (c *Controller) loginDev(ctx context.Context) error {
	user, err := c.exchange.ExchangeDevIdentity(ctx, c.cfg.GetDevEmail(), c.cfg.GetDevDisplayName(), c.cfg.GetDevAvatar())
	if err != nil {
		c.setUnauthenticatedWithError(fmt.Sprintf("%s: %s", msgDevLoginFailed, err.Error()))
		return errors.Wrap(err, "[Controller.Login] dev exchange")
	}

	c.setAuthenticated(user)
	c.nav.NavigateHome()
	return nil
}

func (c *Controller) loginProvider(ctx context.Context) error {
	if err := c.waitReady(ctx); err != nil {
		c.setUnauthenticatedWithError(msgInitFailed)
		return errors.Wrap(err, "[Controller.Login] provider readiness")
	}

	// A cached account skips the interactive prompt entirely.
	account := c.provider.RestoreCachedAccount()
	if account == nil {
		var err error
		account, err = c.provider.LoginInteractive(ctx)
		if err != nil {
			c.setUnauthenticatedWithError(flowMessage(err))
			return errors.Wrap(err, "[Controller.Login] interactive login")
		}
	}

	user, err := c.exchangeProviderAccount(ctx, account)
	if err != nil {
		c.setUnauthenticatedWithError(msgBackendExchange)
		return errors.Wrap(err, "[Controller.Login] provider exchange")
	}

	c.setAuthenticated(user)
	c.nav.NavigateHome()
	return nil
}

// waitReady blocks until provider initialization completes, bounded by the
// configured timeout.
func (c *Controller) waitReady(ctx context.Context) error {
	select {
	case <-c.provider.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.readyTimeout):
		return errors.New("identity provider did not initialize in time")
	}
}

// Logout tears the local session down unconditionally, then makes a
// best-effort provider sign-out when the session came from the provider path.
func (c *Controller) Logout(ctx context.Context) {
	var method tokenstore.Method
	if session, err := c.store.Get(); err == nil {
		method = session.Method
	}

	if err := c.store.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear stored session")
	}
	c.setUnauthenticated()

	if method == tokenstore.MethodProvider {
		account := c.provider.RestoreCachedAccount()
		if err := c.provider.Logout(ctx, account); err != nil {
			log.Err(err).Msg("Provider sign-out failed, local session already cleared")
		}
	}

	c.nav.NavigateLogin()
}

// GetAccessToken returns a token for authenticated backend calls. Dev
// sessions return the stored backend token directly; provider sessions go
// through silent acquisition with an interactive fallback. An empty result
// means the caller must treat the session as unauthenticated.
func (c *Controller) GetAccessToken(ctx context.Context) string {
	session, err := c.store.Get()
	if err != nil {
		return ""
	}
	if session.Method == tokenstore.MethodDev {
		return session.Token
	}

	account := c.provider.RestoreCachedAccount()
	if account == nil {
		return ""
	}

	token, err := c.provider.AcquireTokenSilently(ctx, account)
	if err == nil {
		return token
	}
	if !errors.Is(err, identity.ErrInteractionRequired) {
		log.Err(err).Msg("Silent token acquisition failed")
		return ""
	}

	token, err = c.provider.AcquireTokenInteractive(ctx, account)
	if err != nil {
		log.Err(err).Msg("Interactive token acquisition failed")
		return ""
	}
	return token
}

func (c *Controller) exchangeProviderAccount(ctx context.Context, account *identity.Account) (*users.User, error) {
	return c.exchange.ExchangeProviderIdentity(ctx, backend.ProviderIdentity{
		AzureID:     account.ID,
		DisplayName: account.DisplayName,
		Email:       account.Email,
		PhotoURL:    account.PhotoURL,
	})
}

// onSessionChanged re-reads the token store on every broadcast. The event
// payload is advisory; the store stays the single source of truth.
func (c *Controller) onSessionChanged(notify.Event) {
	session, err := c.store.Get()

	c.lock.Lock()
	defer c.lock.Unlock()

	// Startup resolution or an in-flight login owns the state until it
	// finishes.
	if c.loading {
		return
	}

	if err != nil || session == nil {
		if c.state == StateAuthenticated {
			c.state = StateUnauthenticated
			c.user = nil
		}
		return
	}

	c.state = StateAuthenticated
	c.user = session.User
	c.errMsg = ""
}

// flowMessage maps a classified interactive-flow error to its user-facing
// message.
func flowMessage(err error) string {
	switch identity.CodeOf(err) {
	case identity.FlowTenantMismatch:
		return msgTenantMismatch
	case identity.FlowUserCancelled:
		return msgUserCancelled
	}

	var fe *identity.FlowError
	if errors.As(err, &fe) && fe.Err != nil {
		return fe.Err.Error()
	}
	return msgLoginFailed
}

func (c *Controller) setAuthenticated(user *users.User) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.state = StateAuthenticated
	c.user = user
	c.errMsg = ""
}

func (c *Controller) setUnauthenticated() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.state = StateUnauthenticated
	c.user = nil
	c.errMsg = ""
}

func (c *Controller) setUnauthenticatedWithError(msg string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.state = StateUnauthenticated
	c.user = nil
	c.errMsg = msg
}

func (c *Controller) setError(msg string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.state = StateError
	c.user = nil
	c.errMsg = msg
}

func (c *Controller) setLoading(v bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.loading = v
}
