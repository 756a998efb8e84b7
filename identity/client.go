package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/Dynpro/NextBI/internal/config"
	"github.com/Dynpro/NextBI/notify"
	"github.com/Dynpro/NextBI/tokenstore"
)

// startError marks a redirect flow that could not even begin (no listener, no
// browser). Only these fall back to the device-code prompt; a failure inside
// the flow is final.
type startError struct {
	err error
}

func (e *startError) Error() string { return e.err.Error() }
func (e *startError) Unwrap() error { return e.err }

// Client is the OIDC implementation of Provider. One initialized instance is
// shared for the process lifetime.
type Client struct {
	cfg   config.Config
	cache *accountCache

	initLock    sync.Mutex
	initialized bool
	ready       chan struct{}

	provider    *oidc.Provider
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	endSession  string

	httpClient *http.Client
}

var _ Provider = (*Client)(nil)

// NewClient creates an uninitialized identity client. It subscribes to the
// notification bus so that a completed backend exchange clears the pending
// marker on the provider cache.
func NewClient(cfg config.Config, bus *notify.Bus) (*Client, error) {
	if bus == nil {
		return nil, errors.New("[identity.NewClient] notification bus is required")
	}
	cache, err := newAccountCache(cfg.GetDataFolder())
	if err != nil {
		return nil, errors.Wrap(err, "[identity.NewClient]")
	}

	client := &Client{
		cfg:        cfg,
		cache:      cache,
		ready:      make(chan struct{}),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	bus.Subscribe(func(event notify.Event) {
		if event.Method == tokenstore.MethodProvider {
			client.cache.markExchanged()
		}
	})

	return client, nil
}

// Initialize runs OIDC discovery and completes any pending interactive result
// left behind by a previous run. A second call is a no-op; a failed call may
// be retried.
func (c *Client) Initialize(ctx context.Context) (*Account, error) {
	c.initLock.Lock()
	if !c.initialized {
		if err := c.initialize(ctx); err != nil {
			c.initLock.Unlock()
			return nil, errors.Wrap(err, "[Client.Initialize]")
		}
		c.initialized = true
		close(c.ready)
	}
	c.initLock.Unlock()

	// A pending entry is an interactive login whose backend exchange never
	// completed. Hand the account back so the caller can finish the job; the
	// marker is cleared when the exchange notification arrives.
	if entry := c.cache.load(); entry != nil && entry.Pending {
		account := entry.Account
		log.Info().Str("account", account.Email).Msg("Completing pending interactive login")
		return &account, nil
	}
	return nil, nil
}

func (c *Client) initialize(ctx context.Context) error {
	provider, err := oidc.NewProvider(ctx, c.cfg.GetIssuerURL())
	if err != nil {
		return errors.Wrap(err, "oidc.NewProvider")
	}

	var discovery struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
		DeviceAuthEndpoint string `json:"device_authorization_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		log.Err(err).Msg("Failed to read provider discovery document extras")
	}

	endpoint := provider.Endpoint()
	if discovery.DeviceAuthEndpoint != "" {
		endpoint.DeviceAuthURL = discovery.DeviceAuthEndpoint
	}

	c.provider = provider
	c.endSession = discovery.EndSessionEndpoint
	c.oauthConfig = &oauth2.Config{
		ClientID: c.cfg.GetClientID(),
		Endpoint: endpoint,
		Scopes:   c.cfg.GetScopes(),
	}
	c.verifier = provider.Verifier(&oidc.Config{ClientID: c.cfg.GetClientID()})
	return nil
}

// Ready is closed once Initialize has completed successfully.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

func (c *Client) isInitialized() bool {
	c.initLock.Lock()
	defer c.initLock.Unlock()
	return c.initialized
}

// RestoreCachedAccount re-derives the account handle from the provider's own
// cache. No network involved.
func (c *Client) RestoreCachedAccount() *Account {
	entry := c.cache.load()
	if entry == nil {
		return nil
	}
	if entry.Account.ID != "" {
		account := entry.Account
		return &account
	}
	if entry.IDToken != "" {
		if account, err := accountFromIDToken(entry.IDToken); err == nil {
			return account
		}
	}
	return nil
}

// AcquireTokenSilently returns a provider access token without prompting,
// refreshing through the token endpoint when the cached one has expired.
func (c *Client) AcquireTokenSilently(ctx context.Context, account *Account) (string, error) {
	if !c.isInitialized() {
		return "", ErrNotInitialized
	}
	if account == nil {
		return "", ErrNoAccount
	}

	entry := c.cache.load()
	if entry == nil || entry.Token == nil || entry.Account.ID != account.ID {
		return "", ErrInteractionRequired
	}
	if entry.Token.Valid() {
		return entry.Token.AccessToken, nil
	}
	if entry.Token.RefreshToken == "" {
		return "", ErrInteractionRequired
	}

	refreshed, err := c.oauthConfig.TokenSource(ctx, entry.Token).Token()
	if err != nil {
		if interactionRequired(err) {
			return "", ErrInteractionRequired
		}
		return "", errors.Wrap(err, "[Client.AcquireTokenSilently] refresh")
	}

	entry.Token = refreshed
	if err := c.cache.save(entry); err != nil {
		log.Err(err).Msg("Failed to persist refreshed provider token")
	}
	return refreshed.AccessToken, nil
}

// LoginInteractive runs the browser redirect flow. When the redirect flow
// fails before the provider is ever reached, it falls back to the device-code
// prompt.
func (c *Client) LoginInteractive(ctx context.Context) (*Account, error) {
	if !c.isInitialized() {
		return nil, ErrNotInitialized
	}

	account, err := c.loginRedirect(ctx)
	if err == nil {
		return account, nil
	}

	var se *startError
	if !errors.As(err, &se) {
		return nil, err
	}
	log.Err(se.err).Msg("Redirect login could not start, falling back to device code flow")
	return c.loginDeviceCode(ctx)
}

// AcquireTokenInteractive obtains a fresh provider token through an
// interactive prompt.
func (c *Client) AcquireTokenInteractive(ctx context.Context, account *Account) (string, error) {
	fresh, err := c.LoginInteractive(ctx)
	if err != nil {
		return "", err
	}
	if account != nil && fresh.ID != account.ID {
		log.Warn().Str("expected", account.Email).Str("got", fresh.Email).
			Msg("Interactive acquisition signed in a different account")
	}

	entry := c.cache.load()
	if entry == nil || entry.Token == nil {
		return "", ErrNoAccount
	}
	return entry.Token.AccessToken, nil
}

// Logout clears the provider cache and makes a best-effort RP-initiated
// sign-out against the provider's end-session endpoint.
func (c *Client) Logout(ctx context.Context, account *Account) error {
	if err := c.cache.clear(); err != nil {
		log.Err(err).Msg("Failed to clear provider account cache")
	}
	if c.endSession == "" || account == nil {
		return nil
	}

	endSessionURL, err := url.Parse(c.endSession)
	if err != nil {
		return errors.Wrap(err, "[Client.Logout] end session URL")
	}
	query := endSessionURL.Query()
	query.Set("client_id", c.cfg.GetClientID())
	endSessionURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endSessionURL.String(), nil)
	if err != nil {
		return errors.Wrap(err, "[Client.Logout] NewRequest")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Client.Logout] end session request")
	}
	resp.Body.Close()
	return nil
}

func (c *Client) loginRedirect(ctx context.Context) (*Account, error) {
	server := newCallbackServer(c.cfg.GetCallbackPort())
	redirectURL, err := server.Start()
	if err != nil {
		return nil, &startError{err: err}
	}
	defer server.Stop()

	state := uuid.New().String()
	nonce := uuid.New().String()
	verifier := oauth2.GenerateVerifier()

	flowConfig := *c.oauthConfig
	flowConfig.RedirectURL = redirectURL
	authURL := flowConfig.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)

	if err := openBrowser(authURL); err != nil {
		return nil, &startError{err: err}
	}

	result, err := server.Wait(ctx)
	if err != nil {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.Wrap(err, "callback wait")}
	}
	if result.Error != "" {
		return nil, classifyCallbackError(result.Error, result.ErrorDescription)
	}
	if result.State != state {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.New("state mismatch in provider callback")}
	}

	token, err := flowConfig.Exchange(ctx, result.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.Wrap(err, "code exchange")}
	}

	return c.completeLogin(ctx, token, nonce)
}

func (c *Client) loginDeviceCode(ctx context.Context) (*Account, error) {
	if c.oauthConfig.Endpoint.DeviceAuthURL == "" {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.New("provider does not support the device code flow")}
	}

	resp, err := c.oauthConfig.DeviceAuth(ctx)
	if err != nil {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.Wrap(err, "device auth request")}
	}

	fmt.Printf("To sign in, visit %s and enter the code %s\n", resp.VerificationURI, resp.UserCode)

	token, err := c.oauthConfig.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, classifyDeviceError(err)
	}

	return c.completeLogin(ctx, token, "")
}

// completeLogin verifies the ID token, checks tenant membership, and persists
// the account to the provider cache with the pending marker set.
func (c *Client) completeLogin(ctx context.Context, token *oauth2.Token, nonce string) (*Account, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.New("no ID token in provider response")}
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.Wrap(err, "ID token verification")}
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.New("nonce mismatch")}
	}

	var claims struct {
		Sub       string `json:"sub"`
		OID       string `json:"oid"`
		Email     string `json:"email"`
		Preferred string `json:"preferred_username"`
		Name      string `json:"name"`
		Picture   string `json:"picture"`
		TID       string `json:"tid"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, &FlowError{Code: FlowGeneric, Err: errors.Wrap(err, "extract claims")}
	}

	if want := c.cfg.GetTenantID(); want != "" && claims.TID != "" && claims.TID != want {
		return nil, &FlowError{
			Code: FlowTenantMismatch,
			Err:  errors.Errorf("account belongs to tenant %s, expected %s", claims.TID, want),
		}
	}

	account := &Account{
		ID:          claims.OID,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
		TenantID:    claims.TID,
	}
	if account.ID == "" {
		account.ID = claims.Sub
	}
	if account.Email == "" {
		account.Email = claims.Preferred
	}

	entry := &cachedEntry{
		Account: *account,
		Token:   token,
		IDToken: rawIDToken,
		Pending: true,
	}
	if err := c.cache.save(entry); err != nil {
		log.Err(err).Msg("Failed to persist provider account cache")
	}

	log.Info().Str("account", account.Email).Msg("Interactive provider login completed")
	return account, nil
}
