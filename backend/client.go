// Package backend exchanges identity assertions for NextBI backend sessions.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Dynpro/NextBI/internal/config"
	"github.com/Dynpro/NextBI/notify"
	"github.com/Dynpro/NextBI/tokenstore"
	"github.com/Dynpro/NextBI/users"
)

const (
	routeDevExchange      = "/api/auth/dev"
	routeProviderExchange = "/api/auth/azure"
	routeMe               = "/api/auth/me"
)

// ProviderIdentity is the assertion sent to the provider exchange endpoint,
// taken from a signed-in provider account.
type ProviderIdentity struct {
	AzureID     string `json:"azureId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

type devIdentity struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// exchangeResponse is the envelope both exchange endpoints return.
type exchangeResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Token string      `json:"token"`
		User  *users.User `json:"user"`
	} `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

type meResponse struct {
	Success bool            `json:"success"`
	Data    *users.User     `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ExchangeError carries the backend's error payload unmodified so callers see
// exactly what the backend said.
type ExchangeError struct {
	StatusCode int
	Payload    string
}

func (e *ExchangeError) Error() string {
	if e.Payload != "" {
		return e.Payload
	}
	return fmt.Sprintf("backend exchange failed with status %d", e.StatusCode)
}

// Client talks to the NextBI backend auth endpoints. On a successful exchange
// the session is written to the token store and a change notification is
// published before the call returns; on failure nothing is stored.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      tokenstore.Repo
	bus        *notify.Bus
}

func NewClient(cfg config.BackendConfig, store tokenstore.Repo, bus *notify.Bus) (*Client, error) {
	if store == nil {
		return nil, errors.New("[backend.NewClient] token store is required")
	}
	if bus == nil {
		return nil, errors.New("[backend.NewClient] notification bus is required")
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.GetAPIBaseURL(), "/"),
		httpClient: &http.Client{Timeout: cfg.GetHTTPTimeout()},
		store:      store,
		bus:        bus,
	}, nil
}

// ExchangeProviderIdentity trades a provider account for a backend session.
func (c *Client) ExchangeProviderIdentity(ctx context.Context, id ProviderIdentity) (*users.User, error) {
	return c.exchange(ctx, routeProviderExchange, id, tokenstore.MethodProvider)
}

// ExchangeDevIdentity trades a developer identity descriptor for a backend
// session without any provider involvement.
func (c *Client) ExchangeDevIdentity(ctx context.Context, email, displayName, avatar string) (*users.User, error) {
	body := devIdentity{Email: email, DisplayName: displayName, Avatar: avatar}
	return c.exchange(ctx, routeDevExchange, body, tokenstore.MethodDev)
}

// Me returns the canonical user for the currently stored session token.
func (c *Client) Me(ctx context.Context) (*users.User, error) {
	session, err := c.store.Get()
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Me] store.Get")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+routeMe, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Me] NewRequest")
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Me] Do")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Me] ReadAll")
	}

	var envelope meResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Payload: string(raw)}
	}
	if !envelope.Success || envelope.Data == nil {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Payload: rawErrorString(envelope.Error)}
	}
	return envelope.Data, nil
}

func (c *Client) exchange(ctx context.Context, route string, body any, method tokenstore.Method) (*users.User, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.exchange] Marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.exchange] NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.exchange] Do")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.exchange] ReadAll")
	}

	var envelope exchangeResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Payload: string(raw)}
	}
	if !envelope.Success || envelope.Data == nil || envelope.Data.Token == "" || envelope.Data.User == nil {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Payload: rawErrorString(envelope.Error)}
	}

	if err := c.store.Set(envelope.Data.Token, envelope.Data.User, method); err != nil {
		return nil, errors.Wrap(err, "[Client.exchange] store.Set")
	}
	c.bus.Publish(notify.Event{Method: method, User: envelope.Data.User})

	log.Info().
		Str("method", string(method)).
		Str("user", envelope.Data.User.Email).
		Msg("Identity exchange succeeded")

	return envelope.Data.User, nil
}

// rawErrorString unwraps a JSON string error payload; any other shape is
// passed through as-is.
func rawErrorString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
