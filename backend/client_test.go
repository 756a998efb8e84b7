package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dynpro/NextBI/backend"
	"github.com/Dynpro/NextBI/notify"
	"github.com/Dynpro/NextBI/tokenstore"
	"github.com/Dynpro/NextBI/tokenstore/repofakes"
	"github.com/Dynpro/NextBI/users"
)

type testBackendConfig struct {
	baseURL string
}

func (c testBackendConfig) GetAPIBaseURL() string         { return c.baseURL }
func (c testBackendConfig) GetHTTPTimeout() time.Duration { return 5 * time.Second }

// testFixture holds the client with its store and bus.
type testFixture struct {
	client *backend.Client
	store  *repofakes.FakeTokenRepo
	bus    *notify.Bus
	events []notify.Event
}

func setupTestFixture(t *testing.T, handler http.Handler) *testFixture {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := repofakes.NewFakeTokenRepo()
	bus := notify.NewBus()

	client, err := backend.NewClient(testBackendConfig{baseURL: server.URL}, store, bus)
	require.NoError(t, err)

	f := &testFixture{client: client, store: store, bus: bus}
	bus.Subscribe(func(event notify.Event) { f.events = append(f.events, event) })
	return f
}

func successHandler(t *testing.T, wantRoute string, capture *map[string]any) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, wantRoute, r.URL.Path)

		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"token": "session-token-1",
				"user": map[string]any{
					"id":          "user-1",
					"email":       "john.doe@example.com",
					"displayName": "John Doe",
				},
			},
		})
	})
}

func TestExchangeDevIdentityStoresSessionAndPublishes(t *testing.T) {
	var body map[string]any
	f := setupTestFixture(t, successHandler(t, "/api/auth/dev", &body))

	user, err := f.client.ExchangeDevIdentity(context.Background(), "dev@nextbi.local", "NextBI Developer", "")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)

	require.Equal(t, "dev@nextbi.local", body["email"])
	require.Equal(t, "NextBI Developer", body["displayName"])

	session, err := f.store.Get()
	require.NoError(t, err)
	require.Equal(t, "session-token-1", session.Token)
	require.Equal(t, tokenstore.MethodDev, session.Method)
	require.Equal(t, "user-1", session.User.ID)

	require.Len(t, f.events, 1)
	require.Equal(t, tokenstore.MethodDev, f.events[0].Method)
	require.Equal(t, "user-1", f.events[0].User.ID)
}

func TestExchangeProviderIdentitySendsAssertion(t *testing.T) {
	var body map[string]any
	f := setupTestFixture(t, successHandler(t, "/api/auth/azure", &body))

	user, err := f.client.ExchangeProviderIdentity(context.Background(), backend.ProviderIdentity{
		AzureID:     "azure-123",
		DisplayName: "John Doe",
		Email:       "john.doe@example.com",
		PhotoURL:    "https://example.com/photo.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)

	require.Equal(t, "azure-123", body["azureId"])
	require.Equal(t, "John Doe", body["displayName"])
	require.Equal(t, "john.doe@example.com", body["email"])
	require.Equal(t, "https://example.com/photo.jpg", body["photoUrl"])

	session, err := f.store.Get()
	require.NoError(t, err)
	require.Equal(t, tokenstore.MethodProvider, session.Method)

	require.Len(t, f.events, 1)
	require.Equal(t, tokenstore.MethodProvider, f.events[0].Method)
}

func TestExchangeFailurePropagatesRawError(t *testing.T) {
	f := setupTestFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "boom"})
	}))

	_, err := f.client.ExchangeDevIdentity(context.Background(), "dev@nextbi.local", "Dev", "")
	require.Error(t, err)

	var exchangeErr *backend.ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	require.Equal(t, "boom", exchangeErr.Payload)
	require.Equal(t, http.StatusUnauthorized, exchangeErr.StatusCode)

	// Nothing stored, nothing published.
	_, err = f.store.Get()
	require.ErrorIs(t, err, tokenstore.ErrNoSession)
	require.Empty(t, f.events)
	require.Zero(t, f.store.SetCalls)
}

func TestExchangeNonJSONFailure(t *testing.T) {
	f := setupTestFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))

	_, err := f.client.ExchangeDevIdentity(context.Background(), "dev@nextbi.local", "Dev", "")

	var exchangeErr *backend.ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	require.Equal(t, "upstream down", exchangeErr.Payload)
	require.Empty(t, f.events)
}

func TestMeSendsBearerToken(t *testing.T) {
	f := setupTestFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/auth/me", r.URL.Path)
		require.Equal(t, "Bearer session-token-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"id": "user-1", "email": "john.doe@example.com"},
		})
	}))

	require.NoError(t, f.store.Set("session-token-1", &users.User{ID: "user-1"}, tokenstore.MethodDev))

	user, err := f.client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "john.doe@example.com", user.Email)
}

func TestMeWithoutSession(t *testing.T) {
	f := setupTestFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a stored session")
	}))

	_, err := f.client.Me(context.Background())
	require.ErrorIs(t, err, tokenstore.ErrNoSession)
}
