package identity

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Port 0 lets the kernel pick a free loopback port for each test.

func TestCallbackServerReceivesCode(t *testing.T) {
	server := newCallbackServer(0)
	redirectURL, err := server.Start()
	require.NoError(t, err)
	defer server.Stop()

	resp, err := http.Get(redirectURL + "?code=auth-code-1&state=state-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Signed in")

	result, err := server.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "auth-code-1", result.Code)
	require.Equal(t, "state-1", result.State)
	require.Empty(t, result.Error)
}

func TestCallbackServerReceivesFormPost(t *testing.T) {
	server := newCallbackServer(0)
	redirectURL, err := server.Start()
	require.NoError(t, err)
	defer server.Stop()

	form := url.Values{"code": {"auth-code-2"}, "state": {"state-2"}}
	resp, err := http.Post(redirectURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	resp.Body.Close()

	result, err := server.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "auth-code-2", result.Code)
	require.Equal(t, "state-2", result.State)
}

func TestCallbackServerReceivesError(t *testing.T) {
	server := newCallbackServer(0)
	redirectURL, err := server.Start()
	require.NoError(t, err)
	defer server.Stop()

	resp, err := http.Get(redirectURL + "?error=access_denied&error_description=user+cancelled")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Sign-in failed")

	result, err := server.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access_denied", result.Error)
	require.Equal(t, "user cancelled", result.ErrorDescription)
}

func TestCallbackServerOnlyFirstResultCounts(t *testing.T) {
	server := newCallbackServer(0)
	redirectURL, err := server.Start()
	require.NoError(t, err)
	defer server.Stop()

	for _, code := range []string{"first", "second"} {
		resp, err := http.Get(redirectURL + "?code=" + code)
		require.NoError(t, err)
		resp.Body.Close()
	}

	result, err := server.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "first", result.Code)
}

func TestCallbackServerWaitHonorsContext(t *testing.T) {
	server := newCallbackServer(0)
	_, err := server.Start()
	require.NoError(t, err)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = server.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
