package identity

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// callbackTimeout bounds how long the redirect flow waits for the provider to
// send the user back.
const callbackTimeout = 5 * time.Minute

// callbackResult is what the provider delivers to the loopback redirect
// endpoint.
type callbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// callbackServer is a temporary loopback HTTP server that receives a single
// provider redirect and then shuts down.
type callbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	resultCh chan *callbackResult
	once     sync.Once
}

func newCallbackServer(port int) *callbackServer {
	return &callbackServer{
		port:     port,
		resultCh: make(chan *callbackResult, 1),
	}
}

// Start begins listening and returns the redirect URL to hand to the
// provider.
func (s *callbackServer) Start() (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return "", errors.Wrap(err, "[callbackServer.Start] Listen")
	}
	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/callback", s.handleCallback).Methods(http.MethodGet, http.MethodPost)

	s.server = &http.Server{Handler: router}
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("Callback server stopped unexpectedly")
		}
	}()

	return fmt.Sprintf("http://%s/callback", listener.Addr().String()), nil
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	// r.FormValue covers both GET query params and POST form_post responses.
	result := &callbackResult{
		Code:             r.FormValue("code"),
		State:            r.FormValue("state"),
		Error:            r.FormValue("error"),
		ErrorDescription: r.FormValue("error_description"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if result.Error != "" {
		fmt.Fprint(w, "<html><body><h2>Sign-in failed</h2><p>You can close this window.</p></body></html>")
	} else {
		fmt.Fprint(w, "<html><body><h2>Signed in</h2><p>You can close this window and return to NextBI.</p></body></html>")
	}

	s.once.Do(func() { s.resultCh <- result })
}

// Wait blocks until the provider redirects back, the context is cancelled, or
// the bounded timeout elapses.
func (s *callbackServer) Wait(ctx context.Context) (*callbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(callbackTimeout):
		return nil, errors.New("timed out waiting for the provider callback")
	}
}

func (s *callbackServer) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}
