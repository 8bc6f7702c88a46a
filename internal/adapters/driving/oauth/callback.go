// Package oauth runs the browser consent flow that yields a Drive refresh
// token: a loopback callback server receives the authorization code, which
// is exchanged with PKCE.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// ErrStateMismatch is returned when the callback state does not match the request.
var ErrStateMismatch = errors.New("oauth: state mismatch")

type callbackResult struct {
	code string
	err  error
}

// CallbackServer receives the OAuth redirect on a loopback address.
type CallbackServer struct {
	mu       sync.Mutex
	state    string
	results  chan callbackResult
	server   *http.Server
	listener net.Listener
}

// NewCallbackServer creates a callback server that only accepts redirects
// carrying state.
func NewCallbackServer(state string) *CallbackServer {
	return &CallbackServer{
		state:   state,
		results: make(chan callbackResult, 1),
	}
}

// Start listens on addr, for example "127.0.0.1:0" for a random port.
func (s *CallbackServer) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", s.handleCallback)
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deliver(callbackResult{err: err})
		}
	}()
	return nil
}

// RedirectURI returns the URI to register as the OAuth redirect.
func (s *CallbackServer) RedirectURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s/callback", s.listener.Addr().String())
}

// Wait blocks until the first callback arrives or ctx ends.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-s.results:
		return r.code, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization callback: %w", ctx.Err())
	}
}

// Stop shuts the server down.
func (s *CallbackServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// deliver records the first result only; later callbacks are ignored.
func (s *CallbackServer) deliver(r callbackResult) {
	select {
	case s.results <- r:
	default:
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if errParam := q.Get("error"); errParam != "" {
		s.deliver(callbackResult{err: fmt.Errorf("oauth error: %s: %s", errParam, q.Get("error_description"))})
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, page("Authorization failed", errParam))
		return
	}
	if q.Get("state") != s.state {
		s.deliver(callbackResult{err: ErrStateMismatch})
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, page("Authorization failed", "The request state did not match."))
		return
	}
	code := q.Get("code")
	if code == "" {
		s.deliver(callbackResult{err: errors.New("oauth: no authorization code received")})
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, page("Authorization failed", "No authorization code was received."))
		return
	}

	s.deliver(callbackResult{code: code})
	fmt.Fprint(w, page("Drive access granted", "You can close this window and return to the terminal."))
}

func page(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>Sercha Vision</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
               display: flex; justify-content: center; align-items: center; height: 100vh;
               margin: 0; background: #FAFAFA; }
        .container { text-align: center; background: white; padding: 48px 64px;
                     border-radius: 16px; border: 1px solid #C7C8CC; }
        h1 { color: #333F50; margin: 0 0 8px 0; font-size: 24px; }
        p { color: #7B8088; margin: 0; font-size: 16px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(message))
}

// OpenBrowser opens the default browser at url.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
