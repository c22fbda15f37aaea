package auth

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultCallbackPort is the default port for the loopback callback server.
const DefaultCallbackPort = 8913

// CallbackTimeout is how long to wait for the authorization callback.
const CallbackTimeout = 10 * time.Minute

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// CallbackServer is a temporary loopback HTTP server that receives a single
// authorization redirect and hands its query parameters to the login flow.
// It starts, serves one callback, then shuts down.
type CallbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	queryCh  chan url.Values
	errorCh  chan error
	once     sync.Once
	baseURL  string

	// RenderResult lets the login flow report the exchange outcome back to
	// the browser page. It is consulted by the callback handler after the
	// query has been delivered; nil means render success unconditionally.
	renderMu     sync.Mutex
	renderResult func() error
}

// NewCallbackServer creates a callback server on the specified port.
// Port 0 selects the default port.
func NewCallbackServer(port int) *CallbackServer {
	if port == 0 {
		port = DefaultCallbackPort
	}

	return &CallbackServer{
		port:    port,
		queryCh: make(chan url.Values, 1),
		errorCh: make(chan error, 1),
	}
}

// Start begins listening for the authorization callback. The server stops
// when the context is cancelled. Returns the redirect URI to use in the
// authorization request.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://localhost:%d", s.port)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.RedirectURI(), nil
}

// SetResultRenderer installs the function the handler calls to learn the
// exchange outcome before rendering the browser response. Must be set
// before the callback arrives.
func (s *CallbackServer) SetResultRenderer(fn func() error) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.renderResult = fn
}

// WaitForCallback blocks until the callback query parameters arrive, the
// server fails, or the context expires.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (url.Values, error) {
	select {
	case query := <-s.queryCh:
		return query, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback accepts exactly one redirect; later requests are rejected.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()

	select {
	case s.queryCh <- query:
	default:
	}

	// Let the login flow finish the exchange so the page can show the real
	// outcome instead of a blind success.
	var resultErr error
	s.renderMu.Lock()
	render := s.renderResult
	s.renderMu.Unlock()
	if render != nil {
		resultErr = render()
	} else if errParam := query.Get("error"); errParam != "" {
		resultErr = fmt.Errorf("%s: %s", errParam, query.Get("error_description"))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if resultErr != nil {
		tmpl := template.Must(template.New("error").Parse(callbackErrorHTML))
		_ = tmpl.Execute(w, map[string]string{
			"Error":       resultErr.Error(),
			"Description": "The authorization attempt was not completed.",
		})
	} else {
		tmpl := template.Must(template.New("success").Parse(callbackSuccessHTML))
		_ = tmpl.Execute(w, map[string]string{})
	}

	// Give the response time to flush before tearing the server down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// RedirectURI returns the redirect URI registered with the authorization
// server for this flow.
func (s *CallbackServer) RedirectURI() string {
	return s.baseURL + "/callback"
}

// Origin returns the server's origin, used to scope messenger traffic.
func (s *CallbackServer) Origin() string {
	return s.baseURL
}

// Port returns the bound port.
func (s *CallbackServer) Port() int {
	return s.port
}
