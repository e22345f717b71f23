package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/cors"

	"mproc/internal/tasks"
)

const (
	allowRemoteEnvKey      = "MPROC_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	readTimeout            = 60 * time.Second
	writeTimeout           = 120 * time.Second
	idleTimeout            = 60 * time.Second
	shutdownTimeout        = 5 * time.Second
	importConcurrencyLimit = 1
	exportConcurrencyLimit = 2
)

// Options configures a Server.
type Options struct {
	Addr    string
	DataDir string
	// AllowedOrigins feeds the CORS middleware. Empty allows loopback origins only.
	AllowedOrigins []string
	// MaxUploadBytes caps multipart request bodies; zero uses the package default.
	MaxUploadBytes int64
}

// Server wraps HTTP handlers for the mproc API.
type Server struct {
	addr           string
	dataDir        string
	repo           *tasks.Repository
	hub            *Hub
	logger         *slog.Logger
	allowedOrigins []string
	maxUploadBytes int64
	importLimiter  chan struct{}
	exportLimiter  chan struct{}
}

// New creates a new server instance. hub may be nil, in which case the events
// endpoint is not served.
func New(repo *tasks.Repository, hub *Hub, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultUploadMaxBody
	}

	return &Server{
		addr:           opts.Addr,
		dataDir:        opts.DataDir,
		repo:           repo,
		hub:            hub,
		logger:         logger.With("component", "server"),
		allowedOrigins: opts.AllowedOrigins,
		maxUploadBytes: maxUpload,
		importLimiter:  make(chan struct{}, importConcurrencyLimit),
		exportLimiter:  make(chan struct{}, exportConcurrencyLimit),
	}
}

// Handler returns the routes wrapped with CORS and request logging.
func (s *Server) Handler() http.Handler {
	opts := cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}
	if len(s.allowedOrigins) == 0 {
		opts.AllowOriginFunc = isLoopbackOrigin
	}
	return cors.New(opts).Handler(s.withRequestLogging(s.routes()))
}

// isLoopbackOrigin accepts browser pages served from a loopback host.
func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// the listener fails. Pending task state is flushed on the way out.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	err := server.Shutdown(shutdownCtx)
	if flushErr := s.repo.Flush(shutdownCtx); flushErr != nil {
		s.log().Error("flush on shutdown", "error", flushErr)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
