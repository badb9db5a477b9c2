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

	"osapi/internal/blobstore"
	"osapi/internal/store"
)

const (
	allowRemoteEnvKey = "OSAPI_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// DataStore is the record storage the server runs against.
type DataStore interface {
	store.SentenceStore
	store.AuthStore
}

// Server wraps HTTP handlers for the object sentence API.
type Server struct {
	addr      string
	sentences *SentenceService
	auth      *AuthService
	blobs     blobstore.BlobStore
	metrics   *serverMetrics
	logger    *slog.Logger
}

// New creates a new server instance.
func New(addr string, dataStore DataStore, publicURL string, logger *slog.Logger, blobs blobstore.BlobStore) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	metrics := newServerMetrics()
	sentences := NewSentenceService(dataStore, blobs, DefaultUploadPolicy(), publicURL, logger)
	sentences.metrics = metrics

	return &Server{
		addr:      addr,
		sentences: sentences,
		auth:      NewAuthService(dataStore, 0),
		blobs:     blobs,
		metrics:   metrics,
		logger:    logger,
	}
}

// ConfigureUploadPolicy overrides image upload limits.
func (s *Server) ConfigureUploadPolicy(policy UploadPolicy) {
	if s == nil || s.sentences == nil {
		return
	}
	s.sentences.policy = policy.normalized()
}

// ConfigureTokenTTL sets the lifetime of newly issued tokens. Zero disables expiry.
func (s *Server) ConfigureTokenTTL(ttl time.Duration) {
	if s == nil || s.auth == nil {
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	s.auth.tokenTTL = ttl
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe serves until ctx is canceled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
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
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		return true
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

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
