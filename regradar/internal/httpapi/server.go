// Package httpapi exposes the read-only query surface over HTTP: published
// changes with filtering and pagination, document history, and single
// assessments. All /v1 routes require an API key; /healthz does not.
package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// Config configures the API server.
type Config struct {
	// APIKey is compared in constant time against the presented key.
	APIKey string
	// APIKeyBcrypt is a bcrypt hash of the key; takes precedence over
	// APIKey when set, so the plaintext never has to live in config.
	APIKeyBcrypt string
}

// Server serves the query API.
type Server struct {
	store  *store.Store
	config Config
	logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(s *store.Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, config: cfg, logger: logger}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/changes", s.handleListChanges)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/impacts/{id}", s.handleGetImpact)
	})
	return r
}

// requireAPIKey authenticates via the X-API-Key header. Missing or wrong
// keys get 401; an unconfigured server refuses everything rather than
// running open.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" || !s.keyValid(key) {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) keyValid(presented string) bool {
	if s.config.APIKeyBcrypt != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.config.APIKeyBcrypt), []byte(presented)) == nil
	}
	if s.config.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.config.APIKey), []byte(presented)) == 1
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
