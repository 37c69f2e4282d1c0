// Package api exposes the statement pipeline over HTTP: account
// registration and login, statement upload, processing, and result
// retrieval. Error payloads are concise and never leak internal detail;
// the full context stays in the server logs.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bank-statement-processor/internal/lifecycle"
	"bank-statement-processor/internal/report"
	"bank-statement-processor/internal/storage"
	"bank-statement-processor/pkg/errors"
	"bank-statement-processor/pkg/logger"
)

// Config holds the HTTP server configuration
type Config struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string

	// JWTSecret signs access tokens. The server refuses to start without
	// one.
	JWTSecret string

	// TokenTTL is how long issued tokens stay valid
	TokenTTL time.Duration

	// UploadDir is where uploaded statement documents are stored
	UploadDir string

	// MaxUploadBytes bounds the accepted request body size
	MaxUploadBytes int64
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		TokenTTL:       24 * time.Hour,
		UploadDir:      "uploads",
		MaxUploadBytes: 16 << 20, // 16 MB
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "server.addr", nil)
	}
	if c.JWTSecret == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "server.jwt_secret", nil)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "server.max_upload_bytes", c.MaxUploadBytes)
	}
	return nil
}

// Server is the HTTP surface over the repository and lifecycle processor
type Server struct {
	config    *Config
	repo      storage.Repository
	processor *lifecycle.Processor
	reports   *report.Generator
	log       logger.Logger
}

// NewServer creates an HTTP server over the given components
func NewServer(config *Config, repo storage.Repository, processor *lifecycle.Processor, log logger.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	reports, err := report.NewGenerator(&report.Config{
		Format:                report.FormatJSON,
		IncludeTransactions:   true,
		IncludeLogs:           true,
		RawTextPreviewLimit:   500,
		MaxListedTransactions: 50,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		config:    config,
		repo:      repo,
		processor: processor,
		reports:   reports,
		log:       log.WithComponent("api"),
	}, nil
}

// Router builds the chi route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/statements", s.handleUpload)
			r.Get("/statements", s.handleListStatements)

			r.Route("/statements/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetStatement)
				r.Delete("/", s.handleDeleteStatement)
				r.Post("/process", s.handleProcess)
				r.Post("/reset", s.handleReset)
				r.Get("/transactions", s.handleListTransactions)
				r.Get("/logs", s.handleListLogs)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// ListenAndServe runs the server until the listener fails
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.log.WithField("addr", s.config.Addr).Info("HTTP server listening")
	return srv.ListenAndServe()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithFields(logger.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Request handled")
	})
}

// writeJSON writes a JSON response with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.log.WithError(err).Error("Could not encode response body")
		}
	}
}

// writeError maps an error to a status code and a concise payload. The
// full error, including suggestion and context, is logged server-side
// only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	code := errors.CodeUnexpectedError

	if procErr, ok := errors.AsProcessorError(err); ok {
		code = procErr.Code
		message = procErr.UserMessage()
		status = statusFor(procErr)
	}

	s.log.WithError(err).WithFields(logger.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).Warn("Request failed")

	s.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  string(code),
	})
}

func statusFor(err *errors.ProcessorError) int {
	switch err.Code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeConflict, errors.CodeInvalidTransition:
		return http.StatusConflict
	}

	switch err.Category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryExtraction, errors.CategoryParse, errors.CategoryLifecycle:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(field string, value interface{}) error {
	return errors.ValidationError(errors.CodeMissingField, field, value)
}

func invalidJSON(err error) error {
	return errors.New(errors.CategoryValidation, errors.CodeMissingField,
		fmt.Sprintf("invalid request body: %v", err))
}
