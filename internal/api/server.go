package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/MikeSquared-Agency/brokerchat/internal/chat"
	"github.com/MikeSquared-Agency/brokerchat/internal/metrics"
	"github.com/MikeSquared-Agency/brokerchat/internal/profile"
)

type Options struct {
	Port           int
	AllowedOrigins []string
	RateLimit      string // e.g. "30-M"; empty disables limiting
	MaxUploadBytes int
	Logger         *slog.Logger
}

type Server struct {
	router    *chi.Mux
	http      *http.Server
	port      int
	sessions  *chat.Registry
	profile   profile.Profile
	maxUpload int
	logger    *slog.Logger
}

func NewServer(opts Options, sessions *chat.Registry, prof profile.Profile) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}).Handler)

	s := &Server{
		router:    router,
		port:      opts.Port,
		sessions:  sessions,
		profile:   prof,
		maxUpload: opts.MaxUploadBytes,
		logger:    opts.Logger,
	}

	submitLimit := func(next http.Handler) http.Handler { return next }
	if opts.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(opts.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("parse rate limit %q: %w", opts.RateLimit, err)
		}
		submitLimit = limiterhttp.NewMiddleware(limiter.New(memory.NewStore(), rate),
			limiterhttp.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}),
		).Handler
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/brokerchat/status", s.status)
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/profile", s.getProfile)
		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.closeSession)
			r.Put("/mode", s.setMode)
			r.With(submitLimit).Post("/messages", s.submitMessage)
			r.Get("/forms", s.listForms)
			r.Get("/forms/{formID}/download", s.downloadForm)
			r.Post("/training-files", s.uploadTrainingFiles)
			r.Get("/training-files", s.listTrainingFiles)
		})
	})

	return s, nil
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":     "brokerchat",
		"status":    "ok",
		"responder": s.sessions.ResponderKind(),
		"sessions":  s.sessions.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeChatError maps chat sentinel errors onto HTTP statuses.
func writeChatError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrEmptyMessage):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, chat.ErrPending):
		status = http.StatusConflict
	case errors.Is(err, chat.ErrUnknownMode):
		status = http.StatusBadRequest
	case errors.Is(err, chat.ErrInternalOnly):
		status = http.StatusForbidden
	case errors.Is(err, chat.ErrUnsupportedFile):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, chat.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	}
	writeError(w, status, err.Error())
}
