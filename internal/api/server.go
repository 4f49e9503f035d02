// Package api exposes the upload, chat and score endpoints and owns the
// translation from pipeline errors to HTTP shapes.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aminmomin2/convocate/internal/config"
	"github.com/aminmomin2/convocate/internal/engine"
	"github.com/aminmomin2/convocate/internal/events"
	"github.com/aminmomin2/convocate/internal/profile"
	"github.com/aminmomin2/convocate/internal/quota"
	"github.com/aminmomin2/convocate/internal/ticket"
)

type Server struct {
	router    *chi.Mux
	cfg       config.Config
	ledger    *quota.Ledger
	extractor *profile.Extractor
	engine    *engine.Engine
	tickets   *ticket.Cache
	events    *events.Publisher // nil when no broker is configured
	logger    *slog.Logger
}

func NewServer(
	cfg config.Config,
	ledger *quota.Ledger,
	extractor *profile.Extractor,
	eng *engine.Engine,
	tickets *ticket.Cache,
	ev *events.Publisher,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		cfg:       cfg,
		ledger:    ledger,
		extractor: extractor,
		engine:    eng,
		tickets:   tickets,
		events:    ev,
		logger:    logger,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.upload)
		r.Post("/chat", s.chat)
		r.Get("/score", s.score)
	})

	return s
}

// Router returns the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
