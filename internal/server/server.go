// Package server provides the read-only HTTP API over recovered notes.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/lula/internal/config"
	"github.com/hyperjump/lula/internal/keyword"
	"github.com/hyperjump/lula/internal/storage"
	"go.uber.org/zap"
)

// maxConvertBody caps the RTF accepted by POST /api/v1/convert.
const maxConvertBody = 32 << 20

// WatchService is the part of the watcher the API can manage.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the lula API.
type Server struct {
	storage storage.Storage
	index   keyword.Index
	cfg     *config.Config
	logger  *zap.Logger
	server  *http.Server

	// watch is nil when the server runs without a watcher.
	watch      WatchService
	configPath string
	cfgMu      sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil;
// when configPath is set, watch directory changes are saved to it.
func NewServer(
	store storage.Storage,
	index keyword.Index,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		storage:    store,
		index:      index,
		cfg:        cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/notes", s.handleListNotes)
		r.Get("/notes/{id}", s.handleGetNote)
		r.Get("/notes/{id}/text", s.handleGetNoteText)
		r.Get("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Post("/convert", s.handleConvert)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
