// Package api exposes the import pipeline over HTTP: dry-run
// validation, asynchronous import jobs, progress polling, and
// cancellation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bmlt-tools/naws-importer/internal/config"
	"github.com/bmlt-tools/naws-importer/internal/importer"
	"github.com/bmlt-tools/naws-importer/internal/jobs"
	"github.com/bmlt-tools/naws-importer/internal/sheet"
)

// Server is the HTTP front end. Import runs execute on their own
// goroutines; handlers only start, poll, and cancel them.
type Server struct {
	cfg      config.ServerConfig
	imports  config.ImportConfig
	client   importer.RootServerClient
	progress importer.ProgressStore
	audit    *jobs.Store     // nil when the audit database is disabled
	s3       *sheet.S3Source // nil when S3 ingestion is disabled

	cancels sync.Map // job id -> context.CancelFunc
	httpSrv *http.Server
}

// NewServer assembles the API server. audit and s3 are optional.
func NewServer(cfg *config.Config, client importer.RootServerClient, progress importer.ProgressStore, audit *jobs.Store, s3 *sheet.S3Source) *Server {
	s := &Server{
		cfg:      cfg.Server,
		imports:  cfg.Import,
		client:   client,
		progress: progress,
		audit:    audit,
		s3:       s3,
	}
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/import", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)
		r.Post("/", s.handleStartImport)
		r.Get("/{jobID}", s.handleJobStatus)
		r.Get("/{jobID}/result", s.handleJobResult)
		r.Post("/{jobID}/cancel", s.handleCancel)
	})
	r.Get("/api/jobs", s.handleRecentJobs)

	return r
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Printf("[API] Listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests. Running import jobs keep going;
// their progress remains pollable from the store after restart when a
// shared store backs it.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
