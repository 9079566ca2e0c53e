// Package server exposes the daemon's operational endpoint: health, metrics,
// registry listing, and maintenance triggers. It is not a data-plane API;
// capture happens in-process in the applications that embed the engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/griotdb/griot"
	"github.com/griotdb/griot/internal/config"
)

// Maintainer is the partition and index surface behind the POST routes.
type Maintainer interface {
	EnsurePartitions(ctx context.Context, year int) (int, error)
	ProvisionIndexes(ctx context.Context) (int, error)
}

// Sweeper runs one full maintenance pass (lead-window partitions + indexes).
type Sweeper interface {
	RunOnce(ctx context.Context) (partitions, indexes int, err error)
}

// Server is the operational HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	registry   griot.Registry
	maint      Maintainer
	sweeper    Sweeper
}

// New creates a Server with all routes wired.
func New(cfg *config.Config, registry griot.Registry, maint Maintainer, sweeper Sweeper) *Server {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)

	s := &Server{
		router:   router,
		registry: registry,
		maint:    maint,
		sweeper:  sweeper,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	router.Route("/v1", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Post("/maintenance/run", s.handleMaintenanceRun)
		r.Post("/partitions/ensure", s.handleEnsurePartitions)
		r.Post("/indexes/provision", s.handleProvisionIndexes)
	})

	return s
}

// Router returns the underlying handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

type tableResponse struct {
	ID                   string    `json:"id"`
	SchemaName           string    `json:"schema_name"`
	TableName            string    `json:"table_name"`
	RelationID           int64     `json:"relation_id"`
	CaptureRows          bool      `json:"capture_rows"`
	CaptureStatementText bool      `json:"capture_statement_text"`
	IgnoredColumns       []string  `json:"ignored_columns,omitempty"`
	KeyColumns           []string  `json:"key_columns,omitempty"`
	Active               bool      `json:"active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]tableResponse, 0, len(tables))
	for _, tbl := range tables {
		out = append(out, tableResponse{
			ID:                   tbl.ID.String(),
			SchemaName:           tbl.SchemaName,
			TableName:            tbl.TableName,
			RelationID:           tbl.RelationID,
			CaptureRows:          tbl.Config.CaptureRows,
			CaptureStatementText: tbl.Config.CaptureStatementText,
			IgnoredColumns:       tbl.Config.IgnoredColumns,
			KeyColumns:           tbl.Config.KeyColumns,
			Active:               tbl.Active,
			CreatedAt:            tbl.CreatedAt,
			UpdatedAt:            tbl.UpdatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

func (s *Server) handleMaintenanceRun(w http.ResponseWriter, r *http.Request) {
	partitions, indexes, err := s.sweeper.RunOnce(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"partitions_created": partitions,
		"indexes_created":    indexes,
	})
}

func (s *Server) handleEnsurePartitions(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid year %q", v)})
			return
		}
		year = parsed
	}

	created, err := s.maint.EnsurePartitions(r.Context(), year)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"partitions_created": created, "year": year})
}

func (s *Server) handleProvisionIndexes(w http.ResponseWriter, r *http.Request) {
	created, err := s.maint.ProvisionIndexes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"indexes_created": created})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("server: encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("server: request failed")
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
