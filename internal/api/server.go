// Package api exposes the curation service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/entries"
	"github.com/locdb/locdb/internal/intake"
	"github.com/locdb/locdb/internal/metrics"
	"github.com/locdb/locdb/internal/ranker"
	"github.com/locdb/locdb/internal/storage"
)

// Deps are the services the handlers call. Intake may be nil, which
// disables POST /resources.
type Deps struct {
	Store    storage.Store
	Ranker   *ranker.Ranker
	Curator  *curator.Curator
	Entries  *entries.Service
	Intake   *intake.Service
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	DefaultK int
}

// Server serves the HTTP API.
type Server struct {
	deps Deps
	log  *slog.Logger
}

// NewServer returns a Server using deps.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DefaultK < 1 {
		deps.DefaultK = 10
	}
	return &Server{deps: deps, log: deps.Logger}
}

// Router returns the route table wrapped in logging and metrics middleware.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/resources", s.ListResources).Methods("GET")
	r.HandleFunc("/resources", s.SaveResource).Methods("POST")
	r.HandleFunc("/resources/{id}", s.GetResource).Methods("GET")
	r.HandleFunc("/resources/{id}", s.DeleteResource).Methods("DELETE")

	r.HandleFunc("/suggestions/external", s.ExternalSuggestions).Methods("GET")
	r.HandleFunc("/suggestions/internal", s.InternalSuggestions).Methods("POST")
	r.HandleFunc("/suggestions/entries/{id}", s.CachedSuggestions).Methods("GET")

	r.HandleFunc("/entries/todo", s.ToDo).Methods("GET")
	r.HandleFunc("/entries/{id}", s.GetEntry).Methods("GET")
	r.HandleFunc("/entries/{id}", s.UpdateEntry).Methods("PUT")
	r.HandleFunc("/scans/{scanId}/entries", s.CorrectEntry).Methods("POST")

	r.HandleFunc("/curate", s.Curate).Methods("POST")

	r.HandleFunc("/__health", s.Health).Methods("GET")
	r.Handle("/__metrics", s.deps.Metrics.Handler()).Methods("GET")

	r.Use(s.logRequests)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.deps.Metrics.ObserveHTTP(route, strconv.Itoa(rec.status))

		level := slog.LevelInfo
		if rec.status >= 500 {
			level = slog.LevelError
		}
		s.log.Log(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}
