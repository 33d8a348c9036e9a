// ABOUTME: Local switchboard HTTP server exposing the dashboard, workflow watches, and goal conversion.
// ABOUTME: Routes are served by a chi router and bound to a loopback address.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/switchboard/api"
	"github.com/2389-research/switchboard/dashboard"
	"github.com/2389-research/switchboard/poller"
	"github.com/2389-research/switchboard/resource"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8089"

// GoalConverter decomposes a goal into a task workflow.
type GoalConverter interface {
	ConvertGoalToTasks(ctx context.Context, goal resource.GoalRequest) (resource.GoalConversion, error)
}

// ServerConfig holds the configuration for the web server.
type ServerConfig struct {
	Addr string // listen address (default: DefaultAddr)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Dashboard *dashboard.Aggregator
	Watches   *poller.Registry
	Goals     GoalConverter
}

// Server is the local switchboard HTTP server.
type Server struct {
	router chi.Router
	addr   string

	// ctx outlives requests; watch sessions are started with it.
	ctx context.Context

	dashboard *dashboard.Aggregator
	watches   *poller.Registry
	goals     GoalConverter
	hub       *watchHub

	goalsMu    sync.RWMutex
	goalByID   map[string]*goalRecord
	goalOrder  []string
	goalsLimit int
}

// NewServer creates a Server. ctx bounds every watch session the server
// starts; cancelling it stops them all.
func NewServer(ctx context.Context, cfg ServerConfig, deps Deps) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if deps.Dashboard == nil || deps.Watches == nil || deps.Goals == nil {
		return nil, errors.New("web server requires dashboard, watches, and goals")
	}

	s := &Server{
		addr:       cfg.Addr,
		ctx:        ctx,
		dashboard:  deps.Dashboard,
		watches:    deps.Watches,
		goals:      deps.Goals,
		hub:        newWatchHub(),
		goalByID:   make(map[string]*goalRecord),
		goalsLimit: 100,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := s.httpServer()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("component=web action=listen addr=%s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	s.watches.StopAll()
	log.Printf("component=web action=shutdown addr=%s", s.addr)
	return nil
}

// httpServer bounds header reads and idle keep-alives only. ReadTimeout
// would cancel the request context of a long event stream, and WriteTimeout
// would cut it off, so neither is set.
func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)

		r.Get("/watches", s.handleWatchList)
		r.Route("/workflows/{workflowID}", func(r chi.Router) {
			r.Post("/watch", s.handleWatchStart)
			r.Delete("/watch", s.handleWatchStop)
			r.Get("/snapshot", s.handleWatchSnapshot)
			r.Get("/events", s.handleWatchEvents)
		})

		r.Post("/goals", s.handleGoalCreate)
		r.Get("/goals/{goalID}", s.handleGoalGet)
		r.Get("/goals/{goalID}/report", s.handleGoalReport)
		r.Get("/goals/{goalID}/graph", s.handleGoalGraph)
	})

	return r
}

// logRequests writes one key=value line per request once the handler
// returns. Event streams are logged when they close.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Printf("component=web action=request method=%s path=%s status=%d bytes=%d duration=%s request_id=%s",
				r.Method, r.URL.Path, status, ww.BytesWritten(),
				time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}

// handleHealth reports that the local server is up. It does not call the platform.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDashboard returns one aggregated snapshot. ?refresh=true bypasses
// fresh cache entries.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "true"
	writeJSON(w, http.StatusOK, s.dashboard.Snapshot(r.Context(), force))
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeAPIError maps a platform failure to the status a local caller should see.
func writeAPIError(w http.ResponseWriter, err error) {
	kind := api.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case api.KindInvalidRequest:
		status = http.StatusBadRequest
	case api.KindRateLimited:
		status = http.StatusTooManyRequests
	case api.KindTimeout:
		status = http.StatusGatewayTimeout
	case api.KindUnknown:
		status = http.StatusInternalServerError
	}
	if errors.Is(err, resource.ErrGoalRejected) {
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, errorResponse{Error: api.Message(err), Kind: kind.String()})
}
