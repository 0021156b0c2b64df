// Package httpadmin exposes a small chi-routed HTTP surface for uptime
// checks and operational dashboards. It carries no protocol semantics from
// the robot/UI/OTA wire formats; it only observes the registry and fleet
// statistics.
package httpadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"robobridge/pose"
	"robobridge/registry"
	"robobridge/shared"
	"robobridge/stats"
)

// robotView is one entry of the /robots response.
type robotView struct {
	registry.Snapshot
	Statistics *stats.Summary `json:"statistics,omitempty"`
}

// Server is the admin HTTP surface.
type Server struct {
	reg    *registry.Registry
	poses  *pose.Estimator
	router *chi.Mux
	srv    *http.Server
}

// New builds the admin router for reg and poses, listening on addr.
func New(addr string, reg *registry.Registry, poses *pose.Estimator) *Server {
	r := chi.NewRouter()

	s := &Server{
		reg:   reg,
		poses: poses,
		router: r,
		srv:    &http.Server{Addr: addr, Handler: r},
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/robots", s.handleRobots)

	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	snapshot := s.reg.Snapshot()
	views := make([]robotView, 0, len(snapshot))

	for _, entry := range snapshot {
		view := robotView{Snapshot: entry}
		speeds := s.poses.Speeds(entry.UniqueKey, 100)
		if speeds != nil {
			summary := stats.Summarize(speeds)
			view.Statistics = &summary
		}
		views = append(views, view)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		shared.DebugError(err)
	}
}

// Run starts serving and blocks until ctx is cancelled, then gracefully
// shuts down.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		shared.DebugPrint("admin http server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("admin http server: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		return s.srv.Shutdown(context.Background())
	}
}
