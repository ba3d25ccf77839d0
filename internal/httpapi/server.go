// Package httpapi implements the IMS HTTP API of §6: chi-routed v2/v3
// trees over the core components, rendering every error as RFC 7807
// application/problem+json via internal/apierrors. Routing and middleware
// setup follow internal/server/server.go's chi wiring in the teacher;
// the resource/version split and soft-delete endpoints are IMS's own.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/Cray-HPE/ims-sub000/internal/jobcontroller"
	"github.com/Cray-HPE/ims-sub000/internal/lifecycle"
	"github.com/Cray-HPE/ims-sub000/internal/manifest"
	"github.com/Cray-HPE/ims-sub000/internal/model"
	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
	"github.com/Cray-HPE/ims-sub000/internal/remotenode"
	"github.com/Cray-HPE/ims-sub000/internal/store"
)

// BuildVersion is set at build time (ldflags), the same convention the
// teacher's handlers.Version uses.
var BuildVersion = "dev"

// MetricsHandler is the subset of internal/metrics.Metrics the server
// needs to expose /metrics, narrowed to an interface so tests don't need
// a real Prometheus registry.
type MetricsHandler interface {
	http.Handler
}

// ReadyChecker reports whether the process is ready to serve traffic
// (e.g. the Kubernetes client can reach the API server).
type ReadyChecker func(ctx context.Context) error

// Deps collects every collaborator the HTTP layer calls into. Server
// holds no business logic itself; each handler group delegates to one
// of these.
type Deps struct {
	PublicKeys  *store.Registry[model.PublicKey, model.DeletedPublicKey]
	Recipes     *store.Registry[model.Recipe, model.DeletedRecipe]
	Images      *store.Registry[model.Image, model.DeletedImage]
	RemoteNodes *store.Store[model.RemoteBuildNode]
	Jobs        *jobcontroller.Controller

	Lifecycle *lifecycle.Lifecycle
	Validator *manifest.Validator
	Scheduler *remotenode.Scheduler
	Prober    *remotenode.Prober
	Gateway   objectstore.Gateway

	Metrics MetricsHandler
	Ready   ReadyChecker

	Log logr.Logger
}

// Server implements the v2/v3 route trees over Deps.
type Server struct {
	deps Deps
}

// New builds a Server.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the chi.Mux serving both API versions plus the
// operational endpoints, mirroring server.go's middleware stack
// (RequestID, RealIP, Logger, Recoverer, Timeout).
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/version", s.handleVersion)
	r.Get("/healthz/live", s.handleLive)
	r.Get("/healthz/ready", s.handleReady)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}

	r.Route("/v2", func(r chi.Router) {
		s.mountPublicKeys(r)
		s.mountRecipes(r)
		s.mountImages(r)
		s.mountJobs(r)
	})

	r.Route("/v3", func(r chi.Router) {
		s.mountPublicKeys(r)
		s.mountRecipes(r)
		s.mountImages(r)
		s.mountJobs(r)
		s.mountDeleted(r)
		s.mountRemoteBuildNodes(r)
	})

	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Version string `json:"version"`
	}{Version: BuildVersion})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready == nil {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.deps.Ready(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
