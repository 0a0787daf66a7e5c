// Package httpapi is the admin HTTP API of lakeadmin: a chi router over the
// tenant coordinator.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"github.com/dmitrijs2005/lakeadmin/internal/server/metrics"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/dmitrijs2005/lakeadmin/internal/server/services"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coordinator is the subset of services.Coordinator the API needs.
type Coordinator interface {
	CreateTenant(ctx context.Context, spec models.TenantSpec) (*models.Tenant, services.Warnings, error)
	GetTenant(ctx context.Context, uid string) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]string, error)
	RemoveTenant(ctx context.Context, uid string) (services.Warnings, error)
	SyncCredentials(ctx context.Context, uid string) (*models.Tenant, services.Warnings, error)
	GetCredential(ctx context.Context, accessKey string) (*models.Credential, error)

	CreateDA(ctx context.Context, doc models.Document) (models.Document, error)
	GetDA(ctx context.Context, id string) (models.Document, error)
	ListDAs(ctx context.Context) ([]string, error)
	CreateArchiveJob(ctx context.Context, job models.Document) (models.Document, services.Warnings, error)
	GetArchiveJob(ctx context.Context, id string) (models.Document, error)
	ListArchiveJobs(ctx context.Context) ([]string, error)

	ActivateTenantService(ctx context.Context, uid string) (services.Warnings, error)
	ActivateAllTenantServices(ctx context.Context) (*services.ActivationReport, error)
}

// Options configure a Server.
type Options struct {
	Addr        string
	MetricsPath string

	// TokenSecret enables bearer-token auth on /v1 when non-empty.
	TokenSecret []byte

	// MaxTokenValidity rejects tokens minted for longer; zero means no limit.
	MaxTokenValidity time.Duration

	// PublicCredentials serves the credential lookup without a token.
	PublicCredentials bool

	// Gatherer backs the metrics endpoint; nil means the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	coord   Coordinator
	log     logging.Logger
	metrics *metrics.Collector
	opts    Options
	handler http.Handler
}

// NewServer builds the router. m may be nil.
func NewServer(coord Coordinator, log logging.Logger, m *metrics.Collector, opts Options) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		coord:   coord,
		log:     log.With("module", "http_server"),
		metrics: m,
		opts:    opts,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.recoverer, s.logRequests, s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, s.opts.MetricsPath, promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if s.opts.PublicCredentials {
			r.Get("/credentials/{access_key}", s.handleGetCredential)
		} else {
			r.With(s.bearerAuth).Get("/credentials/{access_key}", s.handleGetCredential)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)

			r.Get("/users", s.handleListUsers)
			r.Put("/users", s.handleCreateUser)
			r.Get("/users/{uid}", s.handleGetUser)
			r.Delete("/users/{uid}", s.handleRemoveUser)
			r.Post("/users/{uid}/credentials/sync", s.handleSyncCredentials)
			r.Post("/users/{uid}/activate", s.handleActivateUser)
			r.Post("/services/activate", s.handleActivateAll)

			r.Get("/das", s.handleListDAs)
			r.Put("/das", s.handlePutDA)
			r.Get("/das/{id}", s.handleGetDA)
			r.Put("/das/{id}", s.handlePutDA)

			r.Get("/archive_jobs", s.handleListArchiveJobs)
			r.Put("/archive_jobs", s.handlePutArchiveJob)
			r.Get("/archive_jobs/{id}", s.handleGetArchiveJob)
			r.Put("/archive_jobs/{id}", s.handlePutArchiveJob)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errRouteNotFound)
	})
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled and then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "Starting HTTP server", "address", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
