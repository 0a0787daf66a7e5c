// Package server wires lakeadmin together: it builds the backend adapters
// from config, constructs the tenant coordinator and runs the admin HTTP API
// and the gRPC health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"github.com/dmitrijs2005/lakeadmin/internal/server/config"
	"github.com/dmitrijs2005/lakeadmin/internal/server/docstore"
	"github.com/dmitrijs2005/lakeadmin/internal/server/events"
	"github.com/dmitrijs2005/lakeadmin/internal/server/httpapi"
	"github.com/dmitrijs2005/lakeadmin/internal/server/metrics"
	"github.com/dmitrijs2005/lakeadmin/internal/server/provisioner"
	"github.com/dmitrijs2005/lakeadmin/internal/server/registry"
	"github.com/dmitrijs2005/lakeadmin/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/lakeadmin/internal/server/grpc"
)

// Adapter constructors; tests replace them.
var (
	newStore       = buildStore
	newRegistry    = buildRegistry
	newPublisher   = buildPublisher
	newProvisioner = buildProvisioner
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	coordinator *services.Coordinator
	httpServer  *httpapi.Server
	grpcServer  *gs.GRPCServer
	closers     []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	store, closeStore, err := newStore(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}

	reg, err := newRegistry(c, logger)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("registry init error: %w", err)
	}

	pub, err := newPublisher(c, logger)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("publisher init error: %w", err)
	}
	app.closers = append(app.closers, pub.Close)

	prov, err := newProvisioner(c, logger)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("provisioner init error: %w", err)
	}

	m := metrics.NewCollector()
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app.coordinator = services.NewCoordinator(reg, store, pub, prov, logger, m, services.OptionsFromConfig(c))

	app.httpServer = httpapi.NewServer(app.coordinator, logger, m, httpapi.Options{
		Addr:              c.HTTPAddr,
		MetricsPath:       c.MetricsPath,
		TokenSecret:       []byte(c.AdminTokenSecret),
		MaxTokenValidity:  c.AdminTokenValidity,
		PublicCredentials: c.PublicCredentialLookup,
		Gatherer:          promRegistry,
	})

	checks := []gs.Check{{
		Name: "registry",
		Probe: func(ctx context.Context) error {
			_, err := reg.ListUsers(ctx)
			return err
		},
	}}
	if p, ok := store.(docstore.Pinger); ok {
		checks = append(checks, gs.Check{Name: "store", Probe: p.Ping})
	}
	app.grpcServer = gs.NewGRPCServer(c.GRPCAddr, logger, checks, 0, c.BackendTimeout)

	if c.AdminTokenSecret == "" {
		logger.Warn(ctx, "admin token secret is empty, API authentication is disabled")
	} else if !c.PublicCredentialLookup {
		logger.Info(ctx, "credential lookups require a token; gateways without one need public credential lookup")
	}
	return app, nil
}

// buildStore opens the configured document backend and prepares it: the
// bucket is created for s3, migrations are applied for postgres.
func buildStore(ctx context.Context, c *config.Config, logger logging.Logger) (docstore.Store, func() error, error) {
	switch c.StoreBackend {
	case config.StoreBackendS3:
		s, err := docstore.NewS3Store(ctx, docstore.S3Options{
			Endpoint:  c.S3Endpoint(),
			Region:    c.S3Region,
			AccessKey: c.AdminAccessKey,
			SecretKey: c.AdminSecretKey,
			Bucket:    c.S3Bucket,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info(ctx, "using s3 document store", "bucket", c.S3Bucket)
		return s, nil, nil

	case config.StoreBackendPostgres:
		db, err := docstore.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := docstore.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info(ctx, "using postgres document store")
		return docstore.NewPostgresStore(db), db.Close, nil

	case config.StoreBackendMemory:
		logger.Warn(ctx, "using in-memory document store, data is lost on restart")
		return docstore.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

func buildRegistry(c *config.Config, logger logging.Logger) (registry.Registry, error) {
	reg, err := registry.NewRGWRegistry(c.RegistryEndpoint, c.AdminAccessKey, c.AdminSecretKey, &http.Client{Timeout: c.BackendTimeout}, logger)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func buildPublisher(c *config.Config, logger logging.Logger) (events.Publisher, error) {
	pub, err := events.NewKafkaPublisher(c.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func buildProvisioner(c *config.Config, logger logging.Logger) (provisioner.Provisioner, error) {
	client, err := provisioner.LoadKubeClient(c.KubeConfigPath)
	if err != nil {
		return nil, err
	}
	return provisioner.NewKubeProvisioner(client, c.KubeNamespace, logger), nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Received signal, shutting down", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

// activateAll brings up gateways for every tenant once at startup. Failures
// are logged; the servers keep running.
func (app *App) activateAll(ctx context.Context) {
	report, err := app.coordinator.ActivateAllTenantServices(ctx)
	if err != nil {
		app.logger.Error(ctx, "startup activation failed", "error", err)
		return
	}
	if len(report.Warnings) > 0 {
		app.logger.Warn(ctx, "startup activation finished with warnings",
			"tenants", len(report.Tenants), "warnings", len(report.Warnings))
	}
}

// Run serves until ctx is cancelled, a shutdown signal arrives or a server
// fails, and then releases backend connections.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.ActivateOnStartup {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.activateAll(ctx)
		}()
	}

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}
