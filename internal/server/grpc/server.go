// Package grpc serves the standard gRPC health service. Its status follows
// periodic probes of the backends the coordinator depends on.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall ("")
// status.
const ServiceName = "lakeadmin.Coordinator"

// Check probes one backend. A nil error means ready.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type GRPCServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	checks   []Check
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	failed map[string]string
}

func NewGRPCServer(a string, l logging.Logger, checks []Check, interval, timeout time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		timeout:  timeout,
		failed:   map[string]string{},
	}
	s.setAll(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Health exposes the health service, for tests and embedding.
func (s *GRPCServer) Health() healthpb.HealthServer {
	return s.health
}

func (s *GRPCServer) setAll(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Probe runs every check once and updates the serving status: per check
// under its own name, and overall SERVING only when every check passed.
func (s *GRPCServer) Probe(ctx context.Context) {
	var wg sync.WaitGroup
	results := make([]error, len(s.checks))
	for i, c := range s.checks {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = c.Probe(pctx)
		}()
	}
	wg.Wait()

	overall := healthpb.HealthCheckResponse_SERVING
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.checks {
		st := healthpb.HealthCheckResponse_SERVING
		if err := results[i]; err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
			if s.failed[c.Name] != err.Error() {
				s.logger.Warn(ctx, "backend not ready", "check", c.Name, "error", err)
			}
			s.failed[c.Name] = err.Error()
		} else if _, was := s.failed[c.Name]; was {
			s.logger.Info(ctx, "backend ready again", "check", c.Name)
			delete(s.failed, c.Name)
		}
		s.health.SetServingStatus(c.Name, st)
	}
	s.setAll(overall)
}

func (s *GRPCServer) probeLoop(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.Probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor))

	// registers service
	healthpb.RegisterHealthServer(srv, s.health)

	go s.probeLoop(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
