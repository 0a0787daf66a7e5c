// Package services contains the tenant coordinator: the workflows that keep
// the identity registry, the credential store, gateway deployments and the
// event bus consistent without a shared transaction.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"github.com/dmitrijs2005/lakeadmin/internal/server/config"
	"github.com/dmitrijs2005/lakeadmin/internal/server/docstore"
	"github.com/dmitrijs2005/lakeadmin/internal/server/events"
	"github.com/dmitrijs2005/lakeadmin/internal/server/metrics"
	"github.com/dmitrijs2005/lakeadmin/internal/server/provisioner"
	"github.com/dmitrijs2005/lakeadmin/internal/server/registry"
)

// DocumentPolicy selects what CreateDA and CreateArchiveJob do with an id
// that is already stored.
type DocumentPolicy int

const (
	// PolicyOverwrite replaces the stored document (last writer wins).
	PolicyOverwrite DocumentPolicy = iota
	// PolicyCreateOnly rejects an existing id with common.ErrorConflict.
	// The check and the write are not atomic.
	PolicyCreateOnly
)

// Options are the immutable settings of a Coordinator.
type Options struct {
	CallTimeout time.Duration

	EventTopic  string
	TenantTopic string
	Sender      string

	GatewayImage string
	BackendURL   string
	GatewayPort  int32

	ActivationConcurrency int
	ActivateOnCreate      bool

	DocumentPolicy DocumentPolicy
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		CallTimeout:           10 * time.Second,
		EventTopic:            "lakeadmin-events",
		TenantTopic:           "user-events",
		Sender:                "coordinator",
		GatewayImage:          "ehualu.com/minio",
		GatewayPort:           9000,
		ActivationConcurrency: 4,
	}
}

// OptionsFromConfig derives coordinator options from the server config.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.CallTimeout = cfg.BackendTimeout
	opts.EventTopic = cfg.EventTopic
	opts.TenantTopic = cfg.TenantTopic
	opts.Sender = cfg.EventSender
	opts.GatewayImage = cfg.GatewayImage
	opts.BackendURL = cfg.GatewayBackendURL()
	opts.ActivationConcurrency = cfg.ActivationConcurrency
	opts.ActivateOnCreate = cfg.ActivateOnCreate
	return opts
}

// Coordinator holds only client handles and options; it is safe for
// concurrent use. Operations on the same uid or id are not serialized here:
// duplicate-uid creation is rejected by the registry itself.
type Coordinator struct {
	registry    registry.Registry
	store       docstore.Store
	publisher   events.Publisher
	provisioner provisioner.Provisioner
	log         logging.Logger
	metrics     *metrics.Collector
	opts        Options
}

// NewCoordinator wires a Coordinator. m may be nil.
func NewCoordinator(
	reg registry.Registry,
	store docstore.Store,
	pub events.Publisher,
	prov provisioner.Provisioner,
	log logging.Logger,
	m *metrics.Collector,
	opts Options,
) *Coordinator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	if opts.ActivationConcurrency <= 0 {
		opts.ActivationConcurrency = 1
	}
	return &Coordinator{
		registry:    reg,
		store:       store,
		publisher:   pub,
		provisioner: prov,
		log:         log.With("module", "coordinator"),
		metrics:     m,
		opts:        opts,
	}
}

// call runs fn against an external system under the per-call timeout and
// reduces its error to one of the common kinds.
func (c *Coordinator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	return classify(ctx, err)
}

var kinds = []error{
	common.ErrorNotFound,
	common.ErrorConflict,
	common.ErrorValidation,
	common.ErrorBackendTimeout,
	common.ErrorBackend,
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if !errors.Is(err, common.ErrorBackendTimeout) {
			return fmt.Errorf("%w: %v", common.ErrorBackendTimeout, err)
		}
		return err
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", common.ErrorBackend, err)
}

// observe records a finished workflow.
func (c *Coordinator) observe(operation string, started time.Time, warns Warnings, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case len(warns) > 0:
		outcome = metrics.OutcomePartial
	}
	c.metrics.ObserveWorkflow(operation, outcome, time.Since(started))
}
