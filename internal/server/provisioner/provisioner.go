// Package provisioner starts per-tenant storage gateway instances on the
// container orchestrator.
package provisioner

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
)

// ErrAlreadyExists reports that an instance with the requested name is
// already running. Callers activating idempotently treat it as success.
var ErrAlreadyExists = fmt.Errorf("service %w", common.ErrorConflict)

// ErrOwnerMismatch reports that the requested name is taken by an instance
// of another owner. It is never an ErrAlreadyExists.
var ErrOwnerMismatch = fmt.Errorf("service owned by another tenant: %w", common.ErrorConflict)

// ServiceSpec describes one gateway instance.
type ServiceSpec struct {
	Name string
	// Owner is the tenant the instance serves. An existing instance of a
	// different owner is never reused or modified.
	Owner  string
	Image  string
	Env    map[string]string
	Args   []string
	Labels map[string]string
	// Port is exposed through a cluster Service when non-zero.
	Port int32
}

func (s ServiceSpec) validate() error {
	if s.Name == "" || s.Image == "" {
		return fmt.Errorf("%w: service name and image are required", common.ErrorValidation)
	}
	return nil
}

// Provisioner is the provisioning contract.
type Provisioner interface {
	StartService(ctx context.Context, svc ServiceSpec) error
}

// IsAlreadyExists reports whether err means the instance already runs.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
