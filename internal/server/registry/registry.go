// Package registry is the client of the identity registry: the Ceph RGW
// admin ops API, which owns tenant users and their S3 key pairs.
package registry

import (
	"context"

	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
)

// Registry is the identity registry contract.
//
// CreateUser fails with common.ErrorConflict when the uid exists. GetUser
// and RemoveUser fail with common.ErrorNotFound for an unknown uid. Other
// failures wrap common.ErrorBackend or common.ErrorBackendTimeout.
type Registry interface {
	CreateUser(ctx context.Context, spec models.TenantSpec) (*models.Tenant, error)
	GetUser(ctx context.Context, uid string) (*models.Tenant, error)
	ListUsers(ctx context.Context) ([]string, error)
	RemoveUser(ctx context.Context, uid string) error
}
