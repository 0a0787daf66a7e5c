package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/ceph/go-ceph/rgw/admin"
	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
)

const s3KeyType = "s3"

// rgwAPI is the part of *admin.API used here.
type rgwAPI interface {
	CreateUser(ctx context.Context, user admin.User) (admin.User, error)
	GetUser(ctx context.Context, user admin.User) (admin.User, error)
	GetUsers(ctx context.Context) (*[]string, error)
	RemoveUser(ctx context.Context, user admin.User) error
	CreateKey(ctx context.Context, key admin.UserKeySpec) (*[]admin.UserKeySpec, error)
}

// newAdminAPI is a seam for tests.
var newAdminAPI = func(endpoint, accessKey, secretKey string, client *http.Client) (rgwAPI, error) {
	return admin.New(endpoint, accessKey, secretKey, client)
}

// RGWRegistry implements Registry on top of go-ceph's admin client.
type RGWRegistry struct {
	api rgwAPI
	log logging.Logger
}

// NewRGWRegistry connects to the admin API at endpoint with the given admin
// key pair. client may be nil.
func NewRGWRegistry(endpoint, accessKey, secretKey string, client *http.Client, log logging.Logger) (*RGWRegistry, error) {
	if client == nil {
		client = http.DefaultClient
	}
	api, err := newAdminAPI(endpoint, accessKey, secretKey, client)
	if err != nil {
		return nil, fmt.Errorf("rgw admin client: %w", err)
	}
	return &RGWRegistry{api: api, log: log.With("module", "registry")}, nil
}

// CreateUser creates the user. A caller-supplied key pair is attached after
// creation with key generation disabled; if attaching fails the user is
// removed again so the call leaves nothing behind.
func (r *RGWRegistry) CreateUser(ctx context.Context, spec models.TenantSpec) (*models.Tenant, error) {
	spec = spec.WithDefaults()

	generate := !spec.HasKeyPair()
	u, err := r.api.CreateUser(ctx, admin.User{
		ID:          spec.UID,
		DisplayName: spec.DisplayName,
		Email:       spec.Email,
		MaxBuckets:  spec.MaxBuckets,
		KeyType:     s3KeyType,
		GenerateKey: &generate,
	})
	if err != nil {
		return nil, classify("create user", spec.UID, err)
	}

	if !generate {
		noGenerate := false
		keys, err := r.api.CreateKey(ctx, admin.UserKeySpec{
			UID:         spec.UID,
			KeyType:     s3KeyType,
			AccessKey:   spec.AccessKey,
			SecretKey:   spec.SecretKey,
			GenerateKey: &noGenerate,
		})
		if err != nil {
			r.log.Error(ctx, "attach key failed, removing user", "uid", spec.UID, "error", err)
			if rerr := r.api.RemoveUser(ctx, admin.User{ID: spec.UID}); rerr != nil {
				r.log.Error(ctx, "remove after failed key attach", "uid", spec.UID, "error", rerr)
			}
			return nil, classify("create key", spec.UID, err)
		}
		if keys != nil {
			u.Keys = *keys
		}
	}

	return toTenant(u), nil
}

func (r *RGWRegistry) GetUser(ctx context.Context, uid string) (*models.Tenant, error) {
	u, err := r.api.GetUser(ctx, admin.User{ID: uid})
	if err != nil {
		return nil, classify("get user", uid, err)
	}
	return toTenant(u), nil
}

func (r *RGWRegistry) ListUsers(ctx context.Context) ([]string, error) {
	ids, err := r.api.GetUsers(ctx)
	if err != nil {
		return nil, classify("list users", "", err)
	}
	if ids == nil {
		return []string{}, nil
	}
	out := append([]string(nil), (*ids)...)
	sort.Strings(out)
	return out, nil
}

func (r *RGWRegistry) RemoveUser(ctx context.Context, uid string) error {
	if err := r.api.RemoveUser(ctx, admin.User{ID: uid}); err != nil {
		return classify("remove user", uid, err)
	}
	return nil
}

func toTenant(u admin.User) *models.Tenant {
	t := &models.Tenant{
		UID:         u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Keys:        make([]models.AccessKeyPair, 0, len(u.Keys)),
	}
	if u.MaxBuckets != nil {
		t.MaxBuckets = *u.MaxBuckets
	}
	for _, k := range u.Keys {
		t.Keys = append(t.Keys, models.AccessKeyPair{AccessKey: k.AccessKey, SecretKey: k.SecretKey})
	}
	return t
}

func classify(op, uid string, err error) error {
	switch {
	case errors.Is(err, admin.ErrNoSuchUser):
		return fmt.Errorf("%w: user %q", common.ErrorNotFound, uid)
	case errors.Is(err, admin.ErrUserExists):
		return fmt.Errorf("%w: user %q", common.ErrorConflict, uid)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s %q: %v", common.ErrorBackendTimeout, op, uid, err)
	default:
		return fmt.Errorf("%w: %s %q: %v", common.ErrorBackend, op, uid, err)
	}
}
