package httpapi

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/dmitrijs2005/lakeadmin/internal/server/services"
)

// fakeCoordinator answers from canned values; err, when set, fails every call.
type fakeCoordinator struct {
	err      error
	warnings services.Warnings
	panicOn  string

	tenants map[string]*models.Tenant
	creds   map[string]*models.Credential
	das     map[string]models.Document
	jobs    map[string]models.Document

	lastSpec models.TenantSpec
	calls    []string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		tenants: map[string]*models.Tenant{},
		creds:   map[string]*models.Credential{},
		das:     map[string]models.Document{},
		jobs:    map[string]models.Document{},
	}
}

func (f *fakeCoordinator) enter(op string) error {
	f.calls = append(f.calls, op)
	if f.panicOn == op {
		panic("boom in " + op)
	}
	return f.err
}

func (f *fakeCoordinator) CreateTenant(ctx context.Context, spec models.TenantSpec) (*models.Tenant, services.Warnings, error) {
	if err := f.enter("CreateTenant"); err != nil {
		return nil, nil, err
	}
	f.lastSpec = spec
	t := &models.Tenant{UID: spec.UID, DisplayName: spec.UID, MaxBuckets: models.DefaultMaxBuckets,
		Keys: []models.AccessKeyPair{{AccessKey: "AK-" + spec.UID, SecretKey: "SK-" + spec.UID}}}
	f.tenants[spec.UID] = t
	return t, f.warnings, nil
}

func (f *fakeCoordinator) GetTenant(ctx context.Context, uid string) (*models.Tenant, error) {
	if err := f.enter("GetTenant"); err != nil {
		return nil, err
	}
	t, ok := f.tenants[uid]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", common.ErrorNotFound, uid)
	}
	return t, nil
}

func (f *fakeCoordinator) ListTenants(ctx context.Context) ([]string, error) {
	if err := f.enter("ListTenants"); err != nil {
		return nil, err
	}
	return []string{"alice", "bob"}, nil
}

func (f *fakeCoordinator) RemoveTenant(ctx context.Context, uid string) (services.Warnings, error) {
	if err := f.enter("RemoveTenant"); err != nil {
		return nil, err
	}
	delete(f.tenants, uid)
	return f.warnings, nil
}

func (f *fakeCoordinator) SyncCredentials(ctx context.Context, uid string) (*models.Tenant, services.Warnings, error) {
	if err := f.enter("SyncCredentials"); err != nil {
		return nil, nil, err
	}
	t, err := f.GetTenant(ctx, uid)
	return t, f.warnings, err
}

func (f *fakeCoordinator) GetCredential(ctx context.Context, accessKey string) (*models.Credential, error) {
	if err := f.enter("GetCredential"); err != nil {
		return nil, err
	}
	c, ok := f.creds[accessKey]
	if !ok {
		return nil, fmt.Errorf("%w: credential %q", common.ErrorNotFound, accessKey)
	}
	return c, nil
}

func (f *fakeCoordinator) CreateDA(ctx context.Context, doc models.Document) (models.Document, error) {
	if err := f.enter("CreateDA"); err != nil {
		return nil, err
	}
	if doc.ID() == "" {
		return nil, fmt.Errorf("%w: id is required", common.ErrorValidation)
	}
	f.das[doc.ID()] = doc
	return doc, nil
}

func (f *fakeCoordinator) GetDA(ctx context.Context, id string) (models.Document, error) {
	if err := f.enter("GetDA"); err != nil {
		return nil, err
	}
	d, ok := f.das[id]
	if !ok {
		return nil, fmt.Errorf("%w: da %q", common.ErrorNotFound, id)
	}
	return d, nil
}

func (f *fakeCoordinator) ListDAs(ctx context.Context) ([]string, error) {
	if err := f.enter("ListDAs"); err != nil {
		return nil, err
	}
	return []string{}, nil
}

func (f *fakeCoordinator) CreateArchiveJob(ctx context.Context, job models.Document) (models.Document, services.Warnings, error) {
	if err := f.enter("CreateArchiveJob"); err != nil {
		return nil, nil, err
	}
	job = job.Clone()
	if job.StringField("bucket") == "" {
		job["bucket"] = models.DefaultArchiveBucket
	}
	f.jobs[job.ID()] = job
	return job, f.warnings, nil
}

func (f *fakeCoordinator) GetArchiveJob(ctx context.Context, id string) (models.Document, error) {
	if err := f.enter("GetArchiveJob"); err != nil {
		return nil, err
	}
	d, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %q", common.ErrorNotFound, id)
	}
	return d, nil
}

func (f *fakeCoordinator) ListArchiveJobs(ctx context.Context) ([]string, error) {
	if err := f.enter("ListArchiveJobs"); err != nil {
		return nil, err
	}
	return []string{"j1"}, nil
}

func (f *fakeCoordinator) ActivateTenantService(ctx context.Context, uid string) (services.Warnings, error) {
	if err := f.enter("ActivateTenantService"); err != nil {
		return nil, err
	}
	return f.warnings, nil
}

func (f *fakeCoordinator) ActivateAllTenantServices(ctx context.Context) (*services.ActivationReport, error) {
	if err := f.enter("ActivateAllTenantServices"); err != nil {
		return nil, err
	}
	return &services.ActivationReport{Tenants: []string{"alice", "bob"}, Warnings: f.warnings}, nil
}
