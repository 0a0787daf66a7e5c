package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/server/docstore"
	"github.com/dmitrijs2005/lakeadmin/internal/server/events"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
)

// CreateTenant creates the identity, then indexes every key pair the
// registry reports in the credential store.
//
// Registry failures abort with common.ErrorConflict or a backend error;
// nothing has been written at that point. After the identity exists every
// later failure (credential writes, activation, the user.add event) becomes
// a Warning next to the returned tenant. SyncCredentials repairs missing
// credential documents.
func (c *Coordinator) CreateTenant(ctx context.Context, spec models.TenantSpec) (tenant *models.Tenant, warns Warnings, err error) {
	started := time.Now()
	defer func() { c.observe("create_tenant", started, warns, err) }()

	if spec.UID == "" {
		return nil, nil, fmt.Errorf("%w: uid is required", common.ErrorValidation)
	}
	if spec.MaxBuckets != nil && *spec.MaxBuckets < 0 {
		return nil, nil, fmt.Errorf("%w: max_buckets must not be negative", common.ErrorValidation)
	}
	if (spec.AccessKey == "") != (spec.SecretKey == "") {
		return nil, nil, fmt.Errorf("%w: access_key and secret_key go together", common.ErrorValidation)
	}
	spec = spec.WithDefaults()
	log := c.log.With("uid", spec.UID)

	var created *models.Tenant
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		created, err = c.registry.CreateUser(ctx, spec)
		return err
	})
	if err != nil {
		log.Error(ctx, "registry create failed", "system", "registry", "error", err)
		return nil, nil, err
	}

	tenant, err = c.fetchTenant(ctx, spec.UID)
	if err != nil {
		log.Warn(ctx, "re-fetch after create failed, using create result", "system", "registry", "error", err)
		warns.add(spec.UID, StepFetchUser, err)
		tenant = created
	}

	warns = append(warns, c.writeCredentials(ctx, tenant)...)

	if spec.Activate || c.opts.ActivateOnCreate {
		warns = append(warns, c.activate(ctx, tenant)...)
	}

	if w := c.publishTenantEvent(ctx, models.EventUserAdd, spec.UID); w != nil {
		warns = append(warns, *w)
	}

	c.recordWarnings(warns)
	log.Info(ctx, "tenant created", "keys", len(tenant.Keys), "warnings", len(warns))
	return tenant, warns, nil
}

// GetTenant reads the identity from the registry.
func (c *Coordinator) GetTenant(ctx context.Context, uid string) (*models.Tenant, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", common.ErrorValidation)
	}
	t, err := c.fetchTenant(ctx, uid)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		c.log.Error(ctx, "get tenant failed", "uid", uid, "system", "registry", "error", err)
	}
	return t, err
}

// ListTenants returns every uid known to the registry.
func (c *Coordinator) ListTenants(ctx context.Context) ([]string, error) {
	var uids []string
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		uids, err = c.registry.ListUsers(ctx)
		return err
	})
	if err != nil {
		c.log.Error(ctx, "list tenants failed", "system", "registry", "error", err)
		return nil, err
	}
	return uids, nil
}

// RemoveTenant deletes a tenant. An unknown uid is success, so the call is
// safe to repeat. Credential documents are deleted best effort before the
// identity; only a registry failure fails the call.
func (c *Coordinator) RemoveTenant(ctx context.Context, uid string) (warns Warnings, err error) {
	started := time.Now()
	defer func() { c.observe("remove_tenant", started, warns, err) }()

	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", common.ErrorValidation)
	}
	log := c.log.With("uid", uid)

	tenant, err := c.fetchTenant(ctx, uid)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			log.Debug(ctx, "tenant already removed")
			return nil, nil
		}
		log.Error(ctx, "fetch before remove failed", "system", "registry", "error", err)
		return nil, err
	}

	for _, k := range tenant.Keys {
		if k.AccessKey == "" {
			continue
		}
		err := c.call(ctx, func(ctx context.Context) error {
			return c.store.Delete(ctx, common.CollectionCredentials, k.AccessKey)
		})
		if err != nil {
			log.Warn(ctx, "credential delete failed", "access_key", k.AccessKey, "system", "store", "error", err)
			warns.add(k.AccessKey, StepDeleteCredential, err)
		}
	}

	err = c.call(ctx, func(ctx context.Context) error {
		return c.registry.RemoveUser(ctx, uid)
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		log.Error(ctx, "registry remove failed", "system", "registry", "error", err)
		c.recordWarnings(warns)
		return warns, err
	}

	if w := c.publishTenantEvent(ctx, models.EventUserRemove, uid); w != nil {
		warns = append(warns, *w)
	}

	c.recordWarnings(warns)
	log.Info(ctx, "tenant removed", "warnings", len(warns))
	return warns, nil
}

// GetCredential resolves an access key to its credential document.
func (c *Coordinator) GetCredential(ctx context.Context, accessKey string) (*models.Credential, error) {
	if accessKey == "" {
		return nil, fmt.Errorf("%w: access_key is required", common.ErrorValidation)
	}
	var cred models.Credential
	err := c.call(ctx, func(ctx context.Context) error {
		return docstore.GetJSON(ctx, c.store, common.CollectionCredentials, accessKey, &cred)
	})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			c.log.Error(ctx, "credential lookup failed", "access_key", accessKey, "system", "store", "error", err)
		}
		return nil, err
	}
	return &cred, nil
}

// SyncCredentials rewrites the credential document of every key the
// registry reports for uid. It repairs a CreateTenant that returned
// write_credential warnings.
func (c *Coordinator) SyncCredentials(ctx context.Context, uid string) (tenant *models.Tenant, warns Warnings, err error) {
	started := time.Now()
	defer func() { c.observe("sync_credentials", started, warns, err) }()

	if uid == "" {
		return nil, nil, fmt.Errorf("%w: uid is required", common.ErrorValidation)
	}
	tenant, err = c.fetchTenant(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	warns = c.writeCredentials(ctx, tenant)
	c.recordWarnings(warns)
	return tenant, warns, nil
}

func (c *Coordinator) fetchTenant(ctx context.Context, uid string) (*models.Tenant, error) {
	var t *models.Tenant
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		t, err = c.registry.GetUser(ctx, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// writeCredentials writes one document per key and keeps going past
// failures.
func (c *Coordinator) writeCredentials(ctx context.Context, tenant *models.Tenant) Warnings {
	var warns Warnings
	for _, k := range tenant.Keys {
		if k.AccessKey == "" {
			continue
		}
		cred := models.NewCredential(tenant.UID, k)
		err := c.call(ctx, func(ctx context.Context) error {
			return docstore.PutJSON(ctx, c.store, common.CollectionCredentials, k.AccessKey, cred)
		})
		if err != nil {
			c.log.Warn(ctx, "credential write failed",
				"uid", tenant.UID, "access_key", k.AccessKey, "system", "store", "error", err)
			warns.add(k.AccessKey, StepWriteCredential, err)
		}
	}
	return warns
}

func (c *Coordinator) publishTenantEvent(ctx context.Context, eventType, uid string) *Warning {
	if c.opts.TenantTopic == "" {
		return nil
	}
	ev := events.New(c.opts.Sender, eventType, map[string]any{"uid": uid, "action": eventType})
	err := c.call(ctx, func(ctx context.Context) error {
		return c.publisher.Publish(ctx, c.opts.TenantTopic, ev)
	})
	if err != nil {
		c.log.Warn(ctx, "event publish failed",
			"type", eventType, "uid", uid, "topic", c.opts.TenantTopic, "system", "bus", "error", err)
		return &Warning{Item: eventType, Step: StepPublishEvent, Message: err.Error()}
	}
	return nil
}

func (c *Coordinator) recordWarnings(warns Warnings) {
	for _, w := range warns {
		c.metrics.Warning(w.Step)
	}
}
