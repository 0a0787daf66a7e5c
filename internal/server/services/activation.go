package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/server/metrics"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/dmitrijs2005/lakeadmin/internal/server/provisioner"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Environment of a gateway instance.
const (
	EnvAccessKey = "MINIO_ACCESS_KEY"
	EnvSecretKey = "MINIO_SECRET_KEY"
)

const (
	maxServiceNameLen = 63
	nameHashBytes     = 5
)

var (
	invalidNameChars  = regexp.MustCompile(`[^a-z0-9-]+`)
	invalidLabelChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

	gatewayNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:lakeadmin:gateway"))
)

// ServiceName is the deterministic instance name of the key pair accessKey
// of uid: "s3-<uid>-<hash>", where hash is taken from the exact uid and
// access key. Two tenants never share a name, even when their uids sanitise
// to the same label, and the name of a key does not depend on the other keys
// of the tenant. The result is a valid DNS-1123 label.
func ServiceName(uid, accessKey string) string {
	base := strings.Trim(invalidNameChars.ReplaceAllString(strings.ToLower(uid), "-"), "-")
	if base == "" {
		base = "tenant"
	}
	sum := uuid.NewSHA1(gatewayNamespace, []byte(uid+"\x00"+accessKey))
	suffix := "-" + hex.EncodeToString(sum[:nameHashBytes])

	name := "s3-" + base
	if len(name)+len(suffix) > maxServiceNameLen {
		name = strings.TrimRight(name[:maxServiceNameLen-len(suffix)], "-")
	}
	return name + suffix
}

// ActivateTenantService asks the provisioner for one gateway per key pair
// of uid. It returns once every request has been issued; readiness is not
// awaited. An instance that already exists counts as started.
func (c *Coordinator) ActivateTenantService(ctx context.Context, uid string) (warns Warnings, err error) {
	started := time.Now()
	defer func() { c.observe("activate_tenant", started, warns, err) }()

	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", common.ErrorValidation)
	}
	tenant, err := c.fetchTenant(ctx, uid)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			c.log.Error(ctx, "fetch before activation failed", "uid", uid, "system", "registry", "error", err)
		}
		return nil, err
	}
	warns = c.activate(ctx, tenant)
	c.recordWarnings(warns)
	return warns, nil
}

// ActivationReport summarizes ActivateAllTenantServices.
type ActivationReport struct {
	Tenants  []string `json:"tenants"`
	Warnings Warnings `json:"warnings,omitempty"`
}

// ActivateAllTenantServices activates every tenant with at most
// ActivationConcurrency activations in flight. A failing tenant never
// cancels the others; its failure is reported as a Warning. Only a failure
// to list tenants fails the call.
func (c *Coordinator) ActivateAllTenantServices(ctx context.Context) (report *ActivationReport, err error) {
	started := time.Now()
	defer func() {
		var warns Warnings
		if report != nil {
			warns = report.Warnings
		}
		c.observe("activate_all", started, warns, err)
	}()

	uids, err := c.ListTenants(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		warns Warnings
	)
	g := new(errgroup.Group)
	g.SetLimit(c.opts.ActivationConcurrency)

	for _, uid := range uids {
		uid := uid
		g.Go(func() error {
			w, err := c.ActivateTenantService(ctx, uid)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warns.add(uid, StepActivateTenant, err)
				return nil
			}
			warns = append(warns, w...)
			return nil
		})
	}
	_ = g.Wait()

	c.log.Info(ctx, "tenant activation finished", "tenants", len(uids), "warnings", len(warns))
	return &ActivationReport{Tenants: uids, Warnings: warns}, nil
}

func (c *Coordinator) activate(ctx context.Context, tenant *models.Tenant) Warnings {
	var warns Warnings
	for _, k := range tenant.Keys {
		if k.AccessKey == "" || k.SecretKey == "" {
			continue
		}
		spec := c.serviceSpec(tenant.UID, k)

		err := c.call(ctx, func(ctx context.Context) error {
			return c.provisioner.StartService(ctx, spec)
		})
		switch {
		case err == nil:
			c.metrics.Activation(metrics.ActivationStarted)
		case provisioner.IsAlreadyExists(err):
			c.metrics.Activation(metrics.ActivationExists)
		default:
			c.metrics.Activation(metrics.ActivationFailed)
			c.log.Warn(ctx, "gateway start failed",
				"uid", tenant.UID, "service", spec.Name, "access_key", k.AccessKey, "system", "orchestrator", "error", err)
			warns.add(k.AccessKey, StepStartService, err)
		}
	}
	return warns
}

func (c *Coordinator) serviceSpec(uid string, key models.AccessKeyPair) provisioner.ServiceSpec {
	return provisioner.ServiceSpec{
		Name:  ServiceName(uid, key.AccessKey),
		Owner: uid,
		Image: c.opts.GatewayImage,
		Env: map[string]string{
			EnvAccessKey: key.AccessKey,
			EnvSecretKey: key.SecretKey,
		},
		Args:   []string{"gateway", "s3", c.opts.BackendURL},
		Labels: map[string]string{"lakeadmin/uid": labelValue(uid)},
		Port:   c.opts.GatewayPort,
	}
}

// labelValue fits uid into a Kubernetes label value.
func labelValue(uid string) string {
	v := strings.Trim(invalidLabelChars.ReplaceAllString(uid, "_"), "._-")
	if len(v) > 63 {
		v = strings.TrimRight(v[:63], "._-")
	}
	return v
}
