package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"github.com/dmitrijs2005/lakeadmin/internal/server/docstore"
	"github.com/dmitrijs2005/lakeadmin/internal/server/metrics"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/dmitrijs2005/lakeadmin/internal/server/provisioner"
)

// --- registry ---

type fakeRegistry struct {
	mu    sync.Mutex
	users map[string]*models.Tenant

	keysPerUser int

	createErr error
	listErr   error
	removeErr error
	getErr    map[string]error
	// getFailuresAfterCreate fails that many GetUser calls made right after
	// CreateUser.
	getFailuresAfterCreate int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{users: map[string]*models.Tenant{}, keysPerUser: 1, getErr: map[string]error{}}
}

func (f *fakeRegistry) CreateUser(ctx context.Context, spec models.TenantSpec) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.users[spec.UID]; ok {
		return nil, fmt.Errorf("%w: user %q", common.ErrorConflict, spec.UID)
	}
	spec = spec.WithDefaults()
	t := &models.Tenant{UID: spec.UID, DisplayName: spec.DisplayName, Email: spec.Email, MaxBuckets: *spec.MaxBuckets}
	if spec.HasKeyPair() {
		t.Keys = []models.AccessKeyPair{{AccessKey: spec.AccessKey, SecretKey: spec.SecretKey}}
	} else {
		for i := 1; i <= f.keysPerUser; i++ {
			t.Keys = append(t.Keys, models.AccessKeyPair{
				AccessKey: fmt.Sprintf("AK%d-%s", i, spec.UID),
				SecretKey: fmt.Sprintf("SK%d-%s", i, spec.UID),
			})
		}
	}
	f.users[spec.UID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeRegistry) GetUser(ctx context.Context, uid string) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[uid]; err != nil {
		return nil, err
	}
	if f.getFailuresAfterCreate > 0 {
		f.getFailuresAfterCreate--
		return nil, fmt.Errorf("%w: registry flapping", common.ErrorBackend)
	}
	t, ok := f.users[uid]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", common.ErrorNotFound, uid)
	}
	cp := *t
	cp.Keys = append([]models.AccessKeyPair(nil), t.Keys...)
	return &cp, nil
}

func (f *fakeRegistry) ListUsers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]string, 0, len(f.users))
	for uid := range f.users {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRegistry) RemoveUser(ctx context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	if _, ok := f.users[uid]; !ok {
		return fmt.Errorf("%w: user %q", common.ErrorNotFound, uid)
	}
	delete(f.users, uid)
	return nil
}

// --- store ---

// flakyStore fails Put/Delete for chosen keys a given number of times.
type flakyStore struct {
	*docstore.MemoryStore

	mu          sync.Mutex
	putFailures map[string]int
	delFailures map[string]int
	getErr      error
	listErr     error
	putBlock    time.Duration
	putCalls    []string
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MemoryStore: docstore.NewMemoryStore(),
		putFailures: map[string]int{},
		delFailures: map[string]int{},
	}
}

func (s *flakyStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	s.mu.Lock()
	s.putCalls = append(s.putCalls, collection+"/"+key)
	if s.putFailures[key] > 0 {
		s.putFailures[key]--
		s.mu.Unlock()
		return fmt.Errorf("%w: put %s/%s: connection reset", common.ErrorBackend, collection, key)
	}
	block := s.putBlock
	s.mu.Unlock()

	if block > 0 {
		select {
		case <-time.After(block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.MemoryStore.Put(ctx, collection, key, doc)
}

func (s *flakyStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, collection, key)
}

func (s *flakyStore) List(ctx context.Context, collection string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.List(ctx, collection)
}

func (s *flakyStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	if s.delFailures[key] > 0 {
		s.delFailures[key]--
		s.mu.Unlock()
		return fmt.Errorf("%w: delete %s/%s", common.ErrorBackend, collection, key)
	}
	s.mu.Unlock()
	return s.MemoryStore.Delete(ctx, collection, key)
}

// --- publisher ---

type published struct {
	topic string
	ev    models.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, ev models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, ev: ev})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) ofType(t string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.ev.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- provisioner ---

type fakeProvisioner struct {
	mu      sync.Mutex
	started []provisioner.ServiceSpec
	running map[string]bool
	failFor map[string]error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{running: map[string]bool{}, failFor: map[string]error{}}
}

func (p *fakeProvisioner) StartService(ctx context.Context, svc provisioner.ServiceSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, svc)
	if err := p.failFor[svc.Name]; err != nil {
		return err
	}
	if p.running[svc.Name] {
		return provisioner.ErrAlreadyExists
	}
	p.running[svc.Name] = true
	return nil
}

func (p *fakeProvisioner) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.started))
	for _, s := range p.started {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// --- wiring ---

type harness struct {
	reg   *fakeRegistry
	store *flakyStore
	pub   *fakePublisher
	prov  *fakeProvisioner
	m     *metrics.Collector
	c     *Coordinator
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		reg:   newFakeRegistry(),
		store: newFlakyStore(),
		pub:   &fakePublisher{},
		prov:  newFakeProvisioner(),
		m:     metrics.NewCollector(),
	}
	opts := DefaultOptions()
	opts.BackendURL = "http://rgw:7480"
	opts.CallTimeout = time.Second
	for _, fn := range mutate {
		fn(&opts)
	}
	h.c = NewCoordinator(h.reg, h.store, h.pub, h.prov, logging.NewDiscardLogger(), h.m, opts)
	return h
}
