package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geoserve/confgen/pkg/assembler"
	"github.com/geoserve/confgen/pkg/async"
	"github.com/geoserve/confgen/pkg/observability"
	"github.com/geoserve/confgen/pkg/permissions"
	"github.com/geoserve/confgen/pkg/projects"
	"github.com/geoserve/confgen/pkg/resource"
	"github.com/geoserve/confgen/pkg/store"
	"github.com/geoserve/confgen/pkg/tenant"
)

// ErrTenantBusy is returned when a generation task is already pending or
// running for the tenant.
var ErrTenantBusy = errors.New("a generation task is already active for this tenant")

// ErrTaskNotFound is returned for unknown task IDs.
var ErrTaskNotFound = errors.New("task not found")

// DefaultRetention is how long terminal tasks stay queryable.
const DefaultRetention = time.Hour

// ConfigStore is the slice of the config database the generator reads.
// *store.Store satisfies it; tests substitute an in-memory fake.
type ConfigStore interface {
	Resources(ctx context.Context) ([]resource.Record, error)
	Grants(ctx context.Context) ([]permissions.Grant, error)
	Roles(ctx context.Context) ([]string, error)
	Users(ctx context.Context) ([]permissions.User, error)
	Groups(ctx context.Context) ([]permissions.Group, error)
	Close() error
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// InputDir holds one subdirectory per tenant with its tenantConfig file.
	InputDir string
	// OutputDir receives one published subdirectory per tenant.
	OutputDir string
	// Retention bounds how long finished tasks stay queryable. Zero means
	// DefaultRetention.
	Retention time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Validator checks assembled documents. Nil disables schema validation.
	Validator assembler.Validator

	// OpenStore opens the tenant's config database. Nil uses store.Open.
	OpenStore func(databaseURL string) (ConfigStore, error)
}

// Manager runs generation tasks, enforcing one active task per tenant.
type Manager struct {
	opts      ManagerOptions
	openStore func(string) (ConfigStore, error)
	logger    *observability.Logger

	mu     sync.Mutex
	tasks  map[string]*Task
	active map[string]*Task

	provMu    sync.Mutex
	providers map[string]*metadataCache
	watchers  []*projects.Watcher
}

// metadataCache is a shared per-directory project metadata cache and
// whether a filesystem watcher keeps it fresh.
type metadataCache struct {
	cache   *projects.CachingProvider
	watched bool
}

// NewManager creates a task manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	openStore := opts.OpenStore
	if openStore == nil {
		openStore = func(databaseURL string) (ConfigStore, error) {
			return store.Open(databaseURL)
		}
	}
	return &Manager{
		opts:      opts,
		openStore: openStore,
		logger:    opts.Logger,
		tasks:     make(map[string]*Task),
		active:    make(map[string]*Task),
		providers: make(map[string]*metadataCache),
	}
}

// providerFor returns the shared project metadata cache for a directory,
// creating it and its invalidating filesystem watcher on first use.
func (m *Manager) providerFor(dir string) (*metadataCache, error) {
	m.provMu.Lock()
	defer m.provMu.Unlock()
	if mc, ok := m.providers[dir]; ok {
		return mc, nil
	}
	cache, err := projects.NewCachingProvider(projects.NewDirProvider(dir), 0)
	if err != nil {
		return nil, err
	}
	mc := &metadataCache{cache: cache, watched: true}
	if w, err := projects.NewWatcher(dir, cache, m.logger); err != nil {
		m.logger.WithField("dir", dir).WithError(err).
			Warn("cannot watch project metadata dir")
		mc.watched = false
	} else {
		m.watchers = append(m.watchers, w)
	}
	m.providers[dir] = mc
	return mc, nil
}

// Close stops the project metadata watchers. Running tasks are not
// interrupted.
func (m *Manager) Close() error {
	m.provMu.Lock()
	defer m.provMu.Unlock()
	var firstErr error
	for _, w := range m.watchers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.watchers = nil
	return firstErr
}

// Start launches a background generation task for a tenant. It returns
// ErrTenantBusy when another task for the tenant has not finished yet.
func (m *Manager) Start(tenantName string, opts Options) (*Task, error) {
	m.prune()

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if _, busy := m.active[tenantName]; busy {
		m.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrTenantBusy, tenantName)
	}
	task := newTask(uuid.NewString(), tenantName, cancel)
	m.tasks[task.ID] = task
	m.active[tenantName] = task
	m.mu.Unlock()

	m.logger.WithField("task_id", task.ID).WithField("tenant", tenantName).
		Info("generation task started")

	async.SafeGoNoError(ctx, 0, "generation "+task.ID, m.logger, func(ctx context.Context) {
		m.run(ctx, task, opts)
	})
	return task, nil
}

// Stream starts a generation task and forwards each log line to sink as
// it is produced, blocking until the task finishes. A done streamCtx
// detaches the caller without cancelling the task. The returned Info is
// the task's state when streaming stopped.
func (m *Manager) Stream(streamCtx context.Context, tenantName string, opts Options, sink func(LogLine)) (Info, error) {
	task, err := m.Start(tenantName, opts)
	if err != nil {
		return Info{}, err
	}
	lines, unsubscribe := task.Log().Subscribe()
	defer unsubscribe()
	for {
		select {
		case line, open := <-lines:
			if !open {
				return task.Snapshot(), nil
			}
			sink(line)
		case <-streamCtx.Done():
			return task.Snapshot(), streamCtx.Err()
		}
	}
}

// Task looks up a task by ID.
func (m *Manager) Task(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task, nil
}

// Tasks returns all retained tasks, newest first.
func (m *Manager) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].createdAt.After(out[j].createdAt)
	})
	return out
}

// Cancel requests cooperative cancellation of a task. Cancelling a task
// that already reached a terminal state is a no-op.
func (m *Manager) Cancel(id string) error {
	task, err := m.Task(id)
	if err != nil {
		return err
	}
	task.cancel()
	return nil
}

// DiscoverTenants lists the tenants with a config file under the input
// directory.
func (m *Manager) DiscoverTenants() ([]string, error) {
	entries, err := os.ReadDir(m.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir: %w", err)
	}
	var tenants []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := tenant.Locate(filepath.Join(m.opts.InputDir, e.Name())); err == nil {
			tenants = append(tenants, e.Name())
		}
	}
	return tenants, nil
}

// prune drops terminal tasks past the retention window.
func (m *Manager) prune() {
	cutoff := time.Now().UTC().Add(-m.opts.Retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, task := range m.tasks {
		if task.finishedBefore(cutoff) {
			delete(m.tasks, id)
		}
	}
}

// run drives a task through its lifecycle. A panic in the pipeline marks
// the task failed instead of crashing the process.
func (m *Manager) run(ctx context.Context, task *Task, opts Options) {
	task.setRunning()
	start := time.Now()
	if m.opts.Metrics != nil {
		m.opts.Metrics.TasksActive.Inc()
	}

	err := async.Recovered(func() error {
		return m.execute(ctx, task, opts)
	})

	status := StatusSucceeded
	switch {
	case err == nil:
		task.log.Infof("Generation finished")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		status = StatusCancelled
		task.log.Warnf("Generation cancelled")
	default:
		status = StatusFailed
		task.log.Errorf("Generation failed: %s", err)
	}
	// free the tenant slot before the task is observable as terminal, so
	// a waiter can immediately start the next run
	m.mu.Lock()
	if m.active[task.Tenant] == task {
		delete(m.active, task.Tenant)
	}
	m.mu.Unlock()

	task.finish(status, err)
	task.log.Close()

	if m.opts.Metrics != nil {
		m.opts.Metrics.TasksActive.Dec()
		m.opts.Metrics.GenerationsTotal.WithLabelValues(task.Tenant, string(status)).Inc()
		m.opts.Metrics.GenerationDuration.WithLabelValues(task.Tenant).Observe(time.Since(start).Seconds())
	}
	m.logger.WithField("task_id", task.ID).WithField("tenant", task.Tenant).
		WithField("status", string(status)).
		Info("generation task finished")
}

// execute is the generation pipeline: load tenant config, read the config
// database, resolve permissions, apply declared overrides, assemble and
// validate documents, publish atomically.
func (m *Manager) execute(ctx context.Context, task *Task, opts Options) error {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		var err error
		cfgPath, err = tenant.Locate(filepath.Join(m.opts.InputDir, task.Tenant))
		if err != nil {
			return err
		}
	}
	task.log.Infof("Reading tenant config %s", cfgPath)
	cfg, err := tenant.Load(cfgPath)
	if err != nil {
		return err
	}
	if name := cfg.Tenant(); name != task.Tenant {
		task.log.Warnf("Config declares tenant '%s', generating for '%s'", name, task.Tenant)
	}

	policy := opts.apply(cfg.Policy())

	registry, err := resource.NewRegistry(policy.CustomResourceTypes...)
	if err != nil {
		return err
	}

	if cfg.Generator.ConfigDBURL == "" {
		return fmt.Errorf("tenant config has no config_db_url")
	}
	st, err := m.openStore(cfg.Generator.ConfigDBURL)
	if err != nil {
		return fmt.Errorf("failed to open config database: %w", err)
	}
	defer st.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	records, err := st.Resources(ctx)
	if err != nil {
		return fmt.Errorf("failed to read resources: %w", err)
	}
	grants, err := st.Grants(ctx)
	if err != nil {
		return fmt.Errorf("failed to read permissions: %w", err)
	}
	roles, err := st.Roles(ctx)
	if err != nil {
		return fmt.Errorf("failed to read roles: %w", err)
	}
	users, err := st.Users(ctx)
	if err != nil {
		return fmt.Errorf("failed to read users: %w", err)
	}
	groups, err := st.Groups(ctx)
	if err != nil {
		return fmt.Errorf("failed to read groups: %w", err)
	}
	task.log.Infof("Read %d resources and %d permissions from config database",
		len(records), len(grants))

	forest, err := resource.BuildForest(registry, records)
	if err != nil {
		return err
	}

	resolver, err := permissions.NewResolver(forest, policy, grants, roles, task.log)
	if err != nil {
		return err
	}
	resolved, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	var provider projects.Provider
	if dir := cfg.Generator.ProjectMetadataDir; dir != "" {
		mc, err := m.providerFor(dir)
		if err != nil {
			return err
		}
		// serve cached metadata only while the watcher keeps it fresh,
		// unless the run says otherwise
		useCached := mc.watched
		if opts.UseCachedProjectMetadata != nil {
			useCached = *opts.UseCachedProjectMetadata
		}
		if useCached {
			provider = mc.cache
		} else {
			task.log.Infof("Reading project metadata without cache")
			provider = mc.cache.Fresh()
		}
	}

	a := assembler.New(assembler.Inputs{
		Tenant:   task.Tenant,
		Config:   cfg,
		Policy:   policy,
		Forest:   forest,
		Resolved: resolved,
		Users:    users,
		Groups:   groups,
		Projects: provider,
		Metrics:  m.opts.Metrics,
	}, m.opts.Validator, task.log)

	if err := a.ApplyOverrides(ctx); err != nil {
		return err
	}

	staging, err := assembler.NewStaging(m.opts.OutputDir, task.Tenant)
	if err != nil {
		return err
	}
	published := false
	defer func() {
		if !published {
			if err := staging.Discard(); err != nil {
				task.log.Warnf("Could not remove staging dir: %s", err)
			}
		}
	}()

	if err := a.AssembleAll(ctx, staging); err != nil {
		return err
	}
	if err := a.WritePermissions(ctx, staging); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.opts.Metrics != nil {
		for _, f := range staging.Files() {
			m.opts.Metrics.DocumentsWrittenTotal.WithLabelValues(task.Tenant, f).Inc()
		}
	}

	dir, err := staging.Publish()
	if err != nil {
		return err
	}
	published = true
	task.setOutputDir(dir)
	task.log.Infof("Published %d files to %s", len(staging.Files()), dir)
	return nil
}
