package generator

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/geoserve/confgen/pkg/observability"
	"github.com/geoserve/confgen/pkg/tenant"
)

// Scheduler triggers periodic generation for tenants whose config declares
// a cron schedule. A tick that finds the tenant still busy is skipped.
type Scheduler struct {
	manager *Manager
	logger  *observability.Logger
	cron    *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a scheduler over a task manager. Schedules use the
// standard five-field cron syntax.
func NewScheduler(m *Manager, logger *observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Scheduler{
		manager: m,
		logger:  logger,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Refresh re-reads every tenant config and reconciles the cron entries:
// new schedules are added, changed ones replaced, removed ones dropped.
func (s *Scheduler) Refresh() error {
	tenants, err := s.manager.DiscoverTenants()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(tenants))
	for _, name := range tenants {
		path, err := tenant.Locate(filepath.Join(s.manager.opts.InputDir, name))
		if err != nil {
			continue
		}
		cfg, err := tenant.Load(path)
		if err != nil {
			s.logger.WithField("tenant", name).WithError(err).
				Warn("skipping unparseable tenant config")
			continue
		}
		spec := cfg.Generator.Schedule
		if spec == "" {
			continue
		}
		seen[name] = true
		if err := s.schedule(name, spec); err != nil {
			s.logger.WithField("tenant", name).WithField("schedule", spec).
				WithError(err).Warn("invalid schedule")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, id := range s.entries {
		if !seen[name] {
			s.cron.Remove(id)
			delete(s.entries, name)
		}
	}
	return nil
}

func (s *Scheduler) schedule(tenantName, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[tenantName]; ok {
		s.cron.Remove(id)
		delete(s.entries, tenantName)
	}
	id, err := s.cron.AddFunc(spec, func() {
		_, err := s.manager.Start(tenantName, Options{})
		if errors.Is(err, ErrTenantBusy) {
			s.logger.WithField("tenant", tenantName).
				Warn("skipping scheduled generation, tenant busy")
			return
		}
		if err != nil {
			s.logger.WithField("tenant", tenantName).WithError(err).
				Error("scheduled generation could not start")
		}
	})
	if err != nil {
		return err
	}
	s.entries[tenantName] = id
	s.logger.WithField("tenant", tenantName).WithField("schedule", spec).
		Info("scheduled periodic generation")
	return nil
}

// Start begins executing schedules in a background goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler and waits for a running trigger to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
