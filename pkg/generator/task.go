package generator

import (
	"context"
	"sync"
	"time"

	"github.com/geoserve/confgen/pkg/permissions"
)

// Status is the lifecycle state of a generation task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Options are per-run overrides. A nil pointer keeps the tenant config's
// value. ConfigPath overrides tenant config discovery, used by the CLI.
type Options struct {
	ConfigPath             string
	DefaultAllow           *bool
	InheritInfoPermissions *bool
	ForceReadOnlyDatasets  *bool
	IgnoreErrors           *bool

	// UseCachedProjectMetadata controls whether the run may serve project
	// metadata from the in-process cache. Unset defers to the manager,
	// which caches only while a filesystem watcher keeps entries fresh.
	UseCachedProjectMetadata *bool
}

func (o Options) apply(p permissions.Policy) permissions.Policy {
	if o.DefaultAllow != nil {
		p.DefaultAllow = *o.DefaultAllow
	}
	if o.InheritInfoPermissions != nil {
		p.InheritInfoPermissions = *o.InheritInfoPermissions
	}
	if o.ForceReadOnlyDatasets != nil {
		p.ForceReadOnlyDatasets = *o.ForceReadOnlyDatasets
	}
	if o.IgnoreErrors != nil {
		p.IgnoreErrors = *o.IgnoreErrors
	}
	return p
}

// Task is one generation run for a tenant.
type Task struct {
	ID     string
	Tenant string

	log    *LogBuffer
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	status     Status
	errMessage string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	outputDir  string
}

func newTask(id, tenantName string, cancel context.CancelFunc) *Task {
	return &Task{
		ID:        id,
		Tenant:    tenantName,
		log:       NewLogBuffer(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusPending,
		createdAt: time.Now().UTC(),
	}
}

// Log returns the task's log buffer.
func (t *Task) Log() *LogBuffer { return t.log }

// Status returns the current lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Wait blocks until the task reaches a terminal state or the context is
// done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info is the serializable view of a task for API responses.
type Info struct {
	ID         string     `json:"id"`
	Tenant     string     `json:"tenant"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	OutputDir  string     `json:"output_dir,omitempty"`
}

// Snapshot returns the task's current state.
func (t *Task) Snapshot() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	info := Info{
		ID:        t.ID,
		Tenant:    t.Tenant,
		Status:    t.status,
		Error:     t.errMessage,
		CreatedAt: t.createdAt,
		OutputDir: t.outputDir,
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		info.StartedAt = &started
	}
	if !t.finishedAt.IsZero() {
		finished := t.finishedAt
		info.FinishedAt = &finished
	}
	return info
}

func (t *Task) setRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusRunning
	t.startedAt = time.Now().UTC()
}

func (t *Task) setOutputDir(dir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputDir = dir
}

func (t *Task) finish(status Status, err error) {
	t.mu.Lock()
	t.status = status
	t.finishedAt = time.Now().UTC()
	if err != nil {
		t.errMessage = err.Error()
	}
	t.mu.Unlock()
	close(t.done)
}

func (t *Task) finishedBefore(cutoff time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.Terminal() && t.finishedAt.Before(cutoff)
}
