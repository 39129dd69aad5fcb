package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/geoserve/confgen/pkg/generator"
	"github.com/geoserve/confgen/pkg/httputil"
)

// generateRequest is the optional JSON body of a generation request. Each
// field overrides the tenant config for this run only.
type generateRequest struct {
	DefaultAllow           *bool `json:"default_allow,omitempty"`
	InheritInfoPermissions *bool `json:"inherit_info_permissions,omitempty"`
	ForceReadOnlyDatasets  *bool `json:"force_readonly_datasets,omitempty"`
	IgnoreErrors           *bool `json:"ignore_errors,omitempty"`

	UseCachedProjectMetadata *bool `json:"use_cached_project_metadata,omitempty"`
}

func (g generateRequest) options() generator.Options {
	return generator.Options{
		DefaultAllow:             g.DefaultAllow,
		InheritInfoPermissions:   g.InheritInfoPermissions,
		ForceReadOnlyDatasets:    g.ForceReadOnlyDatasets,
		IgnoreErrors:             g.IgnoreErrors,
		UseCachedProjectMetadata: g.UseCachedProjectMetadata,
	}
}

func (s *Server) tenantFrom(r *http.Request) string {
	if t := r.URL.Query().Get("tenant"); t != "" {
		return t
	}
	return s.defaultTenant
}

func (s *Server) parseOptions(w http.ResponseWriter, r *http.Request) (generator.Options, bool) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return generator.Options{}, false
	}
	return req.options(), true
}

// handleGenerate starts a background generation task and returns 202 with
// the task's initial state. A tenant with an active task gets 409.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.parseOptions(w, r)
	if !ok {
		return
	}
	task, err := s.manager.Start(s.tenantFrom(r), opts)
	if err != nil {
		if errors.Is(err, generator.ErrTenantBusy) {
			httputil.WriteConflict(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteAccepted(w, task.Snapshot())
}

// handleGenerateStream starts a generation task and streams its log as
// newline-delimited JSON until the task finishes, followed by a final
// status object. A disconnecting client does not cancel the task.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.parseOptions(w, r)
	if !ok {
		return
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	started := false
	// the status line goes out with the first log line, so a failed start
	// can still produce a proper error response
	begin := func() {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			started = true
		}
	}

	info, err := s.manager.Stream(r.Context(), s.tenantFrom(r), opts, func(line generator.LogLine) {
		begin()
		enc.Encode(line)
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil {
		if started {
			// client went away mid-stream; the task keeps running
			return
		}
		if errors.Is(err, generator.ErrTenantBusy) {
			httputil.WriteConflict(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	begin()
	enc.Encode(info)
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.manager.Tasks()
	infos := make([]generator.Info, 0, len(tasks))
	for _, t := range tasks {
		infos = append(infos, t.Snapshot())
	}
	httputil.WriteSuccess(w, infos)
}

func (s *Server) taskFrom(w http.ResponseWriter, r *http.Request) (*generator.Task, bool) {
	task, err := s.manager.Task(mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return nil, false
	}
	return task, true
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.taskFrom(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, task.Snapshot())
}

func (s *Server) handleTaskLog(w http.ResponseWriter, r *http.Request) {
	task, ok := s.taskFrom(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, task.Log().Lines())
}

// handleCancel requests cancellation and returns the task's current
// state; cancelling an already finished task is a no-op.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	task, ok := s.taskFrom(w, r)
	if !ok {
		return
	}
	if err := s.manager.Cancel(task.ID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, task.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
