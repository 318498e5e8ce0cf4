package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ductile-dev/ductile/internal/provision"
	"github.com/ductile-dev/ductile/internal/store"
)

// taskResponse acknowledges an asynchronous dispatch.
type taskResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleProvisionWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetOrg(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "org not found")
			return
		}
		s.logger.Error("get org for provision", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get org")
		return
	}

	var req provision.WorkspaceRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.RepoURL == "" {
		s.writeError(w, http.StatusBadRequest, "repository_url is required")
		return
	}
	if req.DbtVersion == "" {
		s.writeError(w, http.StatusBadRequest, "runtime_version is required")
		return
	}
	if req.Profile.TargetSchema == "" {
		s.writeError(w, http.StatusBadRequest, "profile.target_schema is required")
		return
	}

	taskID := s.runner.Submit("provision-workspace", func(ctx context.Context, taskID string) error {
		rec := s.reporter.Open(taskID, true)
		return s.provisioner.SetupWorkspace(ctx, id, req, rec)
	})

	s.writeJSON(w, http.StatusAccepted, taskResponse{TaskID: taskID})
}

func (s *Server) handleCloneRepo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetOrg(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "org not found")
			return
		}
		s.logger.Error("get org for clone", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get org")
		return
	}

	var req provision.CloneRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.RepoURL == "" {
		s.writeError(w, http.StatusBadRequest, "repository_url is required")
		return
	}

	taskID := s.runner.Submit("clone-repo", func(ctx context.Context, taskID string) error {
		rec := s.reporter.Open(taskID, true)
		return s.provisioner.FetchRepo(ctx, id, req, rec)
	})

	s.writeJSON(w, http.StatusAccepted, taskResponse{TaskID: taskID})
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	org, err := s.store.GetOrg(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "org not found")
		return
	}
	if err != nil {
		s.logger.Error("get org for workspace", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get org")
		return
	}

	if org.WorkspaceID == "" {
		s.writeError(w, http.StatusNotFound, "org has no workspace")
		return
	}

	workspace, err := s.store.GetWorkspace(r.Context(), org.WorkspaceID)
	if err != nil {
		s.logger.Error("get workspace", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get workspace")
		return
	}

	s.writeJSON(w, http.StatusOK, workspace)
}
