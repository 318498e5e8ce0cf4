package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ductile-dev/ductile/internal/model"
	"github.com/ductile-dev/ductile/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createOrgRequest is the JSON body for POST /v1/orgs.
type createOrgRequest struct {
	Name string `json:"name"`
}

// putWarehouseRequest is the JSON body for PUT /v1/orgs/{id}/warehouse.
type putWarehouseRequest struct {
	WType string `json:"wtype"`
	Name  string `json:"name"`
}

// listOrgsResponse wraps the paginated list response.
type listOrgsResponse struct {
	Orgs   []*model.Org `json:"orgs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	// The slug stays unset until the first provisioning run derives it.
	org := &model.Org{
		ID:        model.NewID(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateOrg(r.Context(), org); err != nil {
		s.logger.Error("create org", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create org")
		return
	}

	s.writeJSON(w, http.StatusCreated, org)
}

func (s *Server) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	orgs, total, err := s.store.ListOrgs(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list orgs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list orgs")
		return
	}

	if orgs == nil {
		orgs = []*model.Org{}
	}

	s.writeJSON(w, http.StatusOK, listOrgsResponse{
		Orgs:   orgs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	org, err := s.store.GetOrg(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "org not found")
		return
	}
	if err != nil {
		s.logger.Error("get org", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get org")
		return
	}

	s.writeJSON(w, http.StatusOK, org)
}

func (s *Server) handlePutWarehouse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetOrg(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "org not found")
			return
		}
		s.logger.Error("get org for warehouse", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get org")
		return
	}

	var req putWarehouseRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// The warehouse type is validated against the supported set during
	// provisioning, not here; an unrecognized type fails the run at the
	// adapter-install step.
	if req.WType == "" {
		s.writeError(w, http.StatusBadRequest, "wtype is required")
		return
	}

	warehouse := &model.Warehouse{
		ID:        model.NewID(),
		OrgID:     id,
		WType:     req.WType,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.UpsertWarehouse(r.Context(), warehouse); err != nil {
		s.logger.Error("upsert warehouse", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save warehouse")
		return
	}

	s.writeJSON(w, http.StatusOK, warehouse)
}

func (s *Server) handleGetWarehouse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	warehouse, err := s.store.GetWarehouseForOrg(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "warehouse not found")
		return
	}
	if err != nil {
		s.logger.Error("get warehouse", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get warehouse")
		return
	}

	s.writeJSON(w, http.StatusOK, warehouse)
}
