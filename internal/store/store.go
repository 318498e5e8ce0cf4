package store

import (
	"context"
	"errors"

	"github.com/ductile-dev/ductile/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ProvisionStats holds aggregate provisioning statistics: workspace counts
// by warehouse target and task counts by latest progress status.
type ProvisionStats struct {
	Workspaces    int            `json:"workspaces"`
	ByTargetType  map[string]int `json:"by_target_type"`
	Tasks         int            `json:"tasks"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
}

// Store defines the persistence operations for orgs, warehouses, workspaces,
// and per-task progress logs.
type Store interface {
	CreateOrg(ctx context.Context, o *model.Org) error
	GetOrg(ctx context.Context, id string) (*model.Org, error)
	ListOrgs(ctx context.Context, limit, offset int) ([]*model.Org, int, error)
	SetOrgSlug(ctx context.Context, id, slug string) error
	SetOrgWorkspace(ctx context.Context, orgID, workspaceID string) error

	UpsertWarehouse(ctx context.Context, w *model.Warehouse) error
	GetWarehouseForOrg(ctx context.Context, orgID string) (*model.Warehouse, error)

	CreateWorkspace(ctx context.Context, ws *model.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)

	AppendProgress(ctx context.Context, taskID string, e model.ProgressEntry) error
	GetProgress(ctx context.Context, taskID string) ([]model.ProgressEntry, error)

	GetProvisionStats(ctx context.Context) (*ProvisionStats, error)
	Close() error
}
