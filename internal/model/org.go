package model

import "time"

// Supported warehouse types. The adapter package installed during
// provisioning is keyed on this value.
const (
	WarehousePostgres = "postgres"
	WarehouseBigQuery = "bigquery"
)

// Org is a tenant organization. The slug is derived from the name on the
// first provisioning run and never changes afterwards. WorkspaceID points at
// the current workspace record; re-provisioning repoints it.
type Org struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug,omitempty"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Warehouse is the analytical data store an org's pipeline targets.
// Exactly one per org; it must exist before provisioning may start.
type Warehouse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	WType     string    `json:"wtype"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Workspace is the persisted result of a successful provisioning run: the
// on-disk checkout plus isolated runtime environment for one org. Rows are
// never mutated; a re-provisioning run creates a new one.
type Workspace struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	RepoURL       string    `json:"repository_url"`
	ProjectDir    string    `json:"project_dir"`
	DbtVersion    string    `json:"dbt_version"`
	TargetType    string    `json:"target_warehouse_type"`
	DefaultSchema string    `json:"default_schema"`
	CreatedAt     time.Time `json:"created_at"`
}
