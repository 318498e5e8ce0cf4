package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ductile-dev/ductile/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orgs (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    slug         TEXT NOT NULL DEFAULT '',
    workspace_id TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS warehouses (
    id         TEXT PRIMARY KEY,
    org_id     TEXT NOT NULL UNIQUE,
    wtype      TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS workspaces (
    id             TEXT PRIMARY KEY,
    org_id         TEXT NOT NULL,
    repo_url       TEXT NOT NULL,
    project_dir    TEXT NOT NULL,
    dbt_version    TEXT NOT NULL,
    target_type    TEXT NOT NULL,
    default_schema TEXT NOT NULL,
    created_at     DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS progress (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id    TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    message    TEXT NOT NULL,
    status     TEXT NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_progress_task ON progress(task_id, seq)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateOrg inserts a new org record.
func (s *SQLiteStore) CreateOrg(ctx context.Context, o *model.Org) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orgs (id, name, slug, workspace_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Slug, o.WorkspaceID, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert org: %w", err)
	}
	return nil
}

// GetOrg retrieves an org by ID.
func (s *SQLiteStore) GetOrg(ctx context.Context, id string) (*model.Org, error) {
	o := &model.Org{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, workspace_id, created_at FROM orgs WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.WorkspaceID, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get org: %w", err)
	}
	return o, nil
}

// ListOrgs returns a paginated list of orgs ordered by created_at DESC,
// along with the total count of all orgs.
func (s *SQLiteStore) ListOrgs(ctx context.Context, limit, offset int) ([]*model.Org, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM orgs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orgs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, slug, workspace_id, created_at
		FROM orgs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orgs: %w", err)
	}
	defer rows.Close()

	var orgs []*model.Org
	for rows.Next() {
		o := &model.Org{}
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.WorkspaceID, &o.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan org: %w", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orgs: %w", err)
	}

	return orgs, total, nil
}

// SetOrgSlug assigns an org's slug. The slug is written once during the
// first provisioning run; callers must not change an already-set slug.
func (s *SQLiteStore) SetOrgSlug(ctx context.Context, id, slug string) error {
	return s.updateOrgField(ctx, "UPDATE orgs SET slug = ? WHERE id = ?", slug, id)
}

// SetOrgWorkspace points an org at its current workspace record.
func (s *SQLiteStore) SetOrgWorkspace(ctx context.Context, orgID, workspaceID string) error {
	return s.updateOrgField(ctx, "UPDATE orgs SET workspace_id = ? WHERE id = ?", workspaceID, orgID)
}

func (s *SQLiteStore) updateOrgField(ctx context.Context, query, value, id string) error {
	result, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update org: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertWarehouse creates or replaces the warehouse for an org.
func (s *SQLiteStore) UpsertWarehouse(ctx context.Context, w *model.Warehouse) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO warehouses (id, org_id, wtype, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET wtype = excluded.wtype, name = excluded.name`,
		w.ID, w.OrgID, w.WType, w.Name, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert warehouse: %w", err)
	}
	return nil
}

// GetWarehouseForOrg retrieves the warehouse belonging to an org.
func (s *SQLiteStore) GetWarehouseForOrg(ctx context.Context, orgID string) (*model.Warehouse, error) {
	w := &model.Warehouse{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, wtype, name, created_at FROM warehouses WHERE org_id = ?`, orgID,
	).Scan(&w.ID, &w.OrgID, &w.WType, &w.Name, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	return w, nil
}

// CreateWorkspace inserts a workspace record. Workspace rows are append-only;
// superseded rows are kept as provisioning history.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, ws *model.Workspace) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (
			id, org_id, repo_url, project_dir, dbt_version,
			target_type, default_schema, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.OrgID, ws.RepoURL, ws.ProjectDir, ws.DbtVersion,
		ws.TargetType, ws.DefaultSchema, ws.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// GetWorkspace retrieves a workspace by ID.
func (s *SQLiteStore) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	ws := &model.Workspace{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, repo_url, project_dir, dbt_version,
			target_type, default_schema, created_at
		FROM workspaces WHERE id = ?`, id,
	).Scan(
		&ws.ID, &ws.OrgID, &ws.RepoURL, &ws.ProjectDir, &ws.DbtVersion,
		&ws.TargetType, &ws.DefaultSchema, &ws.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return ws, nil
}

// AppendProgress inserts a progress entry for a task. Entries are append-only
// and never edited or removed.
func (s *SQLiteStore) AppendProgress(ctx context.Context, taskID string, e model.ProgressEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (task_id, seq, message, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, e.Seq, e.Message, e.Status, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert progress entry: %w", err)
	}
	return nil
}

// GetProgress returns the full ordered progress log for a task.
func (s *SQLiteStore) GetProgress(ctx context.Context, taskID string) ([]model.ProgressEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, message, status, error, created_at
		FROM progress WHERE task_id = ? ORDER BY seq ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	defer rows.Close()

	var entries []model.ProgressEntry
	for rows.Next() {
		var e model.ProgressEntry
		if err := rows.Scan(&e.Seq, &e.Message, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan progress entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress entries: %w", err)
	}

	return entries, nil
}

// GetProvisionStats computes aggregate provisioning statistics. A task's
// status is the status of its latest progress entry.
func (s *SQLiteStore) GetProvisionStats(ctx context.Context) (*ProvisionStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &ProvisionStats{
		ByTargetType:  make(map[string]int),
		TasksByStatus: make(map[string]int),
	}

	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspaces").Scan(&stats.Workspaces); err != nil {
		return nil, fmt.Errorf("count workspaces: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT target_type, COUNT(*) FROM workspaces GROUP BY target_type")
	if err != nil {
		return nil, fmt.Errorf("count by target type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ttype string
		var count int
		if err := rows.Scan(&ttype, &count); err != nil {
			return nil, fmt.Errorf("scan target type count: %w", err)
		}
		stats.ByTargetType[ttype] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target type counts: %w", err)
	}

	taskRows, err := tx.QueryContext(ctx,
		`SELECT p.status, COUNT(*)
		FROM progress p
		JOIN (
			SELECT task_id, MAX(seq) AS max_seq FROM progress GROUP BY task_id
		) latest ON p.task_id = latest.task_id AND p.seq = latest.max_seq
		GROUP BY p.status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer taskRows.Close()
	for taskRows.Next() {
		var status string
		var count int
		if err := taskRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan task status count: %w", err)
		}
		stats.TasksByStatus[status] = count
		stats.Tasks += count
	}
	if err := taskRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task status counts: %w", err)
	}

	return stats, nil
}
