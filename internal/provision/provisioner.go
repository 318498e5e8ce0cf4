package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ductile-dev/ductile/internal/model"
	"github.com/ductile-dev/ductile/internal/progress"
	"github.com/ductile-dev/ductile/internal/runcmd"
	"github.com/ductile-dev/ductile/internal/secrets"
	"github.com/ductile-dev/ductile/internal/store"
)

// Precondition failures, each with its own user-facing progress message.
var (
	ErrNoWarehouse      = errors.New("need to set up a warehouse first")
	ErrUnknownWarehouse = errors.New("what warehouse is this")
)

// adapterPackages maps each supported warehouse type to the pinned dbt
// adapter package installed during provisioning.
var adapterPackages = map[string]string{
	model.WarehousePostgres: "dbt-postgres==1.4.5",
	model.WarehouseBigQuery: "dbt-bigquery==1.4.3",
}

// CloneRequest is the payload for a standalone repository fetch.
type CloneRequest struct {
	RepoURL     string `json:"repository_url"`
	AccessToken string `json:"access_token,omitempty"`
}

// Profile carries the target configuration of a provisioning request.
type Profile struct {
	TargetSchema string `json:"target_schema"`
}

// WorkspaceRequest is the payload a provisioning run consumes.
type WorkspaceRequest struct {
	RepoURL     string  `json:"repository_url"`
	AccessToken string  `json:"access_token,omitempty"`
	DbtVersion  string  `json:"runtime_version"`
	Profile     Profile `json:"profile"`
}

// Provisioner sets up per-org dbt workspaces. The workspace root directory
// is injected at construction, never read from the environment ad hoc.
type Provisioner struct {
	store    store.Store
	secrets  secrets.Store
	run      runcmd.Runner
	reporter *progress.Reporter
	fetcher  *Fetcher
	root     string
	logger   *slog.Logger
}

// NewProvisioner creates a workspace provisioner rooted at root.
func NewProvisioner(s store.Store, sec secrets.Store, run runcmd.Runner, reporter *progress.Reporter, fetcher *Fetcher, root string, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		store:    s,
		secrets:  sec,
		run:      run,
		reporter: reporter,
		fetcher:  fetcher,
		root:     root,
		logger:   logger,
	}
}

// SetupWorkspace provisions (or re-provisions) an org's dbt workspace:
// repository checkout, Python venv, pip upgrade, dbt-core and warehouse
// adapter install, then the workspace record. Every step appends to the
// task's progress log and the first failure terminates the run with a
// failed entry; there is no rollback. The next run's checkout cleanup
// recovers any partial state.
//
// Concurrent runs for the same org are not coordinated here: the project
// directory is assumed to be owned by a single in-flight run, and callers
// must serialize re-provisioning requests per org.
func (p *Provisioner) SetupWorkspace(ctx context.Context, orgID string, req WorkspaceRequest, rec *progress.Recorder) error {
	start := time.Now()
	err := p.setupWorkspace(ctx, orgID, req, rec)

	provisionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		provisionRunsTotal.WithLabelValues(outcomeFailed).Inc()
	} else {
		provisionRunsTotal.WithLabelValues(outcomeCompleted).Inc()
	}
	return err
}

func (p *Provisioner) setupWorkspace(ctx context.Context, orgID string, req WorkspaceRequest, rec *progress.Recorder) error {
	rec.Running(ctx, "started")

	org, err := p.store.GetOrg(ctx, orgID)
	if err != nil {
		rec.Fail(ctx, "org not found", err)
		return fmt.Errorf("get org: %w", err)
	}
	p.logger.Info("provisioning workspace", "org", org.Name, "task_id", rec.TaskID())

	warehouse, err := p.store.GetWarehouseForOrg(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		rec.Fail(ctx, ErrNoWarehouse.Error(), nil)
		p.logger.Error("no warehouse configured", "org", org.Name)
		return ErrNoWarehouse
	}
	if err != nil {
		rec.Fail(ctx, "could not look up warehouse", err)
		return fmt.Errorf("get warehouse: %w", err)
	}

	if org.Slug == "" {
		org.Slug = model.Slugify(org.Name)
		if err := p.store.SetOrgSlug(ctx, org.ID, org.Slug); err != nil {
			rec.Fail(ctx, "could not assign org slug", err)
			return fmt.Errorf("set org slug: %w", err)
		}
	}

	projectDir := filepath.Join(p.root, org.Slug)

	// Nested invocation: the fetcher shares this run's progress log but must
	// not mark the run completed.
	if err := p.fetcher.CloneRepo(ctx, rec.TaskID(), req.RepoURL, req.AccessToken, projectDir, rec.Child()); err != nil {
		return err
	}
	p.logger.Info("git clone succeeded", "org", org.Name)

	if _, err := p.run.Run(ctx, "python3 -m venv venv", projectDir); err != nil {
		rec.Fail(ctx, "make venv failed", err)
		p.logger.Error("make venv failed", "org", org.Name, "error", err)
		return fmt.Errorf("create venv: %w", err)
	}
	rec.Running(ctx, "created venv")
	p.logger.Info("make venv succeeded", "org", org.Name)

	pip := filepath.Join(projectDir, "venv", "bin", "pip")

	if err := p.pipStep(ctx, rec, projectDir, pip+" install --upgrade pip", pip+" --upgrade failed"); err != nil {
		return err
	}
	rec.Running(ctx, "upgraded pip")
	p.logger.Info("upgraded pip", "org", org.Name)

	coreInstall := fmt.Sprintf("%s install dbt-core==%s", pip, req.DbtVersion)
	if err := p.pipStep(ctx, rec, projectDir, coreInstall, fmt.Sprintf("pip install dbt-core==%s failed", req.DbtVersion)); err != nil {
		return err
	}
	rec.Running(ctx, "installed dbt-core")
	p.logger.Info("installed dbt-core", "org", org.Name, "version", req.DbtVersion)

	adapterPkg, ok := adapterPackages[warehouse.WType]
	if !ok {
		rec.Fail(ctx, ErrUnknownWarehouse.Error(), nil)
		return fmt.Errorf("%w: %q", ErrUnknownWarehouse, warehouse.WType)
	}
	if err := p.pipStep(ctx, rec, projectDir, pip+" install "+adapterPkg, "pip install "+adapterPkg+" failed"); err != nil {
		return err
	}
	adapterName, _, _ := strings.Cut(adapterPkg, "==")
	rec.Running(ctx, "installed "+adapterName)
	p.logger.Info("installed warehouse adapter", "org", org.Name, "adapter", adapterPkg)

	// Single commit point: no workspace record exists before this succeeds.
	workspace := &model.Workspace{
		ID:            model.NewID(),
		OrgID:         org.ID,
		RepoURL:       req.RepoURL,
		ProjectDir:    projectDir,
		DbtVersion:    req.DbtVersion,
		TargetType:    warehouse.WType,
		DefaultSchema: req.Profile.TargetSchema,
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.store.CreateWorkspace(ctx, workspace); err != nil {
		rec.Fail(ctx, "could not write workspace entry", err)
		return fmt.Errorf("create workspace: %w", err)
	}
	if err := p.store.SetOrgWorkspace(ctx, org.ID, workspace.ID); err != nil {
		rec.Fail(ctx, "could not link workspace to org", err)
		return fmt.Errorf("set org workspace: %w", err)
	}

	if req.AccessToken != "" {
		if err := p.secrets.Delete(ctx, org.ID); err != nil {
			rec.Fail(ctx, "could not rotate access token", err)
			return fmt.Errorf("delete access token: %w", err)
		}
		if err := p.secrets.Save(ctx, org.ID, req.AccessToken); err != nil {
			rec.Fail(ctx, "could not store access token", err)
			return fmt.Errorf("save access token: %w", err)
		}
	}

	rec.Complete(ctx, "wrote workspace entry")
	p.logger.Info("workspace provisioned", "org", org.Name, "workspace_id", workspace.ID)
	return nil
}

// FetchRepo runs the repository fetch as its own task, outside a full
// provisioning run. The recorder owns terminal status, so a successful fetch
// ends with a completed entry.
func (p *Provisioner) FetchRepo(ctx context.Context, orgID string, req CloneRequest, rec *progress.Recorder) error {
	org, err := p.store.GetOrg(ctx, orgID)
	if err != nil {
		rec.Fail(ctx, "org not found", err)
		return fmt.Errorf("get org: %w", err)
	}

	if org.Slug == "" {
		org.Slug = model.Slugify(org.Name)
		if err := p.store.SetOrgSlug(ctx, org.ID, org.Slug); err != nil {
			rec.Fail(ctx, "could not assign org slug", err)
			return fmt.Errorf("set org slug: %w", err)
		}
	}

	projectDir := filepath.Join(p.root, org.Slug)
	return p.fetcher.CloneRepo(ctx, rec.TaskID(), req.RepoURL, req.AccessToken, projectDir, rec)
}

// pipStep runs a pip command, suppressing pip's benign already-current exit
// code. Any other failure appends a failed entry and terminates the run.
func (p *Provisioner) pipStep(ctx context.Context, rec *progress.Recorder, dir, command, failMessage string) error {
	if _, err := p.run.Run(ctx, command, dir); err != nil {
		if runcmd.IsBenignPipExit(err) {
			p.logger.Warn("pip exited already-current", "command", command)
			return nil
		}
		rec.Fail(ctx, failMessage, err)
		p.logger.Error("pip step failed", "command", command, "error", err)
		return fmt.Errorf("pip step: %w", err)
	}
	return nil
}
