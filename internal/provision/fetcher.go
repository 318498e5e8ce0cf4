package provision

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ductile-dev/ductile/internal/model"
	"github.com/ductile-dev/ductile/internal/progress"
	"github.com/ductile-dev/ductile/internal/runcmd"
)

// repoDirName is the fixed checkout subdirectory inside a project directory.
const repoDirName = "dbtrepo"

// Fetcher clones an org's repository into its project directory.
type Fetcher struct {
	run      runcmd.Runner
	reporter *progress.Reporter
	logger   *slog.Logger
}

// NewFetcher creates a repository fetcher.
func NewFetcher(run runcmd.Runner, reporter *progress.Reporter, logger *slog.Logger) *Fetcher {
	return &Fetcher{run: run, reporter: reporter, logger: logger}
}

// CloneRepo clones repoURL into the dbtrepo subdirectory of projectDir,
// replacing any prior checkout. When accessToken is non-empty the clone URL
// embeds it in the oauth2 token-authenticated form so the clone runs
// non-interactively.
//
// rec may be nil for a standalone invocation, in which case the fetcher
// opens its own recorder under taskID and marks its final entry completed.
// A non-nil rec means a nested invocation: the final entry is marked running
// and terminal status stays with the parent. Failures are recorded as a
// failed progress entry and returned; they never propagate as panics.
func (f *Fetcher) CloneRepo(ctx context.Context, taskID, repoURL, accessToken, projectDir string, rec *progress.Recorder) error {
	if rec == nil {
		rec = f.reporter.Open(taskID, true)
	}

	cloneURL := authURL(repoURL, accessToken)
	repoDir := filepath.Join(projectDir, repoDirName)

	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			cloneRunsTotal.WithLabelValues(outcomeFailed).Inc()
			rec.Fail(ctx, "could not create project directory", err)
			return fmt.Errorf("create project directory: %w", err)
		}
		rec.Running(ctx, "created project directory")
		f.logger.Info("created project directory", "dir", projectDir)
	} else if _, err := os.Stat(repoDir); err == nil {
		// Stale checkout from a prior run; remove it so re-provisioning
		// starts clean.
		if err := os.RemoveAll(repoDir); err != nil {
			cloneRunsTotal.WithLabelValues(outcomeFailed).Inc()
			rec.Fail(ctx, "could not remove previous checkout", err)
			return fmt.Errorf("remove previous checkout: %w", err)
		}
	}

	if _, err := f.run.Run(ctx, "git clone "+cloneURL+" "+repoDirName, projectDir); err != nil {
		cloneRunsTotal.WithLabelValues(outcomeFailed).Inc()
		rec.Fail(ctx, "git clone failed", err)
		f.logger.Error("git clone failed", "task_id", rec.TaskID(), "error", err)
		return fmt.Errorf("git clone: %w", err)
	}

	cloneRunsTotal.WithLabelValues(outcomeCompleted).Inc()
	rec.Add(ctx, model.ProgressEntry{Message: "cloned git repo", Status: rec.FinalStatus()})
	return nil
}

// authURL embeds an access token into a repository URL in the provider's
// token-authenticated form: scheme://oauth2:<token>@host/owner/repo. Only
// the URL's own host position is rewritten; a URL that does not parse is
// returned untouched and left to fail at the clone step.
func authURL(repoURL, accessToken string) string {
	if accessToken == "" {
		return repoURL
	}
	u, err := url.Parse(repoURL)
	if err != nil || u.Host == "" {
		return repoURL
	}
	u.User = url.UserPassword("oauth2", accessToken)
	return u.String()
}
