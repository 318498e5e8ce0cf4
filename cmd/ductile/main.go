package main

import (
	"log"
	"os"

	"github.com/ductile-dev/ductile/internal/api"
	"github.com/ductile-dev/ductile/internal/config"
	"github.com/ductile-dev/ductile/internal/progress"
	"github.com/ductile-dev/ductile/internal/provision"
	"github.com/ductile-dev/ductile/internal/runcmd"
	"github.com/ductile-dev/ductile/internal/secrets"
	"github.com/ductile-dev/ductile/internal/store"
	"github.com/ductile-dev/ductile/internal/tasks"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("ductile: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"workspace_root", cfg.WorkspaceRoot,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	sec, err := secrets.NewFileStore(cfg.SecretsDir)
	if err != nil {
		log.Fatalf("failed to open secrets store: %v", err)
	}

	broker := progress.NewBroker()
	reporter := progress.NewReporter(db, broker, logger)
	run := runcmd.ShellRunner{}
	fetcher := provision.NewFetcher(run, reporter, logger)
	provisioner := provision.NewProvisioner(db, sec, run, reporter, fetcher, cfg.WorkspaceRoot, logger)
	runner := tasks.NewRunner(broker, logger)

	srv := api.NewServer(cfg.ListenAddr, db, reporter, runner, provisioner, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
