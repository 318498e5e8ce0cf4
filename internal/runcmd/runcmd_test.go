package runcmd_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ductile-dev/ductile/internal/runcmd"
)

func TestShellRunnerSuccess(t *testing.T) {
	r := runcmd.ShellRunner{}

	out, err := r.Run(context.Background(), "echo hello", t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("output = %q, want %q", out, "hello")
	}
}

func TestShellRunnerWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	r := runcmd.ShellRunner{}

	if _, err := r.Run(context.Background(), "touch marker", dir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Errorf("command did not run in %s: %v", dir, err)
	}
}

func TestShellRunnerNonzeroExit(t *testing.T) {
	r := runcmd.ShellRunner{}

	out, err := r.Run(context.Background(), "echo boom; exit 3", t.TempDir())
	if err == nil {
		t.Fatal("expected error for nonzero exit")
	}

	var exitErr *runcmd.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %T, want *ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
	if !strings.Contains(string(exitErr.Output), "boom") {
		t.Errorf("Output = %q, want it to contain command output", exitErr.Output)
	}
	if !strings.Contains(string(out), "boom") {
		t.Errorf("returned output = %q, want it to contain command output", out)
	}
	if !strings.Contains(err.Error(), "exit") || !strings.Contains(err.Error(), "3") {
		t.Errorf("Error() = %q, want exit code in message", err.Error())
	}
}

func TestIsBenignPipExit(t *testing.T) {
	r := runcmd.ShellRunner{}

	_, err := r.Run(context.Background(), "exit 120", t.TempDir())
	if !runcmd.IsBenignPipExit(err) {
		t.Errorf("exit 120 should be benign, got %v", err)
	}

	_, err = r.Run(context.Background(), "exit 1", t.TempDir())
	if runcmd.IsBenignPipExit(err) {
		t.Error("exit 1 should not be benign")
	}

	if runcmd.IsBenignPipExit(nil) {
		t.Error("nil error should not be benign")
	}
	if runcmd.IsBenignPipExit(errors.New("plain")) {
		t.Error("non-exit error should not be benign")
	}
}
