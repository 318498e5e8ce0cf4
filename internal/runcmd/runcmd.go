// Package runcmd executes shell commands in a working directory, capturing
// combined output and exit status. It is the foundation every provisioning
// step builds on; retry and timeout policy belong to callers.
package runcmd

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// PipAlreadyCurrentExit is the exit code pip's self-upgrade emits when the
// installed version is already current. It is a benign condition, not a
// failure; provisioning treats it as a warning and continues.
const PipAlreadyCurrentExit = 120

// outputTail limits how much captured output an ExitError message carries.
const outputTail = 512

// Runner executes a shell command in a directory and returns its combined
// output. A nonzero exit yields a *ExitError.
type Runner interface {
	Run(ctx context.Context, command, dir string) ([]byte, error)
}

// ExitError reports a command that exited nonzero, carrying the exit code
// and captured output for operator diagnosis.
type ExitError struct {
	Command string
	Code    int
	Output  []byte
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.Code)
	out := strings.TrimSpace(string(e.Output))
	if out == "" {
		return msg
	}
	if len(out) > outputTail {
		out = out[len(out)-outputTail:]
	}
	return msg + ": " + out
}

// IsBenignPipExit reports whether err is an ExitError with pip's
// already-current exit code.
func IsBenignPipExit(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Code == PipAlreadyCurrentExit
}

// Compile-time interface satisfaction check.
var _ Runner = ShellRunner{}

// ShellRunner runs commands through `sh -c` as blocking child processes.
type ShellRunner struct{}

// Run executes command in dir and returns its combined stdout/stderr.
func (ShellRunner) Run(ctx context.Context, command, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, &ExitError{Command: command, Code: exitErr.ExitCode(), Output: out}
		}
		return out, fmt.Errorf("run %q: %w", command, err)
	}
	return out, nil
}
