// Package subproc defines the contract for running external pre/post
// processing commands (spec §6: subproc_System).
//
// Subprocess execution itself is out of scope for this module (spec
// §1); ExecRunner is a thin os/exec-backed reference implementation so
// [internal/prep.Preparer] is exercisable standalone.
package subproc

import (
	"context"
	"errors"
	"os/exec"
)

// Runner synchronously executes cmd with argv and returns its exit code.
// 0 means success; any other value (or err != nil for exec failures that
// never produced an exit code) means failure.
type Runner interface {
	Run(ctx context.Context, cmd string, argv []string) (exitCode int, err error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run implements [Runner].
func (ExecRunner) Run(ctx context.Context, cmd string, argv []string) (int, error) {
	c := exec.CommandContext(ctx, cmd, argv...)

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}

var _ Runner = ExecRunner{}
