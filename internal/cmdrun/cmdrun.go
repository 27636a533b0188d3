// Package cmdrun executes external commands to completion, one attempt per
// call, with a choice between fatal and best-effort failure handling.
package cmdrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Mode selects how a non-zero exit status is treated.
type Mode int

const (
	// ModeCheck surfaces a non-zero exit as an *ExitError.
	ModeCheck Mode = iota
	// ModeBestEffort logs a non-zero exit and swallows it.
	ModeBestEffort
)

// Spec describes a single command invocation.
type Spec struct {
	Name string
	Args []string
	Mode Mode
	// Env entries are appended to the current process environment.
	Env []string
	Dir string
}

func (s Spec) commandLine() string {
	return strings.Join(append([]string{s.Name}, s.Args...), " ")
}

// ExitError reports a command that ran but exited non-zero in ModeCheck.
type ExitError struct {
	Cmd  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d", e.Cmd, e.Code)
}

// Runner is implemented by anything that can execute a Spec. Tests substitute
// recorders; production code uses Exec.
type Runner interface {
	Run(ctx context.Context, spec Spec) error
}

// Exec runs commands on the host, inheriting the process environment and
// forwarding child output to the controller's stdout/stderr.
type Exec struct {
	Logger *slog.Logger
}

// Run executes the spec and waits for completion. In ModeBestEffort the
// returned error is always nil.
func (e *Exec) Run(ctx context.Context, spec Spec) error {
	cmd := e.build(ctx, spec)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	e.Logger.Info("running command", "cmd", spec.commandLine())
	return e.finish(spec, cmd.Run())
}

// Output executes the spec capturing stdout. Stderr is forwarded. In
// ModeBestEffort a failed command yields whatever output it produced and a
// nil error.
func (e *Exec) Output(ctx context.Context, spec Spec) (string, error) {
	cmd := e.build(ctx, spec)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	e.Logger.Info("running command", "cmd", spec.commandLine())
	err := e.finish(spec, cmd.Run())
	return out.String(), err
}

func (e *Exec) build(ctx context.Context, spec Spec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	return cmd
}

func (e *Exec) finish(spec Spec, err error) error {
	if err == nil {
		return nil
	}
	code := exitCodeFromError(err)
	if spec.Mode == ModeBestEffort {
		e.Logger.Warn("command failed, continuing", "cmd", spec.commandLine(), "exit", code, "err", err)
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Cmd: spec.commandLine(), Code: code}
	}
	return fmt.Errorf("run %q: %w", spec.commandLine(), err)
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
	}
	return 1
}
