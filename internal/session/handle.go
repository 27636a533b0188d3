// Package session launches and tracks the long-running children of a desktop
// session: the display server and the tunnel client.
package session

import (
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
)

// Handle tracks one launched child process. It is created by a launcher,
// owned by the supervisor, and reaped by an internal wait goroutine so that
// liveness checks never block.
type Handle struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}
}

func launch(logger *slog.Logger, name string, cmd *exec.Cmd) (*Handle, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	h := &Handle{name: name, cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		close(h.done)
		logger.Info("service exited", "service", name, "err", err)
	}()
	logger.Info("service started", "service", name, "pid", cmd.Process.Pid)
	return h, nil
}

// Name identifies the service for logs and errors.
func (h *Handle) Name() string { return h.name }

// PID returns the child's process ID.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Alive reports whether the child is still running. Non-blocking.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Terminate asks the child to stop with SIGTERM. It does not wait for the
// exit; the wait goroutine reaps it. Terminating an already-exited child is
// a no-op.
func (h *Handle) Terminate() error {
	if !h.Alive() {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("terminate %s: %w", h.name, err)
	}
	return nil
}
