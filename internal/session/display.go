package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/antonkrylov/deskbridge/internal/cmdrun"
	"github.com/antonkrylov/deskbridge/internal/config"
)

const readyProbeStep = 250 * time.Millisecond

// DisplaySlot is the numbered virtual display registered with the VNC
// tooling. The slot outlives the server process that used it and must be
// released with its own command, exactly once, even when the process already
// died.
type DisplaySlot struct {
	Number int

	runner  cmdrun.Runner
	logger  *slog.Logger
	release sync.Once
}

// Release hands the slot back via `vncserver -kill :N`. Best-effort: a dead
// or never-started server makes the command fail, which is logged and
// ignored. Repeat calls are no-ops.
func (s *DisplaySlot) Release(ctx context.Context) {
	s.release.Do(func() {
		s.logger.Info("releasing display slot", "slot", s.Number)
		_ = s.runner.Run(ctx, cmdrun.Spec{
			Name: "vncserver",
			Args: []string{"-kill", fmt.Sprintf(":%d", s.Number)},
			Mode: cmdrun.ModeBestEffort,
		})
	})
}

// StartDisplayServer launches the VNC server bound to the configured slot
// and waits for it to become ready. The slot is considered acquired as soon
// as the launch is attempted, so callers own its release even when the
// launch or the readiness wait fails.
func StartDisplayServer(ctx context.Context, logger *slog.Logger, runner cmdrun.Runner, cfg config.Config) (*Handle, *DisplaySlot, error) {
	slot := &DisplaySlot{Number: cfg.DisplaySlot, runner: runner, logger: logger}
	cmd := exec.Command("vncserver",
		fmt.Sprintf(":%d", cfg.DisplaySlot),
		"-geometry", cfg.Geometry,
		"-depth", fmt.Sprintf("%d", cfg.ColorDepth),
		"-localhost", "no",
		"-xstartup", cfg.XStartup,
	)
	handle, err := launch(logger, "display-server", cmd)
	if err != nil {
		return nil, slot, err
	}
	awaitDisplayReady(ctx, logger, cfg.VNCPort(), cfg.SettleInterval())
	return handle, slot, nil
}

// awaitDisplayReady polls the display server's TCP socket until it answers
// or the settle interval elapses. The server exposes no readiness signal; a
// socket that never answers within the interval is treated the same as the
// plain fixed wait, not as an error.
func awaitDisplayReady(ctx context.Context, logger *slog.Logger, port int, settle time.Duration) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(settle)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, readyProbeStep)
		if err == nil {
			conn.Close()
			logger.Info("display server ready", "addr", addr)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(readyProbeStep):
		}
	}
	logger.Warn("display server did not answer within settle interval, continuing", "addr", addr, "settle", settle)
}
