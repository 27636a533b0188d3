// Package provision prepares the host for a desktop session: package
// installs and the VNC credential file. Steps are linear and idempotent;
// the first fatal failure aborts the sequence.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/antonkrylov/deskbridge/internal/cmdrun"
	"github.com/antonkrylov/deskbridge/internal/config"
)

// Provisioner drives the host setup steps through a command runner.
type Provisioner struct {
	Logger *slog.Logger
	Runner cmdrun.Runner
	Config config.Config
	// HomeDir overrides where the credential file is written. Empty means
	// the current user's home directory.
	HomeDir string
}

// Apply runs every provisioning step in order. Each external command is
// attempted exactly once; only the browser install carries a fallback, and
// that is a distinct fix-up command, not a retry.
func (p *Provisioner) Apply(ctx context.Context) error {
	if err := p.installDesktop(ctx); err != nil {
		return err
	}
	if err := p.installBrowser(ctx); err != nil {
		return err
	}
	if err := p.installTunnelClient(ctx); err != nil {
		return err
	}
	if err := p.WritePassword(); err != nil {
		return err
	}
	return nil
}

func (p *Provisioner) installDesktop(ctx context.Context) error {
	p.Logger.Info("installing display server and desktop environment")
	if err := p.Runner.Run(ctx, sudo("apt-get", "update")); err != nil {
		return fmt.Errorf("refresh package index: %w", err)
	}
	args := append([]string{"apt-get", "install", "-y"}, p.Config.Packages...)
	if err := p.Runner.Run(ctx, sudo(args...)); err != nil {
		return fmt.Errorf("install desktop packages: %w", err)
	}
	return nil
}

func (p *Provisioner) installBrowser(ctx context.Context) error {
	p.Logger.Info("installing browser")
	deb := filepath.Join(os.TempDir(), "google-chrome-stable_current_amd64.deb")
	if err := p.Runner.Run(ctx, cmdrun.Spec{
		Name: "wget",
		Args: []string{"-O", deb, p.Config.BrowserDebURL},
		Mode: cmdrun.ModeCheck,
	}); err != nil {
		return fmt.Errorf("download browser package: %w", err)
	}
	defer func() { _ = os.Remove(deb) }()
	err := p.Runner.Run(ctx, sudo("dpkg", "-i", deb))
	if err == nil {
		return nil
	}
	var exitErr *cmdrun.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("install browser package: %w", err)
	}
	// Missing dependencies are the usual cause; a fix-up install resolves
	// them and finishes the half-configured package.
	p.Logger.Warn("browser install failed, attempting dependency fix-up", "exit", exitErr.Code)
	if err := p.Runner.Run(ctx, sudo("apt-get", "install", "-y", "-f")); err != nil {
		return fmt.Errorf("browser dependency fix-up: %w", err)
	}
	return nil
}

func (p *Provisioner) installTunnelClient(ctx context.Context) error {
	p.Logger.Info("installing tunnel client")
	deb := filepath.Join(os.TempDir(), "cloudflared-linux-amd64.deb")
	if err := p.Runner.Run(ctx, cmdrun.Spec{
		Name: "wget",
		Args: []string{"-q", "-O", deb, p.Config.TunnelDebURL},
		Mode: cmdrun.ModeCheck,
	}); err != nil {
		return fmt.Errorf("download tunnel client: %w", err)
	}
	defer func() { _ = os.Remove(deb) }()
	if err := p.Runner.Run(ctx, sudo("dpkg", "-i", deb)); err != nil {
		return fmt.Errorf("install tunnel client: %w", err)
	}
	return nil
}

// WritePassword writes the VNC credential file under the home directory with
// access restricted to the owning user.
func (p *Provisioner) WritePassword() error {
	home := p.HomeDir
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
	}
	dir := filepath.Join(home, ".vnc")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create vnc directory: %w", err)
	}
	path := filepath.Join(dir, "passwd")
	if err := os.WriteFile(path, []byte(p.Config.VNCPassword+"\n"), 0o600); err != nil {
		return fmt.Errorf("write vnc password: %w", err)
	}
	p.Logger.Info("wrote vnc credential file", "path", path)
	return nil
}

func sudo(args ...string) cmdrun.Spec {
	return cmdrun.Spec{Name: "sudo", Args: args, Mode: cmdrun.ModeCheck}
}
