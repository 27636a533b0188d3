package provision

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antonkrylov/deskbridge/internal/cmdrun"
	"github.com/antonkrylov/deskbridge/internal/config"
)

// scriptRunner records every spec it is asked to run and fails the ones the
// test marks.
type scriptRunner struct {
	calls []cmdrun.Spec
	fail  func(spec cmdrun.Spec) error
}

func (r *scriptRunner) Run(_ context.Context, spec cmdrun.Spec) error {
	r.calls = append(r.calls, spec)
	if r.fail != nil {
		return r.fail(spec)
	}
	return nil
}

func (r *scriptRunner) commandLines() []string {
	lines := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		lines = append(lines, strings.Join(append([]string{c.Name}, c.Args...), " "))
	}
	return lines
}

func newTestProvisioner(t *testing.T, runner cmdrun.Runner) *Provisioner {
	t.Helper()
	return &Provisioner{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Runner:  runner,
		Config:  config.Default(),
		HomeDir: t.TempDir(),
	}
}

func TestApplyRunsStepsInOrder(t *testing.T) {
	runner := &scriptRunner{}
	p := newTestProvisioner(t, runner)

	require.NoError(t, p.Apply(context.Background()))

	chromeDeb := filepath.Join(os.TempDir(), "google-chrome-stable_current_amd64.deb")
	tunnelDeb := filepath.Join(os.TempDir(), "cloudflared-linux-amd64.deb")
	require.Equal(t, []string{
		"sudo apt-get update",
		"sudo apt-get install -y tigervnc-standalone-server xfce4 xfce4-goodies wget",
		"wget -O " + chromeDeb + " " + p.Config.BrowserDebURL,
		"sudo dpkg -i " + chromeDeb,
		"wget -q -O " + tunnelDeb + " " + p.Config.TunnelDebURL,
		"sudo dpkg -i " + tunnelDeb,
	}, runner.commandLines())
}

func TestApplyBrowserInstallFallsBackToFixup(t *testing.T) {
	runner := &scriptRunner{}
	runner.fail = func(spec cmdrun.Spec) error {
		if spec.Name == "sudo" && len(spec.Args) > 0 && spec.Args[0] == "dpkg" &&
			strings.Contains(strings.Join(spec.Args, " "), "google-chrome") {
			return &cmdrun.ExitError{Cmd: "dpkg", Code: 1}
		}
		return nil
	}
	p := newTestProvisioner(t, runner)

	require.NoError(t, p.Apply(context.Background()))

	lines := runner.commandLines()
	require.Contains(t, lines, "sudo apt-get install -y -f")
	// The fix-up is a distinct command, never a re-run of the dpkg install.
	dpkgCount := 0
	for _, l := range lines {
		if strings.Contains(l, "dpkg -i") && strings.Contains(l, "google-chrome") {
			dpkgCount++
		}
	}
	require.Equal(t, 1, dpkgCount)
}

func TestApplyAbortsOnFatalStep(t *testing.T) {
	runner := &scriptRunner{}
	runner.fail = func(spec cmdrun.Spec) error {
		if len(spec.Args) > 1 && spec.Args[0] == "apt-get" && spec.Args[1] == "install" {
			return &cmdrun.ExitError{Cmd: "apt-get install", Code: 100}
		}
		return nil
	}
	p := newTestProvisioner(t, runner)

	err := p.Apply(context.Background())

	var exitErr *cmdrun.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 100, exitErr.Code)
	// Nothing past the failed install may run.
	require.Len(t, runner.calls, 2)
	require.NoFileExists(t, filepath.Join(p.HomeDir, ".vnc", "passwd"))
}

func TestWritePassword(t *testing.T) {
	p := newTestProvisioner(t, &scriptRunner{})

	require.NoError(t, p.WritePassword())

	path := filepath.Join(p.HomeDir, ".vnc", "passwd")
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "password\n", string(data))
}

func TestWritePasswordOverwritesExisting(t *testing.T) {
	p := newTestProvisioner(t, &scriptRunner{})
	require.NoError(t, p.WritePassword())
	p.Config.VNCPassword = "rotated"
	require.NoError(t, p.WritePassword())

	data, err := os.ReadFile(filepath.Join(p.HomeDir, ".vnc", "passwd"))
	require.NoError(t, err)
	require.Equal(t, "rotated\n", string(data))
}
