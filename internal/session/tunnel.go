package session

import (
	"log/slog"
	"os"
	"os/exec"

	"github.com/antonkrylov/deskbridge/internal/config"
)

// StartTunnel launches the tunnel client forwarding the display's VNC port
// to the relay. Non-blocking; the tunnel prints its public endpoint on its
// own stderr.
func StartTunnel(logger *slog.Logger, cfg config.Config) (*Handle, error) {
	cmd := exec.Command("cloudflared", "tunnel", "--url", cfg.TunnelTarget())
	// cloudflared refuses quick tunnels when an origin cert is configured.
	cmd.Env = append(os.Environ(), "TUNNEL_ORIGIN_CERT=/dev/null")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return launch(logger, "tunnel", cmd)
}
