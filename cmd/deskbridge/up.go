package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/antonkrylov/deskbridge/internal/cmdrun"
	"github.com/antonkrylov/deskbridge/internal/config"
	"github.com/antonkrylov/deskbridge/internal/provision"
	"github.com/antonkrylov/deskbridge/internal/session"
	"github.com/antonkrylov/deskbridge/internal/supervisor"
)

func newUpCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Provision the desktop, start the display server and tunnel, and supervise them until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			logger := root.logger.With("session", uuid.NewString())
			runner := &cmdrun.Exec{Logger: logger}
			prov := &provision.Provisioner{Logger: logger, Runner: runner, Config: cfg}

			sup := &supervisor.Supervisor{
				Logger:    logger,
				Poll:      cfg.PollInterval(),
				Provision: prov.Apply,
				StartDisplay: func(ctx context.Context) (supervisor.Service, supervisor.SlotReleaser, error) {
					handle, slot, err := session.StartDisplayServer(ctx, logger, runner, cfg)
					if handle == nil {
						return nil, slot, err
					}
					return handle, slot, err
				},
				StartTunnel: func(ctx context.Context) (supervisor.Service, error) {
					handle, err := session.StartTunnel(logger, cfg)
					if handle == nil {
						return nil, err
					}
					return handle, err
				},
				OnReady: func() {
					logger.Info("desktop session running", "vncPort", cfg.VNCPort())
					printInstructions(cfg)
				},
			}

			ctx, stop := supervisor.NotifyContext(cmd.Context())
			defer stop()
			return sup.Run(ctx)
		},
	}
}

// printInstructions tells the operator how to reach the session from their
// own machine. Skipped when stdout is not a terminal.
func printInstructions(cfg config.Config) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	rule := strings.Repeat("=", 50)
	fmt.Println(rule)
	fmt.Println("CONNECTION INSTRUCTIONS:")
	fmt.Println("1. Download cloudflared on your local machine:")
	fmt.Println("   https://github.com/cloudflare/cloudflared/releases/latest")
	fmt.Printf("2. Forward the tunnel URL printed above to localhost:%d.\n", cfg.VNCPort())
	fmt.Printf("3. Point your VNC viewer (e.g. TigerVNC) at localhost:%d.\n", cfg.VNCPort())
	fmt.Println("Press Ctrl+C to stop the session.")
	fmt.Println(rule)
}
