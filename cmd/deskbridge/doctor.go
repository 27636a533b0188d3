package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antonkrylov/deskbridge/internal/config"
)

// doctor reports the local tool and config situation. Everything is printed
// as key=value lines so the output pastes cleanly into an issue.
func newDoctorCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print local diagnostic information for troubleshooting",
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, tool := range []string{"sudo", "apt-get", "wget", "dpkg", "vncserver", "cloudflared"} {
				path, err := exec.LookPath(tool)
				if err != nil {
					fmt.Fprintf(os.Stdout, "tool_%s=missing\n", tool)
					continue
				}
				fmt.Fprintf(os.Stdout, "tool_%s=%s\n", tool, strings.TrimSpace(path))
			}

			fmt.Fprintf(os.Stdout, "config_path=%s\n", root.configPath)
			cfg, err := config.Load(root.configPath)
			if err != nil {
				fmt.Fprintf(os.Stdout, "config_error=%s\n", err.Error())
				return nil
			}
			fmt.Fprintf(os.Stdout, "display_slot=%d\n", cfg.DisplaySlot)
			fmt.Fprintf(os.Stdout, "geometry=%s\n", cfg.Geometry)
			fmt.Fprintf(os.Stdout, "color_depth=%d\n", cfg.ColorDepth)
			fmt.Fprintf(os.Stdout, "vnc_port=%d\n", cfg.VNCPort())
			fmt.Fprintf(os.Stdout, "tunnel_target=%s\n", cfg.TunnelTarget())
			return nil
		},
	}
}
