package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/antonkrylov/deskbridge/internal/config"
)

type rootOptions struct {
	configPath string
	logJSON    bool
	logger     *slog.Logger
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "deskbridge",
		Short:         "Provision a remote graphical desktop and expose it through an outbound tunnel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultConfig := os.Getenv("DESKBRIDGE_CONFIG")
	if defaultConfig == "" {
		defaultConfig = config.DefaultConfigPath()
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "path to deskbridge config file (default $HOME/.deskbridge/config)")
	rootCmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
		if opts.logJSON {
			handler = slog.NewJSONHandler(os.Stderr, nil)
		}
		opts.logger = slog.New(handler)
	}

	rootCmd.AddCommand(newUpCmd(opts))
	rootCmd.AddCommand(newDoctorCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		if opts.logger == nil {
			opts.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		}
		opts.logger.Error("deskbridge failed", "err", err)
		os.Exit(1)
	}
}
