// Package config loads the optional deskbridge config file. Every field has
// a fixed default, so running without a file is the normal case.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable parameters of a desktop session. Zero values are
// replaced by defaults when loading.
type Config struct {
	DisplaySlot   int      `yaml:"displaySlot"`
	Geometry      string   `yaml:"geometry"`
	ColorDepth    int      `yaml:"colorDepth"`
	XStartup      string   `yaml:"xstartup"`
	VNCPassword   string   `yaml:"vncPassword"`
	Packages      []string `yaml:"packages"`
	BrowserDebURL string   `yaml:"browserDebURL"`
	TunnelDebURL  string   `yaml:"tunnelDebURL"`
	SettleSeconds int      `yaml:"settleSeconds"`
	PollSeconds   int      `yaml:"pollSeconds"`
}

// Default returns the built-in parameters: display slot 1, a 1280x800
// 24-bit XFCE session, and the stock browser/tunnel package URLs.
func Default() Config {
	return Config{
		DisplaySlot:   1,
		Geometry:      "1280x800",
		ColorDepth:    24,
		XStartup:      "/usr/bin/xfce4-session",
		VNCPassword:   "password",
		Packages:      []string{"tigervnc-standalone-server", "xfce4", "xfce4-goodies", "wget"},
		BrowserDebURL: "https://dl.google.com/linux/direct/google-chrome-stable_current_amd64.deb",
		TunnelDebURL:  "https://github.com/cloudflare/cloudflared/releases/latest/download/cloudflared-linux-amd64.deb",
		SettleSeconds: 5,
		PollSeconds:   1,
	}
}

// DefaultConfigPath returns ~/.deskbridge/config, or a relative fallback when
// the home directory cannot be resolved.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".deskbridge", "config")
	}
	return filepath.Join(home, ".deskbridge", "config")
}

// Load decodes the config file and fills unset fields with defaults. A
// missing file yields the defaults with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return cfg, nil
	}
	expanded, err := expandPath(trimmed)
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// VNCPort is the TCP port the display server listens on for the configured
// slot: 5900 plus the slot number.
func (c Config) VNCPort() int {
	return 5900 + c.DisplaySlot
}

// TunnelTarget is the local endpoint the tunnel client forwards to.
func (c Config) TunnelTarget() string {
	return fmt.Sprintf("tcp://localhost:%d", c.VNCPort())
}

// SettleInterval is how long a freshly launched display server is given to
// become ready.
func (c Config) SettleInterval() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}

// PollInterval is the supervision loop's liveness check period.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.DisplaySlot == 0 {
		c.DisplaySlot = def.DisplaySlot
	}
	if c.Geometry == "" {
		c.Geometry = def.Geometry
	}
	if c.ColorDepth == 0 {
		c.ColorDepth = def.ColorDepth
	}
	if c.XStartup == "" {
		c.XStartup = def.XStartup
	}
	if c.VNCPassword == "" {
		c.VNCPassword = def.VNCPassword
	}
	if len(c.Packages) == 0 {
		c.Packages = def.Packages
	}
	if c.BrowserDebURL == "" {
		c.BrowserDebURL = def.BrowserDebURL
	}
	if c.TunnelDebURL == "" {
		c.TunnelDebURL = def.TunnelDebURL
	}
	if c.SettleSeconds == 0 {
		c.SettleSeconds = def.SettleSeconds
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = def.PollSeconds
	}
}

func (c Config) validate() error {
	if c.DisplaySlot < 1 || c.DisplaySlot > 99 {
		return fmt.Errorf("displaySlot %d out of range 1..99", c.DisplaySlot)
	}
	if c.ColorDepth != 8 && c.ColorDepth != 16 && c.ColorDepth != 24 && c.ColorDepth != 32 {
		return fmt.Errorf("colorDepth %d is not a valid depth", c.ColorDepth)
	}
	return nil
}

func expandPath(path string) (string, error) {
	switch {
	case strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	case path == "~":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return home, nil
	case filepath.IsAbs(path):
		return path, nil
	default:
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, path), nil
	}
}
