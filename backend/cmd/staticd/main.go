// Command staticd serves a directory of pre-built static assets at the
// highest throughput a single host can sustain: every file is read,
// templated, and compressed once at boot, and the hot request path does
// nothing but parse, validate, look up, and write an already-built
// response buffer.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caic-xyz/staticd/backend/internal/config"
	"github.com/caic-xyz/staticd/backend/internal/conn"
	"github.com/caic-xyz/staticd/backend/internal/devwatch"
	"github.com/caic-xyz/staticd/backend/internal/logging"
	"github.com/caic-xyz/staticd/backend/internal/route"
	"github.com/caic-xyz/staticd/backend/internal/template"
)

var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "staticd",
		Short: "Ultra-low-latency static file server",
	}
	root.PersistentFlags().String("dir", defaults.PublicDir, "directory to serve")
	root.PersistentFlags().IntP("port", "p", defaults.Port, "port to listen on")
	root.PersistentFlags().BoolP("dev", "d", defaults.Dev, "check/reload files if modified")
	root.PersistentFlags().Bool("spa", defaults.SPA, "enable SPA mode (serve index.html for unmatched routes)")
	root.PersistentFlags().String("config-prefix", defaults.ConfigPrefix, "environment variable prefix for config injection")
	root.PersistentFlags().Bool("log-requests", defaults.LogRequests, "log HTTP requests")
	root.PersistentFlags().String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", defaults.LogFormat, "log format (json, console)")

	// cobra generates the "completion" subcommand automatically; we only
	// need to add our own.
	root.AddCommand(newServeCmd(), newVersionCmd())

	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().String("dir", "", "directory to serve (overrides root --dir)")
	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides root --port)")
	cmd.Flags().BoolP("dev", "d", false, "check/reload files if modified")
	cmd.Flags().Bool("spa", false, "enable SPA mode")
	cmd.Flags().String("config-prefix", "", "environment variable prefix (overrides root --config-prefix)")
	cmd.Flags().Bool("log-requests", false, "log HTTP requests")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("staticd %s\n", version)
		},
	}
}

// resolveConfig applies serve's flags over root's, matching the
// original CLI's precedence (subcommand value wins when explicitly
// set, else the root/global default applies).
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	root := cmd.Root().PersistentFlags()
	local := cmd.Flags()

	cfg := config.Default()

	cfg.PublicDir = stringOrRoot(local, root, "dir", cfg.PublicDir)
	if len(args) > 0 {
		cfg.PublicDir = args[0]
	}
	cfg.Port = intOrRoot(local, root, "port", cfg.Port)
	cfg.Dev = boolOrRoot(local, root, "dev", cfg.Dev)
	cfg.SPA = boolOrRoot(local, root, "spa", cfg.SPA)
	cfg.ConfigPrefix = stringOrRoot(local, root, "config-prefix", cfg.ConfigPrefix)
	cfg.LogRequests = boolOrRoot(local, root, "log-requests", cfg.LogRequests)
	cfg.LogLevel, _ = root.GetString("log-level")
	cfg.LogFormat, _ = root.GetString("log-format")

	return cfg, nil
}

func stringOrRoot(local, root interface{ GetString(string) (string, error) }, name, fallback string) string {
	if v, err := local.GetString(name); err == nil && v != "" {
		return v
	}
	if v, err := root.GetString(name); err == nil && v != "" {
		return v
	}
	return fallback
}

func intOrRoot(local, root interface{ GetInt(string) (int, error) }, name string, fallback int) int {
	if v, err := local.GetInt(name); err == nil && v != 0 {
		return v
	}
	if v, err := root.GetInt(name); err == nil && v != 0 {
		return v
	}
	return fallback
}

type boolFlags interface {
	GetBool(string) (bool, error)
	Changed(string) bool
}

func boolOrRoot(local, root boolFlags, name string, fallback bool) bool {
	if local.Changed(name) {
		if v, err := local.GetBool(name); err == nil {
			return v
		}
	}
	if v, err := root.GetBool(name); err == nil {
		return v
	}
	return fallback
}

func run(cfg config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	idx, err := route.Boot(route.Options{PublicDir: cfg.PublicDir, ConfigPrefix: cfg.ConfigPrefix}, logger)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := conn.NewServer(idx, cfg, template.CollectEnv(cfg.ConfigPrefix), logger)

	if cfg.Dev {
		w, err := devwatch.New(cfg.PublicDir, logger, func() {
			rebuilt, err := route.Boot(route.Options{PublicDir: cfg.PublicDir, ConfigPrefix: cfg.ConfigPrefix}, logger)
			if err != nil {
				logger.Warn("reload after directory replace failed", "err", err)
				return
			}
			srv.SetIndex(rebuilt)
		})
		if err != nil {
			logger.Warn("dev watcher unavailable", "err", err)
		} else {
			defer w.Close()
		}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	logger.Info("boot complete", "dir", cfg.PublicDir, "port", cfg.Port, "dev", cfg.Dev, "spa", cfg.SPA)

	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
