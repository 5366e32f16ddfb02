// Command budgetbuddy serves the Budget Buddy API and offers one-shot
// maintenance commands against the same configuration.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/log"
)

const appName = "budgetbuddy"

// Set with -ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	userID     string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Offline-first personal finance dashboard",
		Long: `Budget Buddy aggregates income and expense records into dashboard
summaries, caches them locally and queues writes made while the record
store is unreachable, replaying them when connectivity returns.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML config file (overrides "+config.FileEnv+")")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&g.userID, "user", "u", "", "User id (overrides USER_ID)")

	cmd.AddCommand(
		serveCmd(g),
		summaryCmd(g),
		syncCmd(g),
		queueCmd(g),
		eventsCmd(g),
		migrateCmd(g),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// loadConfig applies the persistent flags on top of file and environment.
func (g *globals) loadConfig() (*config.Config, error) {
	if g.configPath != "" {
		if err := os.Setenv(config.FileEnv, g.configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.userID != "" {
		cfg.UserID = g.userID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// build loads the configuration and wires the application.
func (g *globals) build(ctx context.Context) (*cli.App, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg)
	return cli.Build(ctx, cfg, logger, nil)
}

// requireUser returns the signed-in user of a one-shot command.
func requireUser(a *cli.App) (string, error) {
	userID, err := a.UserID()
	if err != nil {
		return "", fmt.Errorf("%w: pass --user or set USER_ID", err)
	}
	return userID, nil
}

func commandLogger(a *cli.App, op string) *log.Logger {
	return a.Logger.WithOperation(op)
}

// warnEphemeral reports whether cfg keeps the cache and queue in process
// memory, printing a warning when it does. One-shot commands then start from
// an empty queue and cache instead of the server's.
func warnEphemeral(w io.Writer, cfg *config.Config) bool {
	if cfg == nil || cfg.CacheBackend != config.CacheMemory {
		return false
	}
	fmt.Fprintf(w, "Warning: CACHE_BACKEND=%s keeps the offline queue and cache in this process only; "+
		"use %s or %s to see the server's data\n", config.CacheMemory, config.CacheSQLite, config.CacheRedis)
	return true
}
