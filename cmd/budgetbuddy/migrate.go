package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/recordstore/postgres"
	"budgetbuddy/internal/storage"
)

func migrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations for the configured SQLite cache and Postgres record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg)
			out := cmd.OutOrStdout()
			ran := false

			if cfg.CacheBackend == config.CacheSQLite {
				if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
					return fmt.Errorf("sqlite migrations: %w", err)
				}
				fmt.Fprintf(out, "SQLite cache migrated: %s\n", cfg.SQLiteDBPath)
				ran = true
			}
			if cfg.RecordBackend == config.RecordsPostgres {
				store, err := postgres.Open(cmd.Context(), postgres.Config{
					URL:            cfg.DatabaseURL,
					ConnectRetries: 5,
					Migrate:        true,
				}, logger)
				if err != nil {
					return fmt.Errorf("postgres migrations: %w", err)
				}
				store.Close()
				fmt.Fprintln(out, "Postgres record store migrated")
				ran = true
			}
			if !ran {
				fmt.Fprintln(out, "Nothing to migrate: memory backends have no schema")
			}
			return nil
		},
	}
}
