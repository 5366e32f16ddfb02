package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/notify"
)

func eventsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print events published to the configured broker as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg)
			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := cli.SignalContext(cmd.Context(), logger)
			defer cancel()

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = backend.Listen(ctx, bcfg, logger, func(e notify.Event) {
				if err := enc.Encode(e); err != nil {
					logger.Warn("Failed to print event", log.FieldError, err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
