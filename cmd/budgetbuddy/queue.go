package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"budgetbuddy/internal/offline"
)

func queueCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the offline mutation queue",
	}
	cmd.AddCommand(queueListCmd(g), queueClearCmd(g))
	return cmd
}

func queueListCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending mutations, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			warnEphemeral(cmd.ErrOrStderr(), a.Config)

			pending, err := a.Queue.Pending(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), pending)
			}
			renderQueue(cmd.OutOrStdout(), pending)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the mutations as JSON")
	return cmd
}

func queueClearCmd(g *globals) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every pending mutation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to drop pending mutations without --force")
			}
			ctx := cmd.Context()
			a, err := g.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			warnEphemeral(cmd.ErrOrStderr(), a.Config)

			n, lenErr := a.Queue.Len(ctx)
			if err := a.Queue.Clear(ctx); err != nil {
				return err
			}
			if lenErr != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared unreadable queue")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d pending mutation(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm dropping the queue")
	return cmd
}

func renderQueue(w io.Writer, pending []offline.Mutation) {
	if len(pending) == 0 {
		fmt.Fprintln(w, "No pending mutations")
		return
	}
	t := newTable(w, "ID", "Op", "User", "Enqueued")
	for _, m := range pending {
		t.Append([]string{m.ID, string(m.Op), m.UserID, m.EnqueuedAt.Format(time.RFC3339)})
	}
	t.Render()
	fmt.Fprintf(w, "%d pending\n", len(pending))
}
