package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"budgetbuddy/internal/services"
)

func syncCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued mutations and refresh the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			warnEphemeral(cmd.ErrOrStderr(), a.Config)

			if _, err := requireUser(a); err != nil {
				return err
			}
			report, err := a.Connect(ctx)
			if asJSON {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
					return werr
				}
			} else {
				renderReport(cmd.OutOrStdout(), report, a.Reconciler.State())
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the replay report as JSON")
	return cmd
}

func renderReport(w io.Writer, r services.ReplayReport, state services.SyncState) {
	fmt.Fprintf(w, "State:     %s\n", state)
	fmt.Fprintf(w, "Attempted: %d\n", r.Attempted)
	fmt.Fprintf(w, "Replayed:  %d\n", r.Replayed)
	fmt.Fprintf(w, "Remaining: %d\n", r.Remaining)
	if r.Aborted {
		fmt.Fprintln(w, "Replay aborted: connectivity lost")
	}
	if r.QueueError != "" {
		fmt.Fprintf(w, "Queue error: %s\n", r.QueueError)
	}
	if len(r.Failed) == 0 {
		return
	}
	t := newTable(w, "Mutation", "Op", "Error")
	for _, f := range r.Failed {
		t.Append([]string{f.MutationID, f.Op, f.Error})
	}
	t.Render()
}
