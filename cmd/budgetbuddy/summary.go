package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
)

func summaryCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard summary for the signed-in user",
		Long: `Print the monthly series, category breakdowns and totals. The record
store is tried first; when it cannot be reached the cached snapshot is
shown instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			warnEphemeral(cmd.ErrOrStderr(), a.Config)

			userID, err := requireUser(a)
			if err != nil {
				return err
			}
			logger := commandLogger(a, "summary")
			if _, err := a.Connect(ctx); err != nil {
				if !errors.Is(err, services.ErrOffline) {
					return err
				}
				logger.Warn("Record store unreachable, using cached dashboard", log.FieldError, err)
			}

			snap, src := a.Dashboard.Load(ctx, userID)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Snapshot  core.Snapshot      `json:"snapshot"`
					Source    services.Source    `json:"source"`
					SyncState services.SyncState `json:"syncState"`
				}{snap, src, a.Reconciler.State()})
			}
			renderSummary(cmd.OutOrStdout(), snap, src)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderSummary prints a snapshot as plain tables.
func renderSummary(w io.Writer, snap core.Snapshot, src services.Source) {
	fmt.Fprintf(w, "User: %s  (source: %s, %d transactions)\n\n", snap.UserID, src, snap.TransactionCount)

	fmt.Fprintf(w, "Income:  %s\nExpense: %s\nBalance: %s\n\n",
		snap.Summary.TotalIncome.StringFixed(2),
		snap.Summary.TotalExpense.StringFixed(2),
		snap.Summary.Balance().StringFixed(2))

	monthly := newTable(w, "Month", "Income", "Expense", "Balance")
	for _, b := range snap.Monthly {
		monthly.Append([]string{b.Label, b.Income.StringFixed(2), b.Expense.StringFixed(2), b.Balance.StringFixed(2)})
	}
	monthly.Render()

	if len(snap.TopCategories) > 0 {
		fmt.Fprintln(w, "\nTop expense categories")
		top := newTable(w, "#", "Category", "Count", "Total")
		for i, c := range snap.TopCategories {
			top.Append([]string{strconv.Itoa(i + 1), c.CategoryName, strconv.Itoa(c.TransactionCount), c.TotalAmount.StringFixed(2)})
		}
		top.Render()
	}

	renderBreakdown(w, "Expenses by category", snap.ExpenseBreakdown)
	renderBreakdown(w, "Income by category", snap.IncomeBreakdown)
}

func renderBreakdown(w io.Writer, title string, rows []core.CategoryAggregate) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	t := newTable(w, "Category", "Total", "Color")
	for _, r := range rows {
		t.Append([]string{r.CategoryName, r.TotalValue.StringFixed(2), r.Color})
	}
	t.Render()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	return t
}
