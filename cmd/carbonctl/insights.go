package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carbontracker/internal/core"
)

func newTrendCmd(a *app) *cobra.Command {
	var granularity string
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Emission totals per day, week or month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := core.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			st, sess, err := a.store()
			if err != nil {
				return err
			}
			list, err := st.List(cmd.Context(), sess)
			if err != nil {
				return fmt.Errorf("list purchases: %w", err)
			}

			buckets := core.AggregateByPeriodIn(list, g, a.loc)
			skipped := core.CountUndated(list, a.loc)
			if a.asJSON {
				return a.writeJSON(cmd, map[string]any{
					"granularity": g,
					"buckets":     buckets,
					"skipped":     skipped,
				})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "PERIOD\tKG CO2")
			for _, b := range buckets {
				_, _ = fmt.Fprintf(tw, "%s\t%.2f\n", b.Key, b.Total)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if skipped > 0 {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d purchase(s) without a readable date not shown\n", skipped)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&granularity, "granularity", string(core.Daily), "daily, weekly or monthly")
	return cmd
}

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Emission totals per category, largest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, sess, err := a.store()
			if err != nil {
				return err
			}
			list, err := st.List(cmd.Context(), sess)
			if err != nil {
				return fmt.Errorf("list purchases: %w", err)
			}
			totals := core.SortByTotalDesc(core.AggregateByCategory(list))
			if a.asJSON {
				return a.writeJSON(cmd, totals)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "CATEGORY\tKG CO2")
			for _, t := range totals {
				_, _ = fmt.Fprintf(tw, "%s\t%.2f\n", t.Label, t.Total)
			}
			return tw.Flush()
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Total, count, average and last-month emissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, sess, err := a.store()
			if err != nil {
				return err
			}
			list, err := st.List(cmd.Context(), sess)
			if err != nil {
				return fmt.Errorf("list purchases: %w", err)
			}
			s := core.Summarize(list, a.now().In(a.loc))
			if a.asJSON {
				return a.writeJSON(cmd, s)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"total: %.2f kg CO2\npurchases: %d\naverage: %.2f kg CO2\nlast month: %.2f kg CO2\n",
				s.Total, s.Count, s.Average, s.LastMonth)
			return err
		},
	}
}
