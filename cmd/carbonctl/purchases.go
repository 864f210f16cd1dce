package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carbontracker/internal/core"
)

func newPurchasesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchases",
		Short: "List, log and delete purchases",
	}
	cmd.AddCommand(
		newPurchasesListCmd(a),
		newPurchasesAddCmd(a),
		newPurchasesDeleteCmd(a),
	)
	return cmd
}

func newPurchasesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your purchases, newest first",
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
			list = core.SortByDateDesc(list, a.loc)
			if a.asJSON {
				return a.writeJSON(cmd, list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tDATE\tPRODUCT\tCATEGORY\tDELIVERY\tKG CO2")
			for _, p := range list {
				date := "unknown"
				if t, err := p.Date(a.loc); err == nil {
					date = t.Format("2006-01-02")
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
					p.ID, date, p.ProductName, p.Category.Label(), p.DeliveryMode.Mode(), p.Emission())
			}
			return tw.Flush()
		},
	}
}

func newPurchasesAddCmd(a *app) *cobra.Command {
	var (
		in       core.PurchaseInput
		mode     string
		category string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.DeliveryMode = core.DeliveryMode(mode)
			in.Category = core.Category(category)
			in = in.Normalized()
			if err := in.Validate(); err != nil {
				return err
			}

			st, sess, err := a.store()
			if err != nil {
				return err
			}
			p, err := st.Create(cmd.Context(), sess, in)
			if err != nil {
				return fmt.Errorf("log purchase: %w", err)
			}
			if a.asJSON {
				return a.writeJSON(cmd, p)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged %s (%s): %.2f kg CO2\n", p.ProductName, p.ID, p.Emission())
			return err
		},
	}

	cmd.Flags().StringVar(&in.ProductName, "name", "", "product name")
	cmd.Flags().Float64Var(&in.Weight, "weight", 0, "weight in kg")
	cmd.Flags().Float64Var(&in.ShippingDistance, "distance", 0, "shipping distance in km")
	cmd.Flags().StringVar(&mode, "mode", string(core.Ground), "delivery mode: Ground, Air or Sea")
	cmd.Flags().StringVar(&category, "category", string(core.Other), "category")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("weight")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}

func newPurchasesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, sess, err := a.store()
			if err != nil {
				return err
			}
			if err := st.Delete(cmd.Context(), sess, args[0]); err != nil {
				return fmt.Errorf("delete purchase %s: %w", args[0], err)
			}
			if a.asJSON {
				return a.writeJSON(cmd, map[string]string{"deleted": args[0]})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return err
		},
	}
}
