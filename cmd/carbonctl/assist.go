package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newEstimateCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "estimate <description>",
		Short: "Ask the assistant to fill in a purchase from a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assistant, err := a.newAssistant(a.cfg)
			if err != nil {
				return err
			}
			est, err := assistant.EstimateFromDescription(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("estimate: %w", err)
			}

			if save {
				st, sess, err := a.store()
				if err != nil {
					return err
				}
				p, err := st.Create(cmd.Context(), sess, est.Input())
				if err != nil {
					return fmt.Errorf("log purchase: %w", err)
				}
				if a.asJSON {
					return a.writeJSON(cmd, p)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged %s (%s): %.2f kg CO2\n", p.ProductName, p.ID, p.Emission())
				return err
			}

			if a.asJSON {
				return a.writeJSON(cmd, est)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "product: %s\nweight: %g kg\ndistance: %g km\ncategory: %s\n",
				est.ProductName, est.Weight, est.ShippingDistance, est.Category)
			return err
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "log the estimated purchase")
	return cmd
}

func newTipsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tips",
		Short: "Ask the assistant for reduction tips based on your purchases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			assistant, err := a.newAssistant(a.cfg)
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
			tips, err := assistant.SummarizeTips(cmd.Context(), list)
			if err != nil {
				return fmt.Errorf("tips: %w", err)
			}
			if a.asJSON {
				return a.writeJSON(cmd, map[string]string{"tips": tips})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tips)
			return err
		},
	}
}
