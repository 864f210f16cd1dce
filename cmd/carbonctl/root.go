package main

import "github.com/spf13/cobra"

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "carbonctl",
		Short:         "Carbon tracker CLI: log purchases and inspect their footprint",
		Long:          "carbonctl talks to the purchase API with your ID token to list, log and delete purchases, show emission trends and totals, and ask the assistant for estimates and reduction tips.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.token, "token", defaultToken(), "ID token for the purchase API (env CARBON_TOKEN)")
	flags.StringVar(&a.apiURL, "api-url", "", "purchase API base URL (env RECORDS_API_URL)")
	flags.BoolVar(&a.asJSON, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(
		newPurchasesCmd(a),
		newTrendCmd(a),
		newCategoriesCmd(a),
		newSummaryCmd(a),
		newEstimateCmd(a),
		newTipsCmd(a),
	)
	return rootCmd
}
