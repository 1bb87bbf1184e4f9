package cmd

import (
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Summarize the plans visible to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := client.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		return printSummary(cmd.OutOrStdout(), summary)
	},
}

// Register the "dashboard" command
func init() {
	rootCmd.AddCommand(dashboardCmd)
}
