package main

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <event-id>",
	Short:   "Show an event",
	GroupID: "catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := apiClient.GetEvent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), e)
		}
		printEventTable(cmd.OutOrStdout(), e)
		return nil
	},
}
