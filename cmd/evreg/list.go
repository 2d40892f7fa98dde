package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/rpc"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List events",
	GroupID: "catalog",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		search, _ := cmd.Flags().GetString("search")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		token, _ := cmd.Flags().GetString("next-token")
		all, _ := cmd.Flags().GetBool("all")

		req := rpc.ListEventsRequest{
			Category:  category,
			Search:    search,
			Status:    status,
			Limit:     limit,
			NextToken: token,
		}

		var evs []*model.Event
		var next string
		for {
			page, err := apiClient.ListEvents(cmd.Context(), req)
			if err != nil {
				return err
			}
			evs = append(evs, page.Events...)
			next = page.NextToken
			if !all || next == "" {
				break
			}
			req.NextToken = next
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, map[string]any{"events": evs, "total": len(evs), "nextToken": next})
		}
		printEventListTable(out, evs)
		fmt.Fprintf(out, "\n%d events\n", len(evs))
		if next != "" {
			fmt.Fprintf(out, "more: --next-token %s\n", next)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("category", "", "filter by category id")
	listCmd.Flags().String("search", "", "match title or description (case-insensitive)")
	listCmd.Flags().String("status", "", "filter by status (available or full)")
	listCmd.Flags().Int("limit", 0, "page size (server default when 0)")
	listCmd.Flags().String("next-token", "", "resume from a previous page")
	listCmd.Flags().Bool("all", false, "follow next tokens until the catalog is exhausted")
}
