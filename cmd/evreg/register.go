package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/evreg/internal/registration"
)

var registerCmd = &cobra.Command{
	Use:     "register <event-id>",
	Short:   "Register an attendee for an event",
	GroupID: "catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		group, _ := cmd.Flags().GetInt("group")

		res, err := apiClient.Register(cmd.Context(), registration.Request{
			EventID:       args[0],
			AttendeeEmail: email,
			AttendeeName:  name,
			GroupSize:     group,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printRegistration(cmd.OutOrStdout(), res)
		return nil
	},
}

var registrationsCmd = &cobra.Command{
	Use:     "registrations <event-id>",
	Short:   "List the registrations recorded for an event",
	GroupID: "catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regs, err := apiClient.ListRegistrations(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"registrations": regs, "total": len(regs)})
		}
		printRegistrationListTable(cmd.OutOrStdout(), regs)
		return nil
	},
}

func init() {
	registerCmd.Flags().String("email", "", "attendee email (required)")
	registerCmd.Flags().String("name", "", "attendee name (required)")
	registerCmd.Flags().Int("group", 1, "number of seats to reserve")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("name")
}
