package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/evreg/internal/ui"
)

type healthReport struct {
	Status    string `json:"status"`
	Transport string `json:"transport"`
	Target    string `json:"target"`
	LatencyMS int64  `json:"latencyMs"`
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the server answers",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := httpURL
		if transport == "grpc" {
			target = serverAddr
		}

		start := time.Now()
		status, err := apiClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s unreachable: %w", target, err)
		}
		rep := healthReport{
			Status:    status,
			Transport: transport,
			Target:    target,
			LatencyMS: time.Since(start).Milliseconds(),
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s via %s: %s %s\n",
				rep.Target, rep.Transport, rep.Status, ui.RenderMuted(fmt.Sprintf("(%dms)", rep.LatencyMS)))
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
