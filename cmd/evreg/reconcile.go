package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/config"
	"github.com/alfredjeanlab/evreg/internal/events"
	"github.com/alfredjeanlab/evreg/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare every event's counter with its registration records",
	Long: `Runs one reconciliation sweep directly against the configured store
(EVREG_STORE and friends) and writes the JSONL report. The sweep only
reports; it never changes counters or records.`,
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		failOnMismatch, _ := cmd.Flags().GetBool("fail-on-mismatch")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		var publisher events.Publisher = &events.NoopPublisher{}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer pub.Close()
			publisher = pub
		}

		cat := catalog.New(st, catalog.Options{Logger: logger})
		sweeper := reconcile.NewSweeper(cat, publisher, logger)
		sweeper.SetConcurrency(concurrency)

		dests := reportDestinations(ctx, cfg, logger)
		if out != "" {
			dests = append(dests, reconcile.NewFileDestination(out))
		}
		report := reconcile.NewScheduler(sweeper, dests, 0, logger).RunOnce(ctx)
		if report == nil {
			return fmt.Errorf("reconciliation sweep failed")
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%d events checked, %d mismatched\n", report.Events, len(report.Mismatches))
		if failOnMismatch && len(report.Mismatches) > 0 {
			return fmt.Errorf("%d events have capacity mismatches", len(report.Mismatches))
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().String("out", "-", `report path ("-" for stdout, empty to skip)`)
	reconcileCmd.Flags().Bool("fail-on-mismatch", false, "exit non-zero when any mismatch is found")
	reconcileCmd.Flags().Int("concurrency", reconcile.DefaultConcurrency, "event partitions read in parallel")
}
