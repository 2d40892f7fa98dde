package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage named evreg servers",
	GroupID:           "system",
	PersistentPreRunE: noClient,
}

// editRemotes loads the remotes file, applies fn and saves the result.
func editRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return saveRemotesConfig(cfg)
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <http-url>",
	Short: "Add or update a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		natsURL, _ := cmd.Flags().GetString("nats")
		use, _ := cmd.Flags().GetBool("use")

		name := args[0]
		err := editRemotes(func(cfg *RemotesConfig) error {
			if err := cfg.Set(name, Remote{URL: args[1], GRPCAddr: grpcAddr, NATSURL: natsURL}); err != nil {
				return err
			}
			if use {
				return cfg.Use(name)
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved remote %q\n", name)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(cfg *RemotesConfig) error { return cfg.Remove(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed remote %q\n", args[0])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the default target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(cfg *RemotesConfig) error { return cfg.Use(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "now using %q\n", args[0])
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List remotes; the active one is starred",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), cfg)
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured; add one with: evreg remote add <name> <url>")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  NAME\tHTTP\tGRPC\tNATS")
		for _, name := range cfg.Names() {
			r := cfg.Remotes[name]
			mark := "  "
			if name == cfg.Active {
				mark = "* "
			}
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", mark, name, r.URL, orDash(r.GRPCAddr), orDash(r.NATSURL))
		}
		return tw.Flush()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address (host:port)")
	remoteAddCmd.Flags().String("nats", "", "NATS URL used by watch")
	remoteAddCmd.Flags().Bool("use", false, "also make this the active remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd)
}
