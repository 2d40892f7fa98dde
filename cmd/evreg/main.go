// Command evreg is the client and server entry point for the event
// registration service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/evreg/internal/client"
	"github.com/alfredjeanlab/evreg/internal/ui"
)

// streamingAnnotation marks commands that run until interrupted and so
// ignore --timeout.
const streamingAnnotation = "evreg/streaming"

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool
	timeout    time.Duration

	apiClient client.Client
	cancelCmd context.CancelFunc = func() {}
)

// firstSet returns the first non-empty value.
func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultHTTPURL() string {
	r, _ := activeRemote()
	return firstSet(os.Getenv("EVREG_HTTP_URL"), r.URL, "http://localhost:8080")
}

func defaultServer() string {
	r, _ := activeRemote()
	return firstSet(os.Getenv("EVREG_SERVER"), r.GRPCAddr, "localhost:9090")
}

// noClient replaces the root pre-run for commands that work locally.
func noClient(*cobra.Command, []string) error { return nil }

func newClient() (client.Client, error) {
	switch transport {
	case "http":
		return client.NewHTTPClient(httpURL), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", serverAddr, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
}

var rootCmd = &cobra.Command{
	Use:           "evreg <command>",
	Short:         "Browse events and register attendees",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		apiClient = c

		// Derive from the root so a previous run's deadline never carries over.
		ctx := cmd.Root().Context()
		if timeout > 0 && cmd.Annotations[streamingAnnotation] == "" {
			ctx, cancelCmd = context.WithTimeout(ctx, timeout)
		}
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		cancelCmd()
		if apiClient != nil {
			_ = apiClient.Close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL (EVREG_HTTP_URL)")
	pf.StringVar(&serverAddr, "server", defaultServer(), "gRPC server address (EVREG_SERVER)")
	pf.StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	pf.BoolVar(&jsonOutput, "json", false, "output as JSON")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "per-command deadline; 0 disables")

	rootCmd.AddGroup(
		&cobra.Group{ID: "catalog", Title: "Catalog:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(listCmd, showCmd, registerCmd, registrationsCmd, watchCmd)
	rootCmd.AddCommand(serveCmd, reconcileCmd, healthCmd, remoteCmd)
}

func main() {
	ui.SetColor(ui.ShouldUseColor())
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
