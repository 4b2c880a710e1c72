// Command hemma runs the hemma home-automation hub.
//
// The hub pairs clients over the certificate endpoint, serves their signed
// and encrypted requests on the stream endpoint, and relays readings from
// the firmware bridge, the Windcentrale feed and MQTT sensors through its
// plugins.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}
	root := &cobra.Command{
		Use:   "hemma",
		Short: "Secure home-automation message hub",
		Long: `hemma pairs local clients, routes their encrypted requests to plugins,
and pushes sensor and energy readings back to every connected client.

Running hemma without a subcommand is the same as "hemma serve".`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default $HEMMA_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	root.Flags().StringVar(&opts.upstream, "upstream", "", "override upstream.url")

	root.AddCommand(newServeCmd(opts), newKeygenCmd(), newProbeCmd())
	return root
}

func newServeCmd(opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.upstream, "upstream", "", "override upstream.url")
	return cmd
}

// getConfigPath returns the --config flag, then HEMMA_CONFIG, then the
// default path.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("HEMMA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
